// io.go provides a thread safe way of buffering the rewritten iloc output from worker
// goroutines processing independent procedures and flushing it, in the order the
// procedures finish, to a single output writer.

package util

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers the textual iloc output of one procedure in a strings.Builder. Calling
// Close sends the buffer to the shared output writer through the package's write channel.
type Writer struct {
	sb strings.Builder
	c  chan string
}

// ---------------------
// ----- Constants -----
// ---------------------

var wc chan string     // Write channel used for receiving data from worker goroutines.
var cc chan error      // Close channel used by the main goroutine to signal end of output.
var wg *sync.WaitGroup // Used for synchronising when I/O has finished writing to output.

// ---------------------
// ----- Functions -----
// ---------------------

// WriteString appends a plain string to the Writer's buffer.
func (w *Writer) WriteString(s string) {
	w.sb.WriteString(s)
}

// Printf appends a formatted string to the Writer's buffer.
func (w *Writer) Printf(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// Flush empties the Writer's buffer and sends the buffer data to the designated output
// writer over the Writer's channel.
func (w *Writer) Flush() {
	w.c <- w.sb.String()
	w.sb = strings.Builder{}
}

// Close flushes the Writer's buffer and then releases the Writer's slot in the shared
// WaitGroup.
func (w *Writer) Close() {
	w.Flush()
	w.c = nil
	wg.Done()
}

// NewWriter returns a new Writer to be used by one worker goroutine to write its
// procedure's rewritten iloc concurrently to the shared output buffer. Must not be
// called before the main goroutine has called ListenWrite.
func NewWriter() Writer {
	wg.Add(1)
	return Writer{
		sb: strings.Builder{},
		c:  wc,
	}
}

// ListenWrite starts listening for worker goroutine outputs. Received data is written to
// file f if non-nil, else to stdout. The listener loops until Close is called.
func ListenWrite(opt Options, f *os.File, wgg *sync.WaitGroup) {
	wg = wgg
	if opt.Threads > 1 {
		wc = make(chan string, opt.Threads+1)
	} else {
		wc = make(chan string, 1)
	}
	cc = make(chan error, 1) // Buffered to catch Close before the listener goroutine runs.

	var w *bufio.Writer
	if f != nil {
		w = bufio.NewWriter(f)
	} else {
		w = bufio.NewWriter(os.Stdout)
	}

	go func(wc chan string, cc chan error) {
		defer close(wc)
		defer close(cc)
		for {
			select {
			case s := <-wc:
				if _, err := w.WriteString(s); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
				if err := w.Flush(); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			case <-cc:
				return
			}
		}
	}(wc, cc)
}

// Close sends the termination signal to the writer listener.
func Close() {
	cc <- nil
}
