package util

import (
	"os"
	"sync"
	"testing"
	"time"
)

func TestListenWriteFlushesWriterOutputToFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "chowra-io-*.txt")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	var iowg sync.WaitGroup
	ListenWrite(Options{Threads: 1}, f, &iowg)

	w := NewWriter()
	w.WriteString("hello ")
	w.Printf("%d", 42)
	w.Close()

	iowg.Wait()

	want := "hello 42"
	var got []byte
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, err = os.ReadFile(f.Name())
		if err == nil && string(got) == want {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if string(got) != want {
		t.Fatalf("expected the listener to flush %q to the file, got %q", want, got)
	}

	// Safe to terminate now: the read above only succeeded once the listener
	// goroutine had drained the write channel, so nothing is left pending for
	// Close's select to race against.
	Close()
}
