package util

import (
	"errors"
	"testing"
	"time"
)

func TestPerrorBuffersAppendedErrors(t *testing.T) {
	pe := NewPerror(4)
	defer pe.Stop()

	pe.Append(errors.New("boom"))
	pe.Append(nil) // ignored

	waitForLen(t, pe, 1)

	errs := collectErrors(pe.Errors())
	if len(errs) != 1 || errs[0].Error() != "boom" {
		t.Errorf("expected exactly one buffered error %q, got %v", "boom", errs)
	}
}

func TestPerrorFlushEmptiesTheBuffer(t *testing.T) {
	pe := NewPerror(4)
	defer pe.Stop()

	pe.Append(errors.New("first"))
	waitForLen(t, pe, 1)

	pe.Flush()
	if pe.Len() != 0 {
		t.Errorf("expected Flush to empty the buffer, got length %d", pe.Len())
	}
}

func TestNewPerrorFallsBackToDefaultBufferSize(t *testing.T) {
	pe := NewPerror(0)
	defer pe.Stop()
	if cap(pe.errors) != defaultBufferSize {
		t.Errorf("expected a non-positive buffer request to fall back to %d, got %d", defaultBufferSize, cap(pe.errors))
	}
}

func waitForLen(t *testing.T, pe *Perror, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pe.Len() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d buffered errors, have %d", n, pe.Len())
}

func collectErrors(c <-chan error) []error {
	var out []error
	for e := range c {
		out = append(out, e)
	}
	return out
}
