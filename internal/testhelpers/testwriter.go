package testhelpers

import (
	"io"
	"strings"
	"testing"
)

// Writer routes server log output to t.Log so it only surfaces when a test
// fails. The e2e harness hands it to the server's slog handler.
type Writer struct {
	t        *testing.T
	testDone chan struct{}
}

// NewWriter returns an io.Writer that forwards to t.Log until the test
// finishes. Writes after that panic, which catches servers the test forgot
// to shut down.
func NewWriter(t *testing.T) io.Writer {
	w := &Writer{
		t:        t,
		testDone: make(chan struct{}),
	}
	t.Cleanup(func() {
		close(w.testDone)
	})
	return w
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	select {
	case <-w.testDone:
		panic("testwriter: write after test completion, is the server still running?")
	default:
		// t.Log adds its own newline.
		output := strings.TrimSuffix(string(p), "\n")
		if output != "" {
			w.t.Log(output)
		}
		return len(p), nil
	}
}
