package sandbox

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
)

type execStatus struct {
	Outcome     Outcome  `json:"outcome"`
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Unavailable []string `json:"unavailable"`
}

// statusWriter forwards the executed code's stderr to out while capturing the
// sentinel-prefixed status line written by the bootstrap.
type statusWriter struct {
	out io.Writer

	mu      sync.Mutex
	pending []byte
	status  *execStatus
}

func newStatusWriter(out io.Writer) *statusWriter {
	if out == nil {
		out = io.Discard
	}
	return &statusWriter{out: out}
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	if err := w.drain(false); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush forwards anything still buffered. Call it once the producing process
// has exited.
func (w *statusWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drain(true)
}

// Status returns the captured status, or nil when none was written.
func (w *statusWriter) Status() *execStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *statusWriter) drain(final bool) error {
	sentinel := []byte(statusSentinel)
	for len(w.pending) > 0 {
		start := bytes.IndexByte(w.pending, sentinel[0])
		if start < 0 {
			return w.emit(len(w.pending))
		}
		if err := w.emit(start); err != nil {
			return err
		}

		if !bytes.HasPrefix(w.pending, sentinel) {
			if !final && len(w.pending) < len(sentinel) && bytes.HasPrefix(sentinel, w.pending) {
				return nil
			}
			if err := w.emit(1); err != nil {
				return err
			}
			continue
		}

		end := bytes.IndexByte(w.pending, '\n')
		if end < 0 {
			if !final {
				return nil
			}
			end = len(w.pending) - 1
		}
		line := w.pending[:end+1]
		var st execStatus
		if err := json.Unmarshal(bytes.TrimSpace(line[len(sentinel):]), &st); err != nil {
			if err := w.emit(end + 1); err != nil {
				return err
			}
			continue
		}
		w.status = &st
		w.pending = w.pending[end+1:]
	}
	return nil
}

// emit forwards the first n pending bytes.
func (w *statusWriter) emit(n int) error {
	if n == 0 {
		return nil
	}
	chunk := w.pending[:n]
	w.pending = w.pending[n:]
	_, err := w.out.Write(chunk)
	return err
}
