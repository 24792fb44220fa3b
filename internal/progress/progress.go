// Package progress draws a spinner while the shell waits on the generation
// service.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Starter begins a progress display and returns the function that ends it.
// The returned stop function blocks until the display has fully stopped and
// is safe to call more than once.
type Starter interface {
	Start() (stop func())
}

var frames = []string{"|", "/", "-", "\\"}

// Spinner is a Starter that redraws one terminal line.
type Spinner struct {
	out      io.Writer
	message  string
	interval time.Duration
}

// NewSpinner returns a spinner writing to out.
func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{out: out, message: message, interval: 100 * time.Millisecond}
}

// Start draws the first frame before returning, then animates until stop.
func (s *Spinner) Start() func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	var once sync.Once

	s.draw(0)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 1; ; i++ {
			select {
			case <-done:
				s.clear()
				return
			case <-ticker.C:
				s.draw(i)
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}

func (s *Spinner) draw(i int) {
	fmt.Fprintf(s.out, "\r%s %s", frames[i%len(frames)], s.message)
}

func (s *Spinner) clear() {
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", len(s.message)+2))
}

// Nop is a Starter that displays nothing.
type Nop struct{}

// Start returns a no-op stop function.
func (Nop) Start() func() { return func() {} }
