// Package console renders turn events as the interactive transcript.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/texttoaction/tta/internal/agent"
)

var rule = strings.Repeat("-", 40)

// Renderer writes turn events to out. It implements agent.Sink.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewRenderer returns a Renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Emit renders one event. State changes are silent.
func (r *Renderer) Emit(e agent.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case agent.EventCode:
		fmt.Fprintf(r.out, "\nGenerated code to be executed in sandbox:\n%s\n%s\n%s\n", rule, e.Code, rule)
	case agent.EventGenerationError:
		fmt.Fprintf(r.out, "Generation service error: %s\n", e.Message)
	case agent.EventFailure:
		fmt.Fprintf(r.out, "Execution error: %s: %s\n", e.Kind, e.Message)
	case agent.EventRetry:
		fmt.Fprintf(r.out, "Retrying... (%d/%d)\n", e.Attempt, e.MaxAttempts)
	case agent.EventExhausted:
		fmt.Fprintln(r.out, "Maximum retries reached. Task failed.")
	case agent.EventCompleted:
		fmt.Fprintln(r.out, "Task completed.")
	}
}
