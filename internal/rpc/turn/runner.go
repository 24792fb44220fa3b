// Package turn exposes the retry controller over the daemon's NDJSON and
// Connect transports.
package turn

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/texttoaction/tta/internal/agent"
	"github.com/texttoaction/tta/internal/rpc"
	"github.com/texttoaction/tta/internal/sandbox"
)

// ErrEmptyInstruction rejects requests that carry no instruction text.
var ErrEmptyInstruction = errors.New("instruction is required")

// Runner resolves one turn and yields its events. The channel is closed when
// the turn ends; callers must drain it.
type Runner interface {
	Run(ctx context.Context, req rpc.TurnRequest) (<-chan rpc.TurnEvent, error)
}

// Performer is the part of agent.Agent the runner needs.
type Performer interface {
	Perform(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error)
}

// AgentRunner bridges the retry controller to RPC events. Turns are
// serialised: a request waits until the previous turn has been resolved.
type AgentRunner struct {
	Agent  Performer
	Logger *zap.Logger

	mu sync.Mutex
}

// Run starts the turn in the background and streams its events, including
// the executed code's stdout and stderr as output events.
func (r *AgentRunner) Run(ctx context.Context, req rpc.TurnRequest) (<-chan rpc.TurnEvent, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, ErrEmptyInstruction
	}
	if r.Agent == nil {
		return nil, errors.New("agent unavailable")
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(chan rpc.TurnEvent, 16)
	go func() {
		defer close(out)

		r.mu.Lock()
		defer r.mu.Unlock()

		sink := agent.SinkFunc(func(e agent.Event) { out <- FromAgentEvent(e) })
		streams := sandbox.Streams{
			Stdout: &outputWriter{stream: "stdout", out: out},
			Stderr: &outputWriter{stream: "stderr", out: out},
		}

		result, err := r.Agent.Perform(ctx, req.Instruction, sink, streams)
		if err != nil {
			logger.Info("turn interrupted", zap.String("turn_id", result.ID), zap.Error(err))
			out <- rpc.TurnEvent{
				Type:   EventError,
				TurnID: result.ID,
				Status: string(agent.StatusCanceled),
				Error:  err.Error(),
			}
			return
		}
		logger.Debug("turn finished",
			zap.String("turn_id", result.ID),
			zap.String("status", string(result.Status)),
			zap.Int("attempts", len(result.Attempts)),
		)
	}()
	return out, nil
}

// outputWriter turns executed-code output into events. Writes may arrive from
// the executor's copy goroutines.
type outputWriter struct {
	stream string
	out    chan<- rpc.TurnEvent
}

func (w *outputWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.out <- rpc.TurnEvent{Type: EventOutput, Stream: w.stream, Data: string(p)}
	return len(p), nil
}
