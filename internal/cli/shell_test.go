package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/texttoaction/tta/internal/agent"
	"github.com/texttoaction/tta/internal/sandbox"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type funcPerformer func(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error)

func (f funcPerformer) Perform(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error) {
	return f(ctx, instruction, sink, streams)
}

func TestShellRunsTurnsUntilBye(t *testing.T) {
	var got []string
	perf := funcPerformer(func(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error) {
		got = append(got, instruction)
		sink.Emit(agent.Event{Type: agent.EventCode, Code: "print('hello world')"})
		_, _ = io.WriteString(streams.Stdout, "hello world\n")
		sink.Emit(agent.Event{Type: agent.EventCompleted, Status: agent.StatusCompleted})
		return agent.TurnResult{Status: agent.StatusCompleted}, nil
	})
	out := &syncBuffer{}
	shell := &Shell{
		Performer: perf,
		In:        strings.NewReader("print hello world\nbye\nnever reached\n"),
		Out:       out,
		Err:       io.Discard,
	}

	require.NoError(t, shell.Run(context.Background()))
	require.Equal(t, []string{"print hello world"}, got)

	transcript := out.String()
	require.Contains(t, transcript, "Welcome to TextToAction v")
	require.Contains(t, transcript, "Type 'bye' to quit.")
	require.Contains(t, transcript, "Generated code to be executed in sandbox:\n"+strings.Repeat("-", 40)+"\nprint('hello world')\n")
	require.Contains(t, transcript, "hello world\nTask completed.\n")
	require.Equal(t, 2, strings.Count(transcript, promptText))
}

func TestShellExitsOnEndOfInput(t *testing.T) {
	calls := 0
	perf := funcPerformer(func(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error) {
		calls++
		return agent.TurnResult{}, nil
	})
	shell := &Shell{Performer: perf, In: strings.NewReader("a\r\nb"), Out: io.Discard, Err: io.Discard}

	require.NoError(t, shell.Run(context.Background()))
	require.Equal(t, 2, calls)
}

func TestShellRecoversFromPanics(t *testing.T) {
	var calls int
	perf := funcPerformer(func(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error) {
		calls++
		switch instruction {
		case "nil map":
			var m map[string]int
			m["x"] = 1
		case "boom":
			panic("boom")
		}
		return agent.TurnResult{}, nil
	})
	out := &syncBuffer{}
	shell := &Shell{Performer: perf, In: strings.NewReader("nil map\nboom\nfine\nbye\n"), Out: out, Err: io.Discard}

	require.NoError(t, shell.Run(context.Background()))
	require.Equal(t, 3, calls)
	require.Contains(t, out.String(), "RuntimeError was raised: assignment to entry in nil map\n")
	require.Contains(t, out.String(), "Panic was raised: boom\n")
}

func TestShellInterruptCancelsOnlyTheTurn(t *testing.T) {
	started := make(chan struct{})
	perf := funcPerformer(func(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error) {
		close(started)
		<-ctx.Done()
		return agent.TurnResult{Status: agent.StatusCanceled}, ctx.Err()
	})
	inR, inW := io.Pipe()
	interrupts := make(chan os.Signal, 1)
	out := &syncBuffer{}
	shell := &Shell{Performer: perf, In: inR, Out: out, Err: io.Discard, Interrupts: interrupts}

	errCh := make(chan error, 1)
	go func() { errCh <- shell.Run(context.Background()) }()

	_, err := io.WriteString(inW, "wait forever\n")
	require.NoError(t, err)
	<-started
	interrupts <- os.Interrupt

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Interrupted.")
	}, 2*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(inW, "bye\n")
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, 2, strings.Count(out.String(), promptText))
}

func TestShellInterruptAtPromptReprompts(t *testing.T) {
	perf := funcPerformer(func(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error) {
		t.Errorf("unexpected turn %q", instruction)
		return agent.TurnResult{}, nil
	})
	inR, inW := io.Pipe()
	interrupts := make(chan os.Signal, 1)
	out := &syncBuffer{}
	shell := &Shell{Performer: perf, In: inR, Out: out, Err: io.Discard, Interrupts: interrupts}

	errCh := make(chan error, 1)
	go func() { errCh <- shell.Run(context.Background()) }()

	interrupts <- os.Interrupt
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), promptText) == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, err := io.WriteString(inW, "bye\n")
	require.NoError(t, err)
	require.NoError(t, <-errCh)
}

func TestShellStopsWithContext(t *testing.T) {
	inR, _ := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	shell := &Shell{In: inR, Out: io.Discard, Err: io.Discard}
	require.ErrorIs(t, shell.Run(ctx), context.Canceled)
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "errorString", typeName(io.ErrUnexpectedEOF))
	require.Equal(t, "Shell", typeName(&Shell{}))
}
