package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/texttoaction/tta/internal/agent"
)

func TestRendererTranscript(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)

	events := []agent.Event{
		{Type: agent.EventState, State: agent.StateGenerating, Attempt: 1, MaxAttempts: 3},
		{Type: agent.EventGenerationError, Attempt: 1, MaxAttempts: 3, Message: "connection refused"},
		{Type: agent.EventCode, Attempt: 1, MaxAttempts: 3, Code: ""},
		{Type: agent.EventFailure, Attempt: 1, MaxAttempts: 3, Kind: "EmptySource", Message: "no code to execute"},
		{Type: agent.EventRetry, Attempt: 1, MaxAttempts: 3},
		{Type: agent.EventCode, Attempt: 2, MaxAttempts: 3, Code: "print('hello world')"},
		{Type: agent.EventCompleted, Attempt: 2, MaxAttempts: 3},
	}
	for _, e := range events {
		r.Emit(e)
	}

	rule := strings.Repeat("-", 40)
	want := "Generation service error: connection refused\n" +
		"\nGenerated code to be executed in sandbox:\n" + rule + "\n\n" + rule + "\n" +
		"Execution error: EmptySource: no code to execute\n" +
		"Retrying... (1/3)\n" +
		"\nGenerated code to be executed in sandbox:\n" + rule + "\nprint('hello world')\n" + rule + "\n" +
		"Task completed.\n"
	require.Equal(t, want, out.String())
}

func TestRendererExhausted(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)

	r.Emit(agent.Event{Type: agent.EventFailure, Attempt: 3, MaxAttempts: 3, Kind: "ImportNotPermitted", Message: "Import of 'socket' is not allowed in sandbox."})
	r.Emit(agent.Event{Type: agent.EventExhausted, Attempt: 3, MaxAttempts: 3})

	require.Equal(t, "Execution error: ImportNotPermitted: Import of 'socket' is not allowed in sandbox.\nMaximum retries reached. Task failed.\n", out.String())
}

var _ agent.Sink = (*Renderer)(nil)
