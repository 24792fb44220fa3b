package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/texttoaction/tta/internal/agent"
	"github.com/texttoaction/tta/internal/config"
	"github.com/texttoaction/tta/internal/observability"
	"github.com/texttoaction/tta/internal/sandbox"
)

type stubExecutor struct {
	codes  []string
	result sandbox.Result
	closed bool
}

func (e *stubExecutor) Execute(ctx context.Context, code string, streams sandbox.Streams) (sandbox.Result, error) {
	e.codes = append(e.codes, code)
	return e.result, nil
}

func (e *stubExecutor) Close() error {
	e.closed = true
	return nil
}

type stubGenerator struct{ response string }

func (g stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.response, nil
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"ollama": {Type: "ollama", BaseURL: baseURL},
		},
		Models: map[string]config.ModelConfig{
			"default": {Provider: "ollama", Model: "qwen2.5-coder:7b", Default: true},
		},
		Generation: config.GenerationConfig{Model: "qwen2.5-coder:7b"},
		Retry:      config.RetryConfig{MaxAttempts: 2},
		Sandbox:    config.SandboxConfig{Backend: "process", Interpreter: "python3"},
	}
}

func TestNewWiresConfiguredGenerator(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var body struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"` + "```python\\nprint('hi')\\n```" + `"},"done":true}`))
	}))
	t.Cleanup(srv.Close)

	exec := &stubExecutor{result: sandbox.Result{Outcome: sandbox.OutcomeSuccess}}
	a, err := New(context.Background(), testConfig(srv.URL), zaptest.NewLogger(t), WithExecutor(exec))
	require.NoError(t, err)
	require.NotNil(t, a.Registry)
	require.Equal(t, "qwen2.5-coder:7b", a.Model)
	require.Equal(t, 2, a.Agent.MaxAttempts())

	turn, err := a.Agent.Perform(context.Background(), "say hi", nil, sandbox.Streams{})
	require.NoError(t, err)
	require.Equal(t, agent.StatusCompleted, turn.Status)
	require.Equal(t, "qwen2.5-coder:7b", gotModel)
	require.Equal(t, []string{"print('hi')"}, exec.codes)

	require.NoError(t, a.Close(context.Background()))
	require.True(t, exec.closed)
}

func TestNewBuildsProcessExecutorByDefault(t *testing.T) {
	a, err := New(context.Background(), testConfig("http://127.0.0.1:1"), nil)
	require.NoError(t, err)
	proc, ok := a.Executor.(*sandbox.ProcessExecutor)
	require.True(t, ok)
	require.Equal(t, "python3", proc.Interpreter())
	require.Nil(t, a.Tracer)
	require.NotNil(t, a.Metrics)
	require.NoError(t, a.Close(context.Background()))
}

func TestNewHonoursOverrides(t *testing.T) {
	metrics := observability.NewMetrics()
	exec := &stubExecutor{result: sandbox.Result{Outcome: sandbox.OutcomeSuccess}}
	a, err := New(context.Background(), testConfig(""), nil,
		WithGenerator(stubGenerator{response: "print(1)"}),
		WithExecutor(exec),
		WithMetrics(metrics),
	)
	require.NoError(t, err)
	require.Nil(t, a.Registry)
	require.Same(t, metrics, a.Metrics)

	turn, err := a.Agent.Perform(context.Background(), "count", nil, sandbox.Streams{})
	require.NoError(t, err)
	require.True(t, turn.Completed())
	require.Equal(t, []string{"print(1)"}, exec.codes)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig("")
	cfg.Sandbox.Backend = "vm"
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)

	_, err = New(context.Background(), nil, nil)
	require.Error(t, err)
}
