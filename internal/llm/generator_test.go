package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/texttoaction/tta/internal/llm"
	llmmock "github.com/texttoaction/tta/internal/llm/mock"
)

func newRegistry(p llm.Provider, route llm.ModelRoute) *llm.Registry {
	reg := llm.NewRegistry()
	reg.RegisterProvider(route.Provider, p)
	reg.RegisterModel("default", route, true)
	return reg
}

func TestGenerateSendsSingleUserMessage(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: "print(1)"}}, nil
		},
	}
	reg := newRegistry(provider, llm.ModelRoute{Provider: "mock", Model: "route-model", Temperature: 0.1, MaxTokens: 64})
	gen := llm.NewGenerator(reg, llm.GeneratorOptions{Model: "fallback", MaxTokens: 512})

	out, err := gen.Generate(context.Background(), "say one")
	require.NoError(t, err)
	require.Equal(t, "print(1)", out)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "route-model", reqs[0].Model)
	require.Equal(t, 0.1, reqs[0].Temperature)
	require.Equal(t, 512, reqs[0].MaxTokens)
	require.Equal(t, []llm.ChatMessage{{Role: llm.RoleUser, Content: "say one"}}, reqs[0].Messages)
}

func TestGenerateFallsBackToOptionModel(t *testing.T) {
	provider := &llmmock.Provider{}
	reg := newRegistry(provider, llm.ModelRoute{Provider: "mock"})

	gen := llm.NewGenerator(reg, llm.GeneratorOptions{Model: "qwen2.5-coder:7b"})
	require.Equal(t, "qwen2.5-coder:7b", gen.Model())

	_, err := gen.Generate(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, "qwen2.5-coder:7b", provider.Requests()[0].Model)

	_, err = llm.NewGenerator(reg, llm.GeneratorOptions{}).Generate(context.Background(), "x")
	require.ErrorIs(t, err, llm.ErrNoModel)
}

func TestGenerateWrapsProviderError(t *testing.T) {
	boom := errors.New("connection refused")
	provider := &llmmock.Provider{
		NameValue: "ollama",
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, boom
		},
	}
	reg := newRegistry(provider, llm.ModelRoute{Provider: "ollama", Model: "m"})

	_, err := llm.NewGenerator(reg, llm.GeneratorOptions{}).Generate(context.Background(), "x")
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "ollama: connection refused")
}

func TestGenerateUnknownRoute(t *testing.T) {
	reg := newRegistry(&llmmock.Provider{}, llm.ModelRoute{Provider: "mock", Model: "m"})
	_, err := llm.NewGenerator(reg, llm.GeneratorOptions{Route: "nope"}).Generate(context.Background(), "x")
	require.Error(t, err)
}
