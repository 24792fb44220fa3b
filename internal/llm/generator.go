package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoModel is returned when neither the route nor the options name a model identity.
var ErrNoModel = errors.New("no generation model configured")

// GeneratorOptions overrides route parameters for code generation.
// Zero values keep whatever the route defines.
type GeneratorOptions struct {
	Route       string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator turns a prompt into a single completion through a registry route.
type Generator struct {
	reg  *Registry
	opts GeneratorOptions
}

// NewGenerator builds a Generator bound to reg.
func NewGenerator(reg *Registry, opts GeneratorOptions) *Generator {
	return &Generator{reg: reg, opts: opts}
}

// Model reports the model identity a request would use.
func (g *Generator) Model() string {
	_, route, err := g.reg.Resolve(g.opts.Route)
	if err != nil {
		return g.opts.Model
	}
	return g.request(route, "").Model
}

// Generate sends prompt as one user message and returns the completion text.
// An empty completion is not an error.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	provider, route, err := g.reg.Resolve(g.opts.Route)
	if err != nil {
		return "", err
	}

	req := g.request(route, prompt)
	if req.Model == "" {
		return "", ErrNoModel
	}

	resp, err := provider.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", provider.Name(), err)
	}
	return resp.Message.Content, nil
}

func (g *Generator) request(route ModelRoute, prompt string) ChatRequest {
	req := ChatRequest{
		Model:       route.Model,
		Temperature: route.Temperature,
		MaxTokens:   route.MaxTokens,
		Messages: []ChatMessage{
			{Role: RoleUser, Content: prompt},
		},
	}
	if req.Model == "" {
		req.Model = g.opts.Model
	}
	if g.opts.Temperature > 0 {
		req.Temperature = g.opts.Temperature
	}
	if g.opts.MaxTokens > 0 {
		req.MaxTokens = g.opts.MaxTokens
	}
	return req
}
