// Package app wires a loaded configuration into a ready-to-use retry
// controller. Both the shell and the daemon build their runtime through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/texttoaction/tta/internal/agent"
	"github.com/texttoaction/tta/internal/config"
	"github.com/texttoaction/tta/internal/llm"
	"github.com/texttoaction/tta/internal/llm/configbuilder"
	"github.com/texttoaction/tta/internal/observability"
	"github.com/texttoaction/tta/internal/progress"
	"github.com/texttoaction/tta/internal/sandbox"
)

// App holds the components built from one configuration value.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Registry     *llm.Registry
	Generator    agent.Generator
	Model        string
	Capabilities sandbox.CapabilitySet
	Executor     sandbox.Executor
	Metrics      *observability.Metrics
	Tracer       *observability.TracerSetup
	Agent        *agent.Agent
}

type settings struct {
	progress  progress.Starter
	metrics   *observability.Metrics
	generator agent.Generator
	executor  sandbox.Executor
}

// Option customises New.
type Option func(*settings)

// WithProgress shows p around every generation call.
func WithProgress(p progress.Starter) Option {
	return func(s *settings) { s.progress = p }
}

// WithMetrics records into m instead of a fresh registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithGenerator replaces the configured generation route.
func WithGenerator(g agent.Generator) Option {
	return func(s *settings) { s.generator = g }
}

// WithExecutor replaces the configured sandbox backend.
func WithExecutor(e sandbox.Executor) Option {
	return func(s *settings) { s.executor = e }
}

// New builds the registry, generator, executor, telemetry and agent for cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Capabilities: sandbox.Standard(),
		Model:        cfg.Generation.Model,
	}

	if s.generator != nil {
		a.Generator = s.generator
	} else {
		gen, reg, err := configbuilder.BuildGenerator(cfg)
		if err != nil {
			return nil, fmt.Errorf("build generator: %w", err)
		}
		a.Generator = gen
		a.Registry = reg
		a.Model = gen.Model()
	}

	if s.executor != nil {
		a.Executor = s.executor
	} else {
		exec, err := sandbox.New(cfg.Sandbox, a.Capabilities, logger.Named("sandbox"))
		if err != nil {
			return nil, fmt.Errorf("build sandbox: %w", err)
		}
		a.Executor = exec
	}

	a.Metrics = s.metrics
	if a.Metrics == nil {
		a.Metrics = observability.NewMetrics()
	}

	tracer, err := observability.NewTracerSetup(ctx, cfg.Telemetry)
	if err != nil {
		a.closeExecutor()
		return nil, fmt.Errorf("build tracer: %w", err)
	}
	a.Tracer = tracer

	a.Agent = agent.New(a.Generator, a.Executor, agent.Options{
		MaxAttempts:    cfg.Retry.Attempts(),
		FeedbackErrors: cfg.Retry.FeedbackErrors,
		Model:          a.Model,
		Progress:       s.progress,
		Logger:         logger.Named("agent"),
		Metrics:        a.Metrics,
		Tracer:         a.Tracer,
	})

	logger.Debug("runtime ready",
		zap.String("model", a.Model),
		zap.String("sandbox", cfg.Sandbox.Backend),
		zap.Int("max_attempts", a.Agent.MaxAttempts()),
	)
	return a, nil
}

// Close flushes telemetry and releases the executor backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}
	if err := a.closeExecutor(); err != nil {
		errs = append(errs, fmt.Errorf("close executor: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) closeExecutor() error {
	if c, ok := a.Executor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
