package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/texttoaction/tta/internal/config"
	"github.com/texttoaction/tta/internal/extract"
	"github.com/texttoaction/tta/internal/observability"
	"github.com/texttoaction/tta/internal/progress"
	"github.com/texttoaction/tta/internal/prompt"
	"github.com/texttoaction/tta/internal/sandbox"
)

// Generator produces a free-text response for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options tunes an Agent. Zero values are usable.
type Options struct {
	MaxAttempts int
	// FeedbackErrors appends the previous failure to the next request.
	FeedbackErrors bool
	// Model labels generation metrics.
	Model    string
	Progress progress.Starter
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.TracerSetup
}

// Agent is the retry controller: it drives prompt building, generation,
// extraction and execution for one instruction at a time.
type Agent struct {
	gen    Generator
	exec   sandbox.Executor
	opts   Options
	tracer trace.Tracer
}

// New creates an Agent.
func New(gen Generator, exec sandbox.Executor, opts Options) *Agent {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = config.DefaultMaxAttempts
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Agent{
		gen:    gen,
		exec:   exec,
		opts:   opts,
		tracer: opts.Tracer.Tracer(),
	}
}

// MaxAttempts returns the per-turn attempt budget.
func (a *Agent) MaxAttempts() int {
	return a.opts.MaxAttempts
}

// Perform resolves one instruction, success or exhaustion. Every generation
// and execution failure is absorbed into the attempt budget; the only error
// returned is the context's, when the turn is interrupted.
func (a *Agent) Perform(ctx context.Context, instruction string, sink Sink, streams sandbox.Streams) (TurnResult, error) {
	turn := TurnResult{ID: uuid.NewString(), Instruction: instruction}
	start := time.Now()
	maxAttempts := a.opts.MaxAttempts
	logger := a.opts.Logger.With(zap.String("turn_id", turn.ID))

	ctx, span := a.tracer.Start(ctx, "tta.turn", trace.WithAttributes(
		attribute.String("tta.turn_id", turn.ID),
		attribute.Int("tta.max_attempts", maxAttempts),
	))
	defer span.End()

	emit := func(e Event) {
		e.TurnID = turn.ID
		e.MaxAttempts = maxAttempts
		if sink != nil {
			sink.Emit(e)
		}
	}
	finish := func(status Status) TurnResult {
		turn.Status = status
		turn.Duration = time.Since(start)
		a.opts.Metrics.RecordTurn(string(status), turn.Duration)
		span.SetAttributes(
			attribute.String("tta.status", string(status)),
			attribute.Int("tta.attempts", len(turn.Attempts)),
		)
		return turn
	}

	emit(Event{Type: EventState, State: StateIdle})

	var feedback *prompt.Feedback
	for i := 1; i <= maxAttempts; i++ {
		att, err := a.attempt(ctx, logger.With(zap.Int("attempt", i)), i, instruction, feedback, emit, streams)
		turn.Attempts = append(turn.Attempts, att)
		if err != nil {
			span.SetStatus(codes.Error, "interrupted")
			return finish(StatusCanceled), err
		}

		if att.Result.OK() {
			emit(Event{Type: EventState, Attempt: i, State: StateSucceeded})
			emit(Event{Type: EventCompleted, Attempt: i, Status: StatusCompleted})
			return finish(StatusCompleted), nil
		}

		emit(Event{
			Type:    EventFailure,
			Attempt: i,
			Outcome: att.Result.Outcome,
			Kind:    att.Result.Kind,
			Message: att.Result.Message,
		})
		if i < maxAttempts {
			emit(Event{Type: EventState, Attempt: i, State: StateRetrying})
			emit(Event{Type: EventRetry, Attempt: i})
			if a.opts.FeedbackErrors {
				feedback = &prompt.Feedback{Code: att.Code, Kind: att.Result.Kind, Message: att.Result.Message}
			}
		}
	}

	emit(Event{Type: EventState, Attempt: maxAttempts, State: StateExhausted})
	emit(Event{Type: EventExhausted, Attempt: maxAttempts, Status: StatusExhausted})
	span.SetStatus(codes.Error, "retries exhausted")
	return finish(StatusExhausted), nil
}

func (a *Agent) attempt(ctx context.Context, logger *zap.Logger, index int, instruction string, feedback *prompt.Feedback, emit func(Event), streams sandbox.Streams) (Attempt, error) {
	ctx, span := a.tracer.Start(ctx, "tta.attempt", trace.WithAttributes(attribute.Int("tta.attempt", index)))
	defer span.End()

	att := Attempt{Index: index}

	emit(Event{Type: EventState, Attempt: index, State: StateGenerating})
	request := prompt.Build(instruction)
	if feedback != nil {
		request = prompt.BuildWithFeedback(instruction, *feedback)
	}

	stop := a.opts.Progress.Start()
	genStart := time.Now()
	response, genErr := a.gen.Generate(ctx, request)
	stop()
	a.opts.Metrics.RecordGeneration(a.opts.Model, time.Since(genStart), genErr)

	if err := ctx.Err(); err != nil {
		return att, err
	}
	if genErr != nil {
		logger.Warn("generation failed", zap.Error(genErr))
		span.RecordError(genErr)
		att.GenerationErr = genErr
		response = ""
		emit(Event{Type: EventGenerationError, Attempt: index, Message: genErr.Error()})
	}

	emit(Event{Type: EventState, Attempt: index, State: StateExtracting})
	att.Code = extract.Code(response)
	emit(Event{Type: EventCode, Attempt: index, Code: att.Code})

	emit(Event{Type: EventState, Attempt: index, State: StateCompilingExecuting})
	res, err := a.exec.Execute(ctx, att.Code, streams)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return att, ctxErr
		}
		logger.Warn("executor failed", zap.Error(err))
		res = sandbox.Result{
			Outcome: sandbox.OutcomeRuntimeFailure,
			Kind:    sandbox.KindExecutorError,
			Message: err.Error(),
		}
	}
	att.Result = res

	a.opts.Metrics.RecordAttempt(string(res.Outcome))
	span.SetAttributes(
		attribute.String("tta.outcome", string(res.Outcome)),
		attribute.String("tta.kind", res.Kind),
	)
	if !res.OK() {
		span.SetStatus(codes.Error, res.Kind)
	}
	logger.Debug("attempt finished",
		zap.String("outcome", string(res.Outcome)),
		zap.String("kind", res.Kind),
		zap.Duration("duration", res.Duration),
	)
	return att, nil
}
