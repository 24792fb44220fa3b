package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Executor compiles code into a runnable unit bound to a capability context,
// runs it and reports the outcome. The returned error is reserved for
// infrastructure problems (interpreter missing, container runtime down,
// cancellation); failures of the code itself are reported in Result.
type Executor interface {
	Execute(ctx context.Context, code string, streams Streams) (Result, error)
}

// Streams receives the executed code's output. Nil writers discard.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (s Streams) stdout() io.Writer {
	if s.Stdout == nil {
		return io.Discard
	}
	return s.Stdout
}

func (s Streams) stderr() io.Writer {
	if s.Stderr == nil {
		return io.Discard
	}
	return s.Stderr
}

// precheck rejects code no interpreter needs to see.
func precheck(code string) (Result, bool) {
	if strings.TrimSpace(code) == "" {
		return emptySourceResult(), true
	}
	if strings.ContainsRune(code, 0) {
		return Result{
			Outcome: OutcomeCompileFailure,
			Kind:    "ValueError",
			Message: "source code string cannot contain null bytes",
		}, true
	}
	return Result{}, false
}

// resultFrom maps the bootstrap status and exit code into a Result.
func resultFrom(st *execStatus, exitCode int, elapsed time.Duration) Result {
	res := Result{ExitCode: exitCode, Duration: elapsed}
	if st != nil {
		switch st.Outcome {
		case OutcomeSuccess, OutcomeCompileFailure, OutcomeRuntimeFailure:
			res.Outcome = st.Outcome
			res.Kind = st.Kind
			res.Message = st.Message
			if len(st.Unavailable) > 0 {
				res.Unavailable = st.Unavailable
			}
			return res
		}
	}
	if exitCode == 0 {
		res.Outcome = OutcomeSuccess
		return res
	}
	res.Outcome = OutcomeRuntimeFailure
	res.Kind = KindProcessExit
	res.Message = fmt.Sprintf("interpreter exited with status %d", exitCode)
	return res
}

func warnUnavailable(logger *zap.Logger, backend string, res Result) {
	if len(res.Unavailable) == 0 {
		return
	}
	logger.Warn("capability modules missing from sandbox interpreter",
		zap.String("backend", backend),
		zap.Strings("modules", res.Unavailable),
	)
}
