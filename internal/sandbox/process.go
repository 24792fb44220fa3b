package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// ProcessExecutor runs code in a child interpreter process. The child
// inherits the host environment and working directory access, so the
// capability set is an allow-list over names, not an isolation boundary.
type ProcessExecutor struct {
	interpreter string
	workDir     string
	bootstrap   string
	logger      *zap.Logger
}

// NewProcessExecutor renders the bootstrap for caps and binds it to interpreter.
func NewProcessExecutor(interpreter, workDir string, caps CapabilitySet, logger *zap.Logger) (*ProcessExecutor, error) {
	if interpreter == "" {
		return nil, errors.New("interpreter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	boot, err := renderBootstrap(caps)
	if err != nil {
		return nil, err
	}
	return &ProcessExecutor{
		interpreter: interpreter,
		workDir:     workDir,
		bootstrap:   boot,
		logger:      logger,
	}, nil
}

// Interpreter returns the configured interpreter binary.
func (p *ProcessExecutor) Interpreter() string {
	return p.interpreter
}

// Execute runs code to completion. There is no execution timeout: only ctx
// cancellation stops a running script, killing its whole process group.
func (p *ProcessExecutor) Execute(ctx context.Context, code string, streams Streams) (Result, error) {
	if res, done := precheck(code); done {
		return res, nil
	}

	path, err := exec.LookPath(p.interpreter)
	if err != nil {
		return Result{}, fmt.Errorf("locate interpreter %q: %w", p.interpreter, err)
	}

	status := newStatusWriter(streams.stderr())
	cmd := exec.CommandContext(ctx, path, "-u", "-c", p.bootstrap, code)
	cmd.Dir = p.workDir
	cmd.Stdout = streams.stdout()
	cmd.Stderr = status
	cmd.WaitDelay = time.Second
	configureProcess(cmd)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	_ = status.Flush()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(runErr, exec.ErrWaitDelay):
			// The script exited but left a descendant holding its output open.
			exitCode = cmd.ProcessState.ExitCode()
		default:
			return Result{}, fmt.Errorf("run interpreter: %w", runErr)
		}
	}

	res := resultFrom(status.Status(), exitCode, elapsed)
	warnUnavailable(p.logger, "process", res)
	p.logger.Debug("sandbox execution finished",
		zap.String("backend", "process"),
		zap.String("outcome", string(res.Outcome)),
		zap.String("kind", res.Kind),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}
