package sandbox

import (
	"errors"
	"fmt"
	"time"
)

// Outcome is the tri-state result of compiling and running code.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeCompileFailure Outcome = "compile_failure"
	OutcomeRuntimeFailure Outcome = "runtime_failure"
)

// Failure kinds produced by the executor itself rather than by executed code.
const (
	KindEmptySource           = "EmptySource"
	KindImportNotPermitted    = "ImportNotPermitted"
	KindCapabilityUnavailable = "CapabilityUnavailable"
	KindProcessExit           = "ProcessExit"
	KindExecutorError         = "ExecutorError"
)

var (
	// ErrImportNotPermitted matches failures raised by the restricted import hook.
	ErrImportNotPermitted = errors.New("import not permitted")
	// ErrEmptySource matches compile failures for empty or whitespace-only code.
	ErrEmptySource = errors.New("empty source")
	// ErrCapabilityUnavailable matches code that used a capability module the
	// interpreter does not have installed.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
)

// Result reports one execution.
type Result struct {
	Outcome  Outcome
	Kind     string
	Message  string
	ExitCode int
	Duration time.Duration
	// Unavailable lists capability modules the interpreter could not import.
	// They stay bound as placeholders that fail on first use.
	Unavailable []string
}

// OK reports whether the code ran without an escaping exception.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Failure{Outcome: r.Outcome, Kind: r.Kind, Message: r.Message}
}

// Failure is a compile or runtime failure of executed code.
type Failure struct {
	Outcome Outcome
	Kind    string
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Kind
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Is lets errors.Is match the sentinel errors by failure kind.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrImportNotPermitted:
		return f.Kind == KindImportNotPermitted
	case ErrEmptySource:
		return f.Kind == KindEmptySource
	case ErrCapabilityUnavailable:
		return f.Kind == KindCapabilityUnavailable
	}
	return false
}

func emptySourceResult() Result {
	return Result{
		Outcome: OutcomeCompileFailure,
		Kind:    KindEmptySource,
		Message: "no code to execute",
	}
}
