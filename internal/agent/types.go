package agent

import (
	"time"

	"github.com/texttoaction/tta/internal/sandbox"
)

// State is a retry controller state.
type State string

const (
	StateIdle               State = "idle"
	StateGenerating         State = "generating"
	StateExtracting         State = "extracting"
	StateCompilingExecuting State = "compiling_executing"
	StateSucceeded          State = "succeeded"
	StateRetrying           State = "retrying"
	StateExhausted          State = "exhausted"
)

// Status is the terminal outcome of a turn.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusExhausted Status = "exhausted"
	// StatusCanceled marks a turn abandoned on interrupt; Perform also returns the context error.
	StatusCanceled Status = "canceled"
)

// Attempt records one generate+execute cycle.
type Attempt struct {
	Index         int
	Code          string
	Result        sandbox.Result
	GenerationErr error
}

// TurnResult is the outcome of one instruction.
type TurnResult struct {
	ID          string
	Instruction string
	Status      Status
	Attempts    []Attempt
	Duration    time.Duration
}

// Completed reports whether the turn ended in success.
func (t TurnResult) Completed() bool {
	return t.Status == StatusCompleted
}
