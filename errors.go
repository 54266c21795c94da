package courtflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courtflow-ai/courtflow/a2a"
)

// Error type constants for classification and matching.
const (
	// ErrorTypeTransport covers timeouts, connection failures, HTTP errors,
	// and protocol-level errors from remote agents or the decision service.
	ErrorTypeTransport = "transport"

	// ErrorTypeValidation covers malformed routing JSON and disallowed
	// decision values.
	ErrorTypeValidation = "validation"

	// ErrorTypeStage covers failures inside a worker node body.
	ErrorTypeStage = "stage"

	// ErrorTypeSynthesis covers failures while building the final report.
	ErrorTypeSynthesis = "synthesis"
)

// RunError is a classified error. Nothing in the engine lets one of these
// escape a run boundary; they end up recorded in RunState.Error.
type RunError struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	Wrapped error  `json:"-"`
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Wrapped
}

// NewRunError creates a RunError with the given type and cause.
func NewRunError(errorType, cause string) *RunError {
	return &RunError{Type: errorType, Cause: cause}
}

// ClassifyError maps an arbitrary error into the run error taxonomy.
// Transport failures from the A2A client keep their classification; context
// cancellation and anything that smells like a timeout is transport; the
// rest defaults to a stage failure.
func ClassifyError(err error) *RunError {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr
	}
	var agentErr *a2a.Error
	if errors.As(err, &agentErr) {
		return &RunError{Type: ErrorTypeTransport, Cause: agentErr.Error(), Wrapped: err}
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &RunError{Type: ErrorTypeTransport, Cause: err.Error(), Wrapped: err}
	}
	return &RunError{Type: ErrorTypeStage, Cause: err.Error(), Wrapped: err}
}
