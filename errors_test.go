package courtflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courtflow-ai/courtflow/a2a"
)

func TestRunError(t *testing.T) {
	t.Run("formats type and cause", func(t *testing.T) {
		err := NewRunError(ErrorTypeValidation, "missing next_agent field")
		require.Equal(t, "validation: missing next_agent field", err.Error())
	})

	t.Run("unwraps the underlying error", func(t *testing.T) {
		underlying := errors.New("underlying")
		err := &RunError{Type: ErrorTypeStage, Cause: "wrapped", Wrapped: underlying}
		require.ErrorIs(t, err, underlying)
	})
}

func TestClassifyError(t *testing.T) {
	t.Run("run errors pass through unchanged", func(t *testing.T) {
		original := NewRunError(ErrorTypeSynthesis, "report failed")
		classified := ClassifyError(fmt.Errorf("outer: %w", original))
		require.Same(t, original, classified)
	})

	t.Run("agent client errors are transport", func(t *testing.T) {
		agentErr := &a2a.Error{Kind: a2a.ErrKindConnectFailure, Message: "dial tcp: refused"}
		classified := ClassifyError(agentErr)
		require.Equal(t, ErrorTypeTransport, classified.Type)
	})

	t.Run("context deadline is transport", func(t *testing.T) {
		classified := ClassifyError(fmt.Errorf("call failed: %w", context.DeadlineExceeded))
		require.Equal(t, ErrorTypeTransport, classified.Type)
	})

	t.Run("context cancellation is transport", func(t *testing.T) {
		classified := ClassifyError(context.Canceled)
		require.Equal(t, ErrorTypeTransport, classified.Type)
	})

	t.Run("timeout text is transport", func(t *testing.T) {
		classified := ClassifyError(errors.New("i/o timeout waiting for agent"))
		require.Equal(t, ErrorTypeTransport, classified.Type)
	})

	t.Run("everything else is a stage failure", func(t *testing.T) {
		classified := ClassifyError(errors.New("unexpected condition"))
		require.Equal(t, ErrorTypeStage, classified.Type)
		require.Equal(t, "unexpected condition", classified.Cause)
	})
}
