package courtflow

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a run ID.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpointer stores run state snapshots keyed by run ID. Implementations
// must be safe for concurrent use by multiple runs.
type Checkpointer interface {

	// SaveCheckpoint stores the latest checkpoint for a run.
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error

	// LoadCheckpoint loads the latest checkpoint for a run. It returns
	// ErrCheckpointNotFound when the run is unknown.
	LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error)

	// DeleteCheckpoint removes checkpoint data for a run.
	DeleteCheckpoint(ctx context.Context, runID string) error

	// ListRuns returns summaries of all checkpointed runs, newest first.
	ListRuns(ctx context.Context) ([]*RunSummary, error)
}
