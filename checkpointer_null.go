package courtflow

import "context"

// NullCheckpointer is a no-op implementation.
type NullCheckpointer struct{}

func NewNullCheckpointer() *NullCheckpointer {
	return &NullCheckpointer{}
}

func (c *NullCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	return nil
}

func (c *NullCheckpointer) LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	return nil, ErrCheckpointNotFound
}

func (c *NullCheckpointer) DeleteCheckpoint(ctx context.Context, runID string) error {
	return nil
}

func (c *NullCheckpointer) ListRuns(ctx context.Context) ([]*RunSummary, error) {
	return nil, nil
}
