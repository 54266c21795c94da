package courtflow

import "time"

// Checkpoint is a snapshot of a run's state, taken after each node
// executes. Checkpoints are keyed by run ID; the latest one is sufficient
// to inspect or resume the run.
type Checkpoint struct {
	RunID        string    `json:"run_id"`
	Sequence     int       `json:"sequence"`
	LastNode     string    `json:"last_node"`
	State        *RunState `json:"state"`
	CheckpointAt time.Time `json:"checkpoint_at"`
}

// RunSummary is a compact view of a checkpointed run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Query      string        `json:"query"`
	Status     RunStatus     `json:"status"`
	Progress   int           `json:"progress"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time,omitzero"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	AgentsUsed []string      `json:"agents_used,omitempty"`
}

// Summary derives a RunSummary from a checkpoint.
func (c *Checkpoint) Summary() *RunSummary {
	duration := c.CheckpointAt.Sub(c.State.StartTime)
	if !c.State.EndTime.IsZero() {
		duration = c.State.EndTime.Sub(c.State.StartTime)
	}
	return &RunSummary{
		RunID:      c.RunID,
		Query:      c.State.Query,
		Status:     c.State.Status,
		Progress:   c.State.Progress,
		StartTime:  c.State.StartTime,
		EndTime:    c.State.EndTime,
		Duration:   duration,
		Error:      c.State.Error,
		AgentsUsed: append([]string(nil), c.State.AgentHistory...),
	}
}
