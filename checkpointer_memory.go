package courtflow

import (
	"context"
	"sort"
	"sync"
)

// DefaultMemoryCheckpointerCapacity bounds the in-memory checkpoint store.
const DefaultMemoryCheckpointerCapacity = 1024

// MemoryCheckpointer keeps the latest checkpoint per run in memory. The
// store is bounded: when the capacity is exceeded, the oldest run is
// evicted in insertion order.
type MemoryCheckpointer struct {
	mutex       sync.RWMutex
	capacity    int
	checkpoints map[string]*Checkpoint
	order       []string
}

// NewMemoryCheckpointer creates a bounded in-memory checkpoint store. A
// non-positive capacity selects the default.
func NewMemoryCheckpointer(capacity int) *MemoryCheckpointer {
	if capacity <= 0 {
		capacity = DefaultMemoryCheckpointerCapacity
	}
	return &MemoryCheckpointer{
		capacity:    capacity,
		checkpoints: make(map[string]*Checkpoint),
	}
}

func (c *MemoryCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.checkpoints[checkpoint.RunID]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.checkpoints, oldest)
		}
		c.order = append(c.order, checkpoint.RunID)
	}

	snapshot := *checkpoint
	snapshot.State = checkpoint.State.Copy()
	c.checkpoints[checkpoint.RunID] = &snapshot
	return nil
}

func (c *MemoryCheckpointer) LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	checkpoint, ok := c.checkpoints[runID]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	snapshot := *checkpoint
	snapshot.State = checkpoint.State.Copy()
	return &snapshot, nil
}

func (c *MemoryCheckpointer) DeleteCheckpoint(ctx context.Context, runID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.checkpoints[runID]; !ok {
		return nil
	}
	delete(c.checkpoints, runID)
	for i, id := range c.order {
		if id == runID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *MemoryCheckpointer) ListRuns(ctx context.Context) ([]*RunSummary, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	summaries := make([]*RunSummary, 0, len(c.checkpoints))
	for _, checkpoint := range c.checkpoints {
		summaries = append(summaries, checkpoint.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

// Len returns the number of runs currently stored.
func (c *MemoryCheckpointer) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.checkpoints)
}
