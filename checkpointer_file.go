package courtflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileCheckpointer persists checkpoints to disk, one directory per run with
// a latest.json holding the most recent snapshot.
type FileCheckpointer struct {
	dataDir string
}

// NewFileCheckpointer creates a file-based checkpoint store rooted at
// dataDir. An empty dataDir defaults to ~/.courtflow/runs.
func NewFileCheckpointer(dataDir string) (*FileCheckpointer, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".courtflow", "runs")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileCheckpointer{dataDir: dataDir}, nil
}

func (c *FileCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	runDir := filepath.Join(c.dataDir, checkpoint.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Keep per-node snapshots for auditing plus a latest pointer.
	snapshotPath := filepath.Join(runDir, fmt.Sprintf("checkpoint-%d.json", checkpoint.Sequence))
	if err := os.WriteFile(snapshotPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	latestPath := filepath.Join(runDir, "latest.json")
	if err := os.WriteFile(latestPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write latest checkpoint: %w", err)
	}
	return nil
}

func (c *FileCheckpointer) LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	latestPath := filepath.Join(c.dataDir, runID, "latest.json")

	data, err := os.ReadFile(latestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	// A checkpoint without run state is unusable. Treat it like a missing
	// checkpoint so callers start fresh instead of tripping over it.
	if checkpoint.State == nil {
		return nil, ErrCheckpointNotFound
	}
	return &checkpoint, nil
}

func (c *FileCheckpointer) DeleteCheckpoint(ctx context.Context, runID string) error {
	runDir := filepath.Join(c.dataDir, runID)
	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run directory: %w", err)
	}
	return nil
}

func (c *FileCheckpointer) ListRuns(ctx context.Context) ([]*RunSummary, error) {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*RunSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var summaries []*RunSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		checkpoint, err := c.LoadCheckpoint(ctx, entry.Name())
		if err != nil {
			// Skip runs we can't read
			continue
		}
		summaries = append(summaries, checkpoint.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}
