package courtflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// SQLiteCheckpointer persists the latest checkpoint per run in SQLite. It
// is suitable for single-process production use.
type SQLiteCheckpointer struct {
	db *sql.DB
}

// NewSQLiteCheckpointer opens (or creates) a SQLite checkpoint store. The
// path is a database file path, or ":memory:" for testing.
func NewSQLiteCheckpointer(path string) (*SQLiteCheckpointer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL improves concurrent read behavior.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT PRIMARY KEY,
			sequence INTEGER NOT NULL,
			last_node TEXT NOT NULL,
			checkpoint_at TEXT NOT NULL,
			start_time TEXT NOT NULL,
			state BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteCheckpointer{db: db}, nil
}

// Close closes the underlying database.
func (c *SQLiteCheckpointer) Close() error {
	return c.db.Close()
}

func (c *SQLiteCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, sequence, last_node, checkpoint_at, start_time, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			sequence = excluded.sequence,
			last_node = excluded.last_node,
			checkpoint_at = excluded.checkpoint_at,
			state = excluded.state
	`, checkpoint.RunID, checkpoint.Sequence, checkpoint.LastNode,
		checkpoint.CheckpointAt.UTC().Format(time.RFC3339Nano),
		checkpoint.State.StartTime.UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (c *SQLiteCheckpointer) LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	var (
		checkpoint = Checkpoint{RunID: runID}
		stamp      string
		data       []byte
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT sequence, last_node, checkpoint_at, state
		FROM checkpoints WHERE run_id = ?
	`, runID).Scan(&checkpoint.Sequence, &checkpoint.LastNode, &stamp, &data)
	if err == sql.ErrNoRows {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	checkpoint.CheckpointAt, _ = time.Parse(time.RFC3339Nano, stamp)
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	checkpoint.State = &state
	return &checkpoint, nil
}

func (c *SQLiteCheckpointer) DeleteCheckpoint(ctx context.Context, runID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (c *SQLiteCheckpointer) ListRuns(ctx context.Context) ([]*RunSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, sequence, last_node, checkpoint_at, state
		FROM checkpoints ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var summaries []*RunSummary
	for rows.Next() {
		var (
			checkpoint Checkpoint
			stamp      string
			data       []byte
		)
		if err := rows.Scan(&checkpoint.RunID, &checkpoint.Sequence, &checkpoint.LastNode, &stamp, &data); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoint.CheckpointAt, _ = time.Parse(time.RFC3339Nano, stamp)
		var state RunState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		checkpoint.State = &state
		summaries = append(summaries, checkpoint.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return summaries, nil
}
