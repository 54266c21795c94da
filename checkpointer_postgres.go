package courtflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// PostgresCheckpointer persists the latest checkpoint per run in Postgres,
// for deployments where multiple processes need to inspect runs.
type PostgresCheckpointer struct {
	db *sql.DB
}

// NewPostgresCheckpointer connects to Postgres with a lib/pq connection
// string and ensures the checkpoints table exists.
func NewPostgresCheckpointer(connString string) (*PostgresCheckpointer, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT PRIMARY KEY,
			sequence INTEGER NOT NULL,
			last_node TEXT NOT NULL,
			checkpoint_at TIMESTAMPTZ NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			state JSONB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &PostgresCheckpointer{db: db}, nil
}

// Close closes the underlying database.
func (c *PostgresCheckpointer) Close() error {
	return c.db.Close()
}

func (c *PostgresCheckpointer) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, sequence, last_node, checkpoint_at, start_time, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			sequence = EXCLUDED.sequence,
			last_node = EXCLUDED.last_node,
			checkpoint_at = EXCLUDED.checkpoint_at,
			state = EXCLUDED.state
	`, checkpoint.RunID, checkpoint.Sequence, checkpoint.LastNode,
		checkpoint.CheckpointAt.UTC(), checkpoint.State.StartTime.UTC(), data)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (c *PostgresCheckpointer) LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	var (
		checkpoint = Checkpoint{RunID: runID}
		stamp      time.Time
		data       []byte
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT sequence, last_node, checkpoint_at, state
		FROM checkpoints WHERE run_id = $1
	`, runID).Scan(&checkpoint.Sequence, &checkpoint.LastNode, &stamp, &data)
	if err == sql.ErrNoRows {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	checkpoint.CheckpointAt = stamp
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	checkpoint.State = &state
	return &checkpoint, nil
}

func (c *PostgresCheckpointer) DeleteCheckpoint(ctx context.Context, runID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (c *PostgresCheckpointer) ListRuns(ctx context.Context) ([]*RunSummary, error) {
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
			stamp      time.Time
			data       []byte
		)
		if err := rows.Scan(&checkpoint.RunID, &checkpoint.Sequence, &checkpoint.LastNode, &stamp, &data); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoint.CheckpointAt = stamp
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
