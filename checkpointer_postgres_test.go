package courtflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresCheckpointer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("courtflow_test"),
		tcpostgres.WithUsername("courtflow"),
		tcpostgres.WithPassword("courtflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Skipf("could not start postgres container (docker unavailable?): %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	checkpointer, err := NewPostgresCheckpointer(connString)
	require.NoError(t, err)
	defer checkpointer.Close()

	runCheckpointerSuite(t, checkpointer)

	t.Run("engine persists runs to postgres", func(t *testing.T) {
		engine, err := NewEngine(Options{Checkpointer: checkpointer})
		require.NoError(t, err)

		result := engine.Run(ctx, "top scorers")
		require.True(t, result.Success)

		loaded, err := checkpointer.LoadCheckpoint(ctx, result.RunID)
		require.NoError(t, err)
		require.Equal(t, StatusCompleted, loaded.State.Status)
		require.Equal(t, NodeSynthesize, loaded.LastNode)
	})
}
