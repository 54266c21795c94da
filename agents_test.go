package courtflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCaller records calls and returns canned responses per endpoint.
type fakeCaller struct {
	mutex     sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
	delay     time.Duration
}

func (f *fakeCaller) Send(ctx context.Context, endpoint, query, apiKey string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mutex.Lock()
	f.calls = append(f.calls, endpoint)
	f.mutex.Unlock()
	if err := f.errs[endpoint]; err != nil {
		return "", err
	}
	return f.responses[endpoint], nil
}

func TestStatsAgentNode(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured endpoint returns mock data", func(t *testing.T) {
		node := NewStatsAgentNode(StageOptions{})
		update, err := node.Run(ctx, NewRunState("run_1", "top scorers"))
		require.NoError(t, err)
		require.Contains(t, update.StatsResponse, "(Mock Data)")
		require.Equal(t, StatusStatsComplete, update.Status)
		require.Equal(t, 60, update.Progress)
		require.Equal(t, []string{NodeStats}, update.AgentsRun)
		require.Empty(t, update.Err, "mock mode is not a failure")
		require.Equal(t, NodeSynthesize, update.NextNode)
	})

	t.Run("live endpoint response is used", func(t *testing.T) {
		caller := &fakeCaller{responses: map[string]string{
			"http://stats": "SGA leads the league",
		}}
		node := NewStatsAgentNode(StageOptions{Endpoint: "http://stats", Client: caller})
		update, err := node.Run(ctx, NewRunState("run_1", "top scorers"))
		require.NoError(t, err)
		require.Equal(t, "SGA leads the league", update.StatsResponse)
		require.Empty(t, update.Err)
	})

	t.Run("failed call falls back to mock and records the failure", func(t *testing.T) {
		caller := &fakeCaller{errs: map[string]error{
			"http://stats": errors.New("connection refused"),
		}}
		node := NewStatsAgentNode(StageOptions{Endpoint: "http://stats", Client: caller})
		update, err := node.Run(ctx, NewRunState("run_1", "top scorers"))
		require.NoError(t, err)
		require.Contains(t, update.StatsResponse, "(Mock Data)")
		require.Contains(t, update.Err, "stats_agent")
		require.Contains(t, update.Err, "connection refused")
		require.Equal(t, StatusStatsComplete, update.Status)
	})
}

func TestMediaAgentNode(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured endpoint returns mock data", func(t *testing.T) {
		node := NewMediaAgentNode(StageOptions{})
		update, err := node.Run(ctx, NewRunState("run_1", "documentaries"))
		require.NoError(t, err)
		require.Contains(t, update.MediaResponse, "(Mock Data)")
		require.Equal(t, StatusMediaComplete, update.Status)
		require.Equal(t, []string{NodeMedia}, update.AgentsRun)
	})

	t.Run("live endpoint response is used", func(t *testing.T) {
		caller := &fakeCaller{responses: map[string]string{
			"http://media": "Watch The Last Dance",
		}}
		node := NewMediaAgentNode(StageOptions{Endpoint: "http://media", Client: caller})
		update, err := node.Run(ctx, NewRunState("run_1", "documentaries"))
		require.NoError(t, err)
		require.Equal(t, "Watch The Last Dance", update.MediaResponse)
	})
}

func TestBothAgentsNode(t *testing.T) {
	ctx := context.Background()

	t.Run("merges both responses", func(t *testing.T) {
		caller := &fakeCaller{responses: map[string]string{
			"http://stats": "stats data",
			"http://media": "media data",
		}}
		stats := NewStatsAgentNode(StageOptions{Endpoint: "http://stats", Client: caller})
		media := NewMediaAgentNode(StageOptions{Endpoint: "http://media", Client: caller})
		node := NewBothAgentsNode(stats, media, 0, nil)

		update, err := node.Run(ctx, NewRunState("run_1", "stats and media"))
		require.NoError(t, err)
		require.Equal(t, "stats data", update.StatsResponse)
		require.Equal(t, "media data", update.MediaResponse)
		require.Equal(t, StatusBothComplete, update.Status)
		require.Equal(t, 70, update.Progress)
		require.Equal(t, []string{NodeStats, NodeMedia}, update.AgentsRun)
		require.Empty(t, update.Err)
	})

	t.Run("one failing leg does not stop the other", func(t *testing.T) {
		caller := &fakeCaller{
			responses: map[string]string{"http://media": "media data"},
			errs:      map[string]error{"http://stats": errors.New("stats down")},
		}
		stats := NewStatsAgentNode(StageOptions{Endpoint: "http://stats", Client: caller})
		media := NewMediaAgentNode(StageOptions{Endpoint: "http://media", Client: caller})
		node := NewBothAgentsNode(stats, media, 0, nil)

		update, err := node.Run(ctx, NewRunState("run_1", "stats and media"))
		require.NoError(t, err)
		require.Contains(t, update.StatsResponse, "(Mock Data)", "failed leg falls back to mock")
		require.Equal(t, "media data", update.MediaResponse)
		require.Equal(t, StatusBothComplete, update.Status)
		require.Contains(t, update.Err, "stats down")
	})

	t.Run("both legs run in mock mode", func(t *testing.T) {
		stats := NewStatsAgentNode(StageOptions{})
		media := NewMediaAgentNode(StageOptions{})
		node := NewBothAgentsNode(stats, media, 0, nil)

		update, err := node.Run(ctx, NewRunState("run_1", "q"))
		require.NoError(t, err)
		require.Contains(t, update.StatsResponse, "(Mock Data)")
		require.Contains(t, update.MediaResponse, "(Mock Data)")
		require.Empty(t, update.Err)
	})

	t.Run("join timeout bounds slow agents", func(t *testing.T) {
		caller := &fakeCaller{
			responses: map[string]string{"http://stats": "late", "http://media": "late"},
			delay:     time.Second,
		}
		stats := NewStatsAgentNode(StageOptions{Endpoint: "http://stats", Client: caller})
		media := NewMediaAgentNode(StageOptions{Endpoint: "http://media", Client: caller})
		node := NewBothAgentsNode(stats, media, 20*time.Millisecond, nil)

		start := time.Now()
		update, err := node.Run(ctx, NewRunState("run_1", "q"))
		require.NoError(t, err)
		require.Less(t, time.Since(start), 500*time.Millisecond)
		// Each leg falls back to mock when its call times out.
		require.Contains(t, update.StatsResponse, "(Mock Data)")
		require.Contains(t, update.MediaResponse, "(Mock Data)")
		require.NotEmpty(t, update.Err)
	})
}
