package courtflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Canned responses used when an agent endpoint is unconfigured or fails.
// The "(Mock Data)" marker makes them distinguishable from live data.
const (
	statsMockResponse = `## Top NBA Scorers 2024-2025 Season (Mock Data)

1. **Shai Gilgeous-Alexander** (Oklahoma City Thunder) - 32.7 PPG
2. **Luka Dončić** (Dallas Mavericks) - 33.9 PPG
3. **LeBron James** (Los Angeles Lakers) - 28.7 PPG`

	mediaMockResponse = `## Recommended NBA Media (Mock Data)

### Documentaries
- "The Last Dance" (ESPN)
- NBA League Pass`
)

// AgentCaller sends a query to an agent endpoint. *a2a.Client satisfies it.
type AgentCaller interface {
	Send(ctx context.Context, endpoint, query, apiKey string) (string, error)
}

// StageOptions configure a stage executor node.
type StageOptions struct {
	// Endpoint is the agent URL. When empty the stage runs in mock mode.
	Endpoint string

	// APIKey is the agent credential, optional.
	APIKey string

	// Client performs the agent call. Required when Endpoint is set.
	Client AgentCaller

	Logger *slog.Logger
}

// stageNode holds the shared behavior of the stats and media executors:
// mock mode when unconfigured, A2A call with mock fallback when configured,
// and always routing onward to synthesis.
type stageNode struct {
	name         string
	endpoint     string
	apiKey       string
	client       AgentCaller
	mockResponse string
	logger       *slog.Logger
}

func newStageNode(name, mockResponse string, opts StageOptions) *stageNode {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &stageNode{
		name:         name,
		endpoint:     opts.Endpoint,
		apiKey:       opts.APIKey,
		client:       opts.Client,
		mockResponse: mockResponse,
		logger:       opts.Logger.With("agent", name),
	}
}

func (n *stageNode) Name() string {
	return n.name
}

// call produces the stage's response text. The second return value carries
// a failure description when the live call fell back to mock data; an
// unconfigured endpoint is not a failure.
func (n *stageNode) call(ctx context.Context, query string) (string, string) {
	if n.endpoint == "" || n.client == nil {
		n.logger.Warn("agent endpoint not configured, using mock data")
		return n.mockResponse, ""
	}

	text, err := n.client.Send(ctx, n.endpoint, query, n.apiKey)
	if err != nil {
		n.logger.Error("agent call failed, using mock fallback", "error", err)
		return n.mockResponse, fmt.Sprintf("%s: %v", n.name, err)
	}

	n.logger.Info("agent responded", "chars", len(text))
	return text, ""
}

// StatsAgentNode gathers NBA statistics from the stats agent endpoint.
type StatsAgentNode struct {
	stage *stageNode
}

// NewStatsAgentNode creates the stats stage executor.
func NewStatsAgentNode(opts StageOptions) *StatsAgentNode {
	return &StatsAgentNode{stage: newStageNode(NodeStats, statsMockResponse, opts)}
}

func (n *StatsAgentNode) Name() string {
	return NodeStats
}

func (n *StatsAgentNode) Run(ctx context.Context, state *RunState) (*StateUpdate, error) {
	response, failure := n.stage.call(ctx, state.Query)
	return &StateUpdate{
		StatsResponse: response,
		Status:        StatusStatsComplete,
		Progress:      60,
		AgentsRun:     []string{NodeStats},
		Err:           failure,
		NextNode:      NodeSynthesize,
	}, nil
}

// MediaAgentNode gathers media recommendations from the media agent
// endpoint.
type MediaAgentNode struct {
	stage *stageNode
}

// NewMediaAgentNode creates the media stage executor.
func NewMediaAgentNode(opts StageOptions) *MediaAgentNode {
	return &MediaAgentNode{stage: newStageNode(NodeMedia, mediaMockResponse, opts)}
}

func (n *MediaAgentNode) Name() string {
	return NodeMedia
}

func (n *MediaAgentNode) Run(ctx context.Context, state *RunState) (*StateUpdate, error) {
	response, failure := n.stage.call(ctx, state.Query)
	return &StateUpdate{
		MediaResponse: response,
		Status:        StatusMediaComplete,
		Progress:      60,
		AgentsRun:     []string{NodeMedia},
		Err:           failure,
		NextNode:      NodeSynthesize,
	}, nil
}

// DefaultJoinTimeout bounds the whole parallel join, not just each leg's
// client timeout.
const DefaultJoinTimeout = 90 * time.Second

// BothAgentsNode runs the stats and media executors concurrently and merges
// their outputs. Both legs run to completion; one leg failing never
// short-circuits the other, and a failure escaping a leg's own fallback is
// converted into error-annotated response text rather than an error return.
type BothAgentsNode struct {
	stats       *StatsAgentNode
	media       *MediaAgentNode
	joinTimeout time.Duration
	logger      *slog.Logger
}

// NewBothAgentsNode creates the parallel join executor. A non-positive
// timeout selects DefaultJoinTimeout.
func NewBothAgentsNode(stats *StatsAgentNode, media *MediaAgentNode, joinTimeout time.Duration, logger *slog.Logger) *BothAgentsNode {
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BothAgentsNode{stats: stats, media: media, joinTimeout: joinTimeout, logger: logger}
}

func (n *BothAgentsNode) Name() string {
	return NodeBoth
}

func (n *BothAgentsNode) Run(ctx context.Context, state *RunState) (*StateUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, n.joinTimeout)
	defer cancel()

	n.logger.Info("running stats and media agents in parallel")

	var statsUpdate, mediaUpdate *StateUpdate

	g := &errgroup.Group{}
	g.Go(func() (err error) {
		defer recoverToError(&err, NodeStats)
		statsUpdate, err = n.stats.Run(ctx, state)
		return err
	})
	g.Go(func() (err error) {
		defer recoverToError(&err, NodeMedia)
		mediaUpdate, err = n.media.Run(ctx, state)
		return err
	})

	if err := g.Wait(); err != nil {
		// Defensive: stage executors fall back internally, so a leg error
		// here means something escaped that fallback.
		n.logger.Error("parallel execution failed", "error", err)
		errText := fmt.Sprintf("Error: %v", err)
		return &StateUpdate{
			StatsResponse: errText,
			MediaResponse: errText,
			Status:        StatusBothError,
			Progress:      50,
			AgentsRun:     []string{NodeStats, NodeMedia},
			Err:           err.Error(),
			NextNode:      NodeSynthesize,
		}, nil
	}

	n.logger.Info("parallel execution completed")

	update := &StateUpdate{
		StatsResponse: statsUpdate.StatsResponse,
		MediaResponse: mediaUpdate.MediaResponse,
		Status:        StatusBothComplete,
		Progress:      70,
		AgentsRun:     []string{NodeStats, NodeMedia},
		NextNode:      NodeSynthesize,
	}
	if statsUpdate.Err != "" {
		update.Err = statsUpdate.Err
	} else if mediaUpdate.Err != "" {
		update.Err = mediaUpdate.Err
	}
	return update, nil
}

// recoverToError converts a panic in a join leg into an error return so the
// other leg still completes and the join still reaches synthesis.
func recoverToError(err *error, leg string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panicked: %v", leg, r)
	}
}
