package courtflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.jetify.com/typeid"

	"github.com/courtflow-ai/courtflow/a2a"
	"github.com/courtflow-ai/courtflow/llm"
)

// NewRunID returns a new typed identifier for a workflow run.
func NewRunID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// RunResult mirrors the terminal run state plus the resolved run ID.
type RunResult struct {
	RunID       string    `json:"run_id"`
	Success     bool      `json:"success"`
	Status      RunStatus `json:"status"`
	Progress    int       `json:"progress"`
	FinalReport string    `json:"final_report"`
	AgentsUsed  []string  `json:"agents_used"`
	Error       string    `json:"error,omitempty"`
	State       *RunState `json:"state,omitempty"`
}

// InvokeResult is the process-boundary contract consumed by the REST front
// end.
type InvokeResult struct {
	Success     bool     `json:"success"`
	Status      string   `json:"status"`
	Progress    int      `json:"progress"`
	FinalReport string   `json:"final_report"`
	AgentsUsed  []string `json:"agents_used"`
	Error       *string  `json:"error"`
	RunID       string   `json:"run_id"`
}

// Options configure an Engine. Router, Stats, Media, Both and Synthesizer
// default to nodes built from Config when unset; everything is injected
// explicitly so the process entry point owns all lifecycles.
type Options struct {
	Config       *Config
	Decision     llm.Client
	Router       Node
	Stats        Node
	Media        Node
	Both         Node
	Synthesizer  Node
	Checkpointer Checkpointer
	Callbacks    RunCallbacks
	Logger       *slog.Logger
}

// Engine executes the workflow graph: START -> supervisor -> conditional
// dispatch to one worker node or the parallel join -> synthesize -> END.
// Every node invocation is guarded so the run always reaches a terminal
// report; the engine never panics or returns an error to the caller.
type Engine struct {
	router       Node
	stats        Node
	media        Node
	both         Node
	synthesizer  Node
	checkpointer Checkpointer
	callbacks    RunCallbacks
	logger       *slog.Logger
}

// NewEngine creates a workflow engine. Missing nodes are constructed from
// opts.Config (an unconfigured decision service or agent endpoint selects
// fallback/mock behavior, never a construction failure).
func NewEngine(opts Options) (*Engine, error) {
	if opts.Config == nil {
		opts.Config = &Config{}
		opts.Config.applyDefaults()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = NewMemoryCheckpointer(0)
	}
	if opts.Callbacks == nil {
		opts.Callbacks = BaseRunCallbacks{}
	}
	if opts.Decision == nil && opts.Config.Decision.Configured() {
		client, err := llm.NewAzureOpenAI(llm.AzureOpenAIConfig{
			Endpoint:   opts.Config.Decision.Endpoint,
			APIKey:     opts.Config.Decision.APIKey,
			Deployment: opts.Config.Decision.Deployment,
			APIVersion: opts.Config.Decision.APIVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build decision client: %w", err)
		}
		opts.Decision = client
	}
	if opts.Router == nil {
		opts.Router = NewRouterNode(RouterOptions{
			Client: opts.Decision,
			Logger: opts.Logger,
		})
	}

	agentClient := a2a.NewClient(a2a.Options{
		Timeout:        opts.Config.AgentTimeout.Std(),
		ConnectTimeout: opts.Config.AgentConnectTimeout.Std(),
		Logger:         opts.Logger,
	})
	var statsNode *StatsAgentNode
	var mediaNode *MediaAgentNode
	if opts.Stats == nil {
		statsNode = NewStatsAgentNode(StageOptions{
			Endpoint: opts.Config.StatsAgent.URL,
			APIKey:   opts.Config.AgentAPIKey,
			Client:   agentClient,
			Logger:   opts.Logger,
		})
		opts.Stats = statsNode
	}
	if opts.Media == nil {
		mediaNode = NewMediaAgentNode(StageOptions{
			Endpoint: opts.Config.MediaAgent.URL,
			APIKey:   opts.Config.AgentAPIKey,
			Client:   agentClient,
			Logger:   opts.Logger,
		})
		opts.Media = mediaNode
	}
	if opts.Both == nil {
		if statsNode == nil || mediaNode == nil {
			return nil, fmt.Errorf("both node required when stats or media nodes are custom")
		}
		opts.Both = NewBothAgentsNode(statsNode, mediaNode, opts.Config.JoinTimeout.Std(), opts.Logger)
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = NewSynthesizerNode(opts.Logger)
	}

	return &Engine{
		router:       opts.Router,
		stats:        opts.Stats,
		media:        opts.Media,
		both:         opts.Both,
		synthesizer:  opts.Synthesizer,
		checkpointer: opts.Checkpointer,
		callbacks:    opts.Callbacks,
		logger:       opts.Logger,
	}, nil
}

// Run executes the workflow for a query under a generated run ID.
func (e *Engine) Run(ctx context.Context, query string) *RunResult {
	return e.RunWithID(ctx, query, NewRunID())
}

// RunWithID executes the workflow under a caller-supplied run ID. If the
// run already reached a terminal state in the checkpoint store, its stored
// result is returned instead of re-executing.
func (e *Engine) RunWithID(ctx context.Context, query, runID string) *RunResult {
	if runID == "" {
		runID = NewRunID()
	}

	if prior, err := e.checkpointer.LoadCheckpoint(ctx, runID); err == nil && prior.State != nil && prior.State.Status.Terminal() {
		e.logger.Info("run already completed, returning checkpointed result", "run_id", runID)
		return resultFromState(prior.State)
	}

	logger := e.logger.With("run_id", runID)
	logger.Info("running query", "query", query)

	state := NewRunState(runID, query)
	sequence := 0

	e.callbacks.BeforeRun(ctx, &RunEvent{
		RunID:     runID,
		Query:     query,
		Status:    state.Status,
		StartTime: state.StartTime,
	})

	e.checkpoint(ctx, logger, state, "", &sequence)

	// START -> supervisor
	e.executeNode(ctx, logger, e.router, state, &sequence)

	// supervisor -> conditional dispatch
	target := RouteStats
	if state.Decision != nil {
		target = state.Decision.Target
	}
	switch target {
	case RouteStats:
		e.executeNode(ctx, logger, e.stats, state, &sequence)
	case RouteMedia:
		e.executeNode(ctx, logger, e.media, state, &sequence)
	case RouteBoth:
		e.executeNode(ctx, logger, e.both, state, &sequence)
	case RouteSynthesize:
		// fall straight through to synthesis
	}

	// worker -> synthesize -> END
	e.executeNode(ctx, logger, e.synthesizer, state, &sequence)

	state.Success = state.Error == ""
	state.EndTime = time.Now()
	e.checkpoint(ctx, logger, state, NodeSynthesize, &sequence)

	e.callbacks.AfterRun(ctx, &RunEvent{
		RunID:     runID,
		Query:     query,
		Status:    state.Status,
		StartTime: state.StartTime,
		EndTime:   state.EndTime,
		Duration:  state.EndTime.Sub(state.StartTime),
		Error:     state.Error,
	})

	logger.Info("run finished",
		"status", state.Status,
		"progress", state.Progress,
		"agents", state.AgentHistory,
		"success", state.Success)

	return resultFromState(state)
}

// Invoke is the process-boundary call surface for the REST front end. An
// empty runID generates one.
func (e *Engine) Invoke(ctx context.Context, query, runID string) *InvokeResult {
	result := e.RunWithID(ctx, query, runID)
	var errPtr *string
	if result.Error != "" {
		errText := result.Error
		errPtr = &errText
	}
	agents := result.AgentsUsed
	if agents == nil {
		agents = []string{}
	}
	return &InvokeResult{
		Success:     result.Success,
		Status:      string(result.Status),
		Progress:    result.Progress,
		FinalReport: result.FinalReport,
		AgentsUsed:  agents,
		Error:       errPtr,
		RunID:       result.RunID,
	}
}

// Inspect returns the result of a previously checkpointed run.
func (e *Engine) Inspect(ctx context.Context, runID string) (*RunResult, error) {
	checkpoint, err := e.checkpointer.LoadCheckpoint(ctx, runID)
	if err != nil {
		return nil, err
	}
	return resultFromState(checkpoint.State), nil
}

// ListRuns returns summaries of all checkpointed runs.
func (e *Engine) ListRuns(ctx context.Context) ([]*RunSummary, error) {
	return e.checkpointer.ListRuns(ctx)
}

// executeNode runs one node with the engine's guard: the node gets a state
// snapshot, its partial update is merged into the run state, and any error
// or panic is converted into state.Error with the node's error status so
// the run still reaches synthesis.
func (e *Engine) executeNode(ctx context.Context, logger *slog.Logger, node Node, state *RunState, sequence *int) {
	startTime := time.Now()
	e.callbacks.BeforeNode(ctx, &NodeEvent{
		RunID:     state.RunID,
		NodeName:  node.Name(),
		Status:    state.Status,
		StartTime: startTime,
	})

	update, err := e.runGuarded(ctx, node, state)
	if err != nil {
		classified := ClassifyError(err)
		logger.Error("node failed", "node", node.Name(), "error", err)
		update = e.errorUpdate(node.Name(), classified)
	}
	state.apply(update)

	endTime := time.Now()
	e.callbacks.AfterNode(ctx, &NodeEvent{
		RunID:     state.RunID,
		NodeName:  node.Name(),
		Status:    state.Status,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Error:     err,
	})

	e.checkpoint(ctx, logger, state, node.Name(), sequence)
}

// runGuarded invokes the node against a copy of the state, converting a
// panic into an error.
func (e *Engine) runGuarded(ctx context.Context, node Node, state *RunState) (update *StateUpdate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s panicked: %v", node.Name(), r)
		}
	}()
	return node.Run(ctx, state.Copy())
}

// errorUpdate builds the merge record for a failed node: the failure is
// recorded, the node is marked with its error status, and the run routes
// onward to synthesis.
func (e *Engine) errorUpdate(nodeName string, classified *RunError) *StateUpdate {
	update := &StateUpdate{
		Err:      fmt.Sprintf("%s error: %s", nodeName, classified.Cause),
		NextNode: NodeSynthesize,
	}
	errText := "Error: " + classified.Cause
	switch nodeName {
	case NodeSupervisor:
		update.Status = StatusSupervisorError
		update.Decision = &RoutingDecision{
			Target:    RouteSynthesize,
			Reasoning: "Supervisor error: " + classified.Cause,
		}
	case NodeStats:
		update.Status = StatusStatsError
		update.Progress = 50
		update.StatsResponse = errText
		update.AgentsRun = []string{NodeStats}
	case NodeMedia:
		update.Status = StatusMediaError
		update.Progress = 50
		update.MediaResponse = errText
		update.AgentsRun = []string{NodeMedia}
	case NodeBoth:
		update.Status = StatusBothError
		update.Progress = 50
		update.StatsResponse = errText
		update.MediaResponse = errText
		update.AgentsRun = []string{NodeStats, NodeMedia}
	case NodeSynthesize:
		update.Status = StatusSynthesisError
		update.Progress = 100
		update.FinalReport = "# Error During Synthesis\n\n" + classified.Cause
	}
	return update
}

// checkpoint snapshots the run state. Checkpoint failures are logged and
// do not interrupt the run.
func (e *Engine) checkpoint(ctx context.Context, logger *slog.Logger, state *RunState, lastNode string, sequence *int) {
	*sequence++
	err := e.checkpointer.SaveCheckpoint(ctx, &Checkpoint{
		RunID:        state.RunID,
		Sequence:     *sequence,
		LastNode:     lastNode,
		State:        state.Copy(),
		CheckpointAt: time.Now(),
	})
	if err != nil {
		logger.Error("failed to save checkpoint", "error", err)
	}
}

func resultFromState(state *RunState) *RunResult {
	return &RunResult{
		RunID:       state.RunID,
		Success:     state.Success,
		Status:      state.Status,
		Progress:    state.Progress,
		FinalReport: state.FinalReport,
		AgentsUsed:  append([]string(nil), state.AgentHistory...),
		Error:       state.Error,
		State:       state.Copy(),
	}
}
