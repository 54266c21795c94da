package courtflow

import (
	"time"
)

// RouteTarget identifies which worker node(s) the supervisor selected.
type RouteTarget string

const (
	RouteStats      RouteTarget = "stats_agent"
	RouteMedia      RouteTarget = "media_agent"
	RouteBoth       RouteTarget = "both"
	RouteSynthesize RouteTarget = "synthesize"
)

// ValidRouteTarget reports whether s is one of the four allowed targets.
func ValidRouteTarget(s string) bool {
	switch RouteTarget(s) {
	case RouteStats, RouteMedia, RouteBoth, RouteSynthesize:
		return true
	}
	return false
}

// RoutingDecision is the supervisor's routing output. It is created once,
// either from the decision service response or from the fallback, and is
// never modified afterwards.
type RoutingDecision struct {
	Target        RouteTarget `json:"next_agent"`
	Reasoning     string      `json:"reasoning"`
	NeedsMoreInfo bool        `json:"needs_more_info"`
}

// RunStatus tracks where a run is in its lifecycle. Statuses only ever
// advance; the merge logic never moves a run backwards.
type RunStatus string

const (
	StatusInitialized        RunStatus = "initialized"
	StatusSupervisorComplete RunStatus = "supervisor_complete"
	StatusSupervisorError    RunStatus = "supervisor_error"
	StatusStatsComplete      RunStatus = "stats_agent_complete"
	StatusStatsError         RunStatus = "stats_agent_error"
	StatusMediaComplete      RunStatus = "media_agent_complete"
	StatusMediaError         RunStatus = "media_agent_error"
	StatusBothComplete       RunStatus = "both_agents_complete"
	StatusBothError          RunStatus = "both_agents_error"
	StatusCompleted          RunStatus = "completed"
	StatusError              RunStatus = "error"
	StatusSynthesisError     RunStatus = "synthesis_error"
)

// Terminal reports whether the status is one of the synthesis outcomes.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusSynthesisError
}

// RunState is the complete state of one workflow run. The engine owns the
// single instance for the duration of the run; nodes receive it read-only
// and return StateUpdate records that the engine merges.
type RunState struct {
	RunID         string           `json:"run_id"`
	Query         string           `json:"query"`
	Decision      *RoutingDecision `json:"routing_decision,omitempty"`
	Status        RunStatus        `json:"status"`
	Progress      int              `json:"progress"`
	AgentHistory  []string         `json:"agent_history"`
	StatsResponse string           `json:"stats_agent_response,omitempty"`
	MediaResponse string           `json:"media_agent_response,omitempty"`
	Insights      []string         `json:"insights,omitempty"`
	FinalReport   string           `json:"final_report,omitempty"`
	Error         string           `json:"error,omitempty"`
	Success       bool             `json:"success"`
	StartTime     time.Time        `json:"start_time,omitzero"`
	EndTime       time.Time        `json:"end_time,omitzero"`
}

// NewRunState creates the initial state for a run.
func NewRunState(runID, query string) *RunState {
	return &RunState{
		RunID:     runID,
		Query:     query,
		Status:    StatusInitialized,
		Progress:  10,
		StartTime: time.Now(),
	}
}

// Copy returns a deep copy of the run state, suitable for checkpointing or
// handing to a node without aliasing the engine's instance.
func (s *RunState) Copy() *RunState {
	dup := *s
	if s.Decision != nil {
		decision := *s.Decision
		dup.Decision = &decision
	}
	dup.AgentHistory = append([]string(nil), s.AgentHistory...)
	dup.Insights = append([]string(nil), s.Insights...)
	return &dup
}

// AgentOutputs returns the responses keyed by agent name, for agents that
// actually produced output.
func (s *RunState) AgentOutputs() map[string]string {
	outputs := make(map[string]string, 2)
	if s.StatsResponse != "" {
		outputs[string(RouteStats)] = s.StatsResponse
	}
	if s.MediaResponse != "" {
		outputs[string(RouteMedia)] = s.MediaResponse
	}
	return outputs
}

// StateUpdate is a partial update returned by a node. Zero-valued fields are
// ignored during the merge, so a node only names the fields it produced.
type StateUpdate struct {
	Decision      *RoutingDecision
	Status        RunStatus
	Progress      int
	AgentsRun     []string
	StatsResponse string
	MediaResponse string
	Insights      []string
	FinalReport   string
	Err           string
	NextNode      string
}

// statusRank orders statuses so merges never regress a run. Error variants
// rank alongside their completion counterparts.
var statusRank = map[RunStatus]int{
	StatusInitialized:        0,
	StatusSupervisorComplete: 1,
	StatusSupervisorError:    1,
	StatusStatsComplete:      2,
	StatusStatsError:         2,
	StatusMediaComplete:      2,
	StatusMediaError:         2,
	StatusBothComplete:       2,
	StatusBothError:          2,
	StatusCompleted:          3,
	StatusError:              3,
	StatusSynthesisError:     3,
}

// apply merges a node's partial update into the run state. The rules:
// routing decision and agent responses are write-once, agent history is
// append-only, progress is monotonically non-decreasing, the first error
// recorded is kept, and status never moves backwards.
func (s *RunState) apply(u *StateUpdate) {
	if u == nil {
		return
	}
	if u.Decision != nil && s.Decision == nil {
		s.Decision = u.Decision
	}
	if u.Status != "" && statusRank[u.Status] >= statusRank[s.Status] {
		s.Status = u.Status
	}
	if u.Progress > s.Progress {
		s.Progress = u.Progress
	}
	s.AgentHistory = append(s.AgentHistory, u.AgentsRun...)
	if u.StatsResponse != "" && s.StatsResponse == "" {
		s.StatsResponse = u.StatsResponse
	}
	if u.MediaResponse != "" && s.MediaResponse == "" {
		s.MediaResponse = u.MediaResponse
	}
	s.Insights = append(s.Insights, u.Insights...)
	if u.FinalReport != "" && s.FinalReport == "" {
		s.FinalReport = u.FinalReport
	}
	if u.Err != "" && s.Error == "" {
		s.Error = u.Err
	}
}
