package courtflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/courtflow-ai/courtflow/llm"
)

// routingPrompt is the fixed system instruction sent to the decision
// service for every routing call.
const routingPrompt = `You are an intelligent NBA and media assistant coordinator supervisor.

Your responsibility is to analyze user queries and route them to the most appropriate agent(s):

ROUTING OPTIONS:
1. "stats_agent" - For queries about:
   - NBA player statistics and performance metrics
   - Game results and box scores
   - Team statistics and records
   - Historical NBA data and trends
   - Player comparisons and rankings

2. "media_agent" - For queries about:
   - Media recommendations and content suggestions
   - Entertainment and entertainment-related topics
   - Streaming recommendations
   - Content availability and platforms

3. "both" - When the query requires BOTH agents:
   - "Show me highlights of top scorers" (needs stats + media)
   - "Recommend NBA content about LeBron" (needs stats context + media)
   - Multi-faceted queries requiring stats and media combined

4. "synthesize" - When combining results from previously gathered data:
   - "Compare the results" (when previous agents have run)
   - "Summarize what we found" (aggregating previous results)

IMPORTANT:
- Only return valid JSON, no markdown code blocks
- Ensure your reasoning is concise and clear
- If unsure, default to "stats_agent" for NBA-related queries

Return ONLY valid JSON (no markdown, no code blocks):
{
    "next_agent": "stats_agent" | "media_agent" | "both" | "synthesize",
    "reasoning": "Clear explanation of why this agent(s) was chosen",
    "needs_more_info": false
}`

// DefaultRoutingHistoryCapacity bounds the in-memory routing history.
const DefaultRoutingHistoryCapacity = 256

// RoutingRecord is one entry in the routing history.
type RoutingRecord struct {
	Query     string `json:"query"`
	Decision  string `json:"decision"`
	Reasoning string `json:"reasoning"`
	Success   bool   `json:"success"`
}

// RoutingHistory is a bounded, concurrency-safe log of routing decisions.
// When the capacity is reached the oldest entries are dropped.
type RoutingHistory struct {
	mutex    sync.Mutex
	capacity int
	records  []RoutingRecord
}

// NewRoutingHistory creates a history bounded to capacity entries. A
// non-positive capacity selects the default.
func NewRoutingHistory(capacity int) *RoutingHistory {
	if capacity <= 0 {
		capacity = DefaultRoutingHistoryCapacity
	}
	return &RoutingHistory{capacity: capacity}
}

// Append records a routing decision, evicting the oldest entry if full.
func (h *RoutingHistory) Append(record RoutingRecord) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(h.records) >= h.capacity {
		h.records = h.records[1:]
	}
	h.records = append(h.records, record)
}

// Records returns a copy of the history, oldest first.
func (h *RoutingHistory) Records() []RoutingRecord {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return append([]RoutingRecord(nil), h.records...)
}

// Clear removes all history entries.
func (h *RoutingHistory) Clear() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.records = nil
}

// RouterOptions configure a RouterNode.
type RouterOptions struct {
	// Client is the decision service. When nil the router always falls
	// back to the default decision.
	Client llm.Client

	// History receives one record per routing call. Defaults to a new
	// bounded history.
	History *RoutingHistory

	Logger *slog.Logger
}

// RouterNode asks the decision service which agent(s) should handle the
// query. Any failure, transport or parse or validation, falls back to the
// stats agent with a diagnostic reasoning string; the node itself never
// returns an error.
type RouterNode struct {
	client  llm.Client
	history *RoutingHistory
	logger  *slog.Logger
}

// NewRouterNode creates the supervisor routing node.
func NewRouterNode(opts RouterOptions) *RouterNode {
	if opts.History == nil {
		opts.History = NewRoutingHistory(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RouterNode{
		client:  opts.Client,
		history: opts.History,
		logger:  opts.Logger,
	}
}

func (r *RouterNode) Name() string {
	return NodeSupervisor
}

// History returns the router's routing history.
func (r *RouterNode) History() *RoutingHistory {
	return r.history
}

// Run routes the query. An empty query short-circuits straight to
// synthesis without consulting the decision service.
func (r *RouterNode) Run(ctx context.Context, state *RunState) (*StateUpdate, error) {
	if strings.TrimSpace(state.Query) == "" {
		r.logger.Warn("no query provided, routing to synthesize")
		return &StateUpdate{
			Decision: &RoutingDecision{
				Target:    RouteSynthesize,
				Reasoning: "No user message provided",
			},
			Status:   StatusSupervisorComplete,
			Progress: 25,
		}, nil
	}

	decision, ok := r.route(ctx, state.Query)

	r.history.Append(RoutingRecord{
		Query:     state.Query,
		Decision:  string(decision.Target),
		Reasoning: decision.Reasoning,
		Success:   ok,
	})

	r.logger.Info("routing decision",
		"target", decision.Target,
		"reasoning", decision.Reasoning,
		"success", ok)

	return &StateUpdate{
		Decision: decision,
		Status:   StatusSupervisorComplete,
		Progress: 25,
	}, nil
}

// route consults the decision service and validates its output. The second
// return value reports whether the decision came from the service (true) or
// from the fallback (false).
func (r *RouterNode) route(ctx context.Context, query string) (*RoutingDecision, bool) {
	if r.client == nil {
		return fallbackDecision("no decision service configured"), false
	}

	raw, err := r.client.Complete(ctx, routingPrompt, "Route this query: "+query)
	if err != nil {
		r.logger.Error("decision service call failed", "error", err)
		return fallbackDecision(fmt.Sprintf("Error calling decision service: %v", err)), false
	}

	decision, err := parseRoutingDecision(raw)
	if err != nil {
		r.logger.Error("routing decision rejected", "error", err, "raw", truncateForLog(raw))
		return fallbackDecision(fmt.Sprintf("Error parsing routing decision: %v", err)), false
	}
	return decision, true
}

// fallbackDecision is the safe default route used whenever the decision
// service cannot be trusted.
func fallbackDecision(diagnostic string) *RoutingDecision {
	return &RoutingDecision{
		Target:    RouteStats,
		Reasoning: diagnostic + ". Defaulting to stats_agent.",
	}
}

// parseRoutingDecision strips code fences, parses the JSON body, and
// validates the next_agent value.
func parseRoutingDecision(raw string) (*RoutingDecision, error) {
	cleaned := stripCodeFences(raw)

	var decision struct {
		NextAgent     string `json:"next_agent"`
		Reasoning     string `json:"reasoning"`
		NeedsMoreInfo bool   `json:"needs_more_info"`
	}
	if err := json.Unmarshal([]byte(cleaned), &decision); err != nil {
		return nil, NewRunError(ErrorTypeValidation, "invalid routing JSON: "+err.Error())
	}
	if decision.NextAgent == "" {
		return nil, NewRunError(ErrorTypeValidation, "missing next_agent field in routing decision")
	}
	if !ValidRouteTarget(decision.NextAgent) {
		return nil, NewRunError(ErrorTypeValidation,
			fmt.Sprintf("invalid agent %q, must be one of stats_agent, media_agent, both, synthesize", decision.NextAgent))
	}
	return &RoutingDecision{
		Target:        RouteTarget(decision.NextAgent),
		Reasoning:     decision.Reasoning,
		NeedsMoreInfo: decision.NeedsMoreInfo,
	}, nil
}

// stripCodeFences removes Markdown code-fence wrapping from a model
// response, including an optional "json" language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

func truncateForLog(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200]
}
