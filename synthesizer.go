package courtflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SynthesizerNode builds the final report from the terminal run state. It
// is deterministic for a given state, always terminal, and never returns an
// error: an internal failure produces an error report instead.
type SynthesizerNode struct {
	logger *slog.Logger
}

// NewSynthesizerNode creates the synthesis node.
func NewSynthesizerNode(logger *slog.Logger) *SynthesizerNode {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SynthesizerNode{logger: logger}
}

func (n *SynthesizerNode) Name() string {
	return NodeSynthesize
}

func (n *SynthesizerNode) Run(ctx context.Context, state *RunState) (update *StateUpdate, _ error) {
	n.logger.Info("synthesizing results")

	// Synthesis must always yield a report, even if report building panics.
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("report generation failed", "panic", r)
			update = &StateUpdate{
				Status:      StatusSynthesisError,
				Progress:    100,
				FinalReport: fmt.Sprintf("# Error During Synthesis\n\n%v\n\n**Query**: %s", r, state.Query),
				Err:         NewRunError(ErrorTypeSynthesis, fmt.Sprint(r)).Error(),
			}
		}
	}()

	status := StatusCompleted
	if state.Error != "" {
		status = StatusError
	}

	report := buildReport(state, status)

	n.logger.Info("report generated", "status", status)
	return &StateUpdate{
		Status:      status,
		Progress:    100,
		FinalReport: report,
	}, nil
}

// buildReport renders the report sections in fixed order: header, query,
// workflow summary, error block, stats, media, insights.
func buildReport(state *RunState, status RunStatus) string {
	var parts []string
	parts = append(parts, "# Multi-Agent NBA Analytics Report\n")
	parts = append(parts, fmt.Sprintf("## Query\n%s\n", state.Query))

	agentsUsed := "None"
	if len(state.AgentHistory) > 0 {
		agentsUsed = strings.Join(state.AgentHistory, " -> ")
	}
	parts = append(parts, "## Workflow Summary")
	parts = append(parts, fmt.Sprintf("- **Agents Used**: %s", agentsUsed))
	parts = append(parts, fmt.Sprintf("- **Status**: %s", status))
	parts = append(parts, "- **Progress**: 100%\n")

	if state.Error != "" {
		parts = append(parts, fmt.Sprintf("## Error\n%s\n", state.Error))
	}
	if state.StatsResponse != "" {
		parts = append(parts, "## NBA Statistics\n", state.StatsResponse, "\n")
	}
	if state.MediaResponse != "" {
		parts = append(parts, "## Media Recommendations\n", state.MediaResponse, "\n")
	}
	if len(state.Insights) > 0 {
		parts = append(parts, "## Key Insights\n")
		for _, insight := range state.Insights {
			parts = append(parts, fmt.Sprintf("- %s\n", insight))
		}
	}
	return strings.Join(parts, "\n")
}
