package courtflow

import (
	"context"
)

// Node is a single stage in the workflow graph. A node receives a snapshot
// of the run state and returns a partial update; it must not retain or
// mutate the state it is given. An error return is recorded by the engine
// and the run still proceeds to synthesis.
type Node interface {

	// Name returns the node's graph name.
	Name() string

	// Run executes the node against a state snapshot.
	Run(ctx context.Context, state *RunState) (*StateUpdate, error)
}

// Graph node names.
const (
	NodeSupervisor = "supervisor"
	NodeStats      = "stats_agent"
	NodeMedia      = "media_agent"
	NodeBoth       = "both_agents"
	NodeSynthesize = "synthesize"
)

// NodeFunc adapts a function to the Node interface.
type NodeFunc struct {
	name string
	fn   func(ctx context.Context, state *RunState) (*StateUpdate, error)
}

// NewNodeFunc creates a Node from a function.
func NewNodeFunc(name string, fn func(ctx context.Context, state *RunState) (*StateUpdate, error)) *NodeFunc {
	return &NodeFunc{name: name, fn: fn}
}

func (n *NodeFunc) Name() string {
	return n.name
}

func (n *NodeFunc) Run(ctx context.Context, state *RunState) (*StateUpdate, error) {
	return n.fn(ctx, state)
}
