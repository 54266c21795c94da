package courtflow

import (
	"context"
	"time"
)

// RunCallbacks is the hook interface for run execution events.
type RunCallbacks interface {
	BeforeRun(ctx context.Context, event *RunEvent)
	AfterRun(ctx context.Context, event *RunEvent)
	BeforeNode(ctx context.Context, event *NodeEvent)
	AfterNode(ctx context.Context, event *NodeEvent)
}

// RunEvent provides context for run-level events.
type RunEvent struct {
	RunID     string
	Query     string
	Status    RunStatus
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     string
}

// NodeEvent provides context for node-level events.
type NodeEvent struct {
	RunID     string
	NodeName  string
	Status    RunStatus
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// BaseRunCallbacks is a default implementation that does nothing. Embed it
// to implement only the hooks you care about.
type BaseRunCallbacks struct{}

func (BaseRunCallbacks) BeforeRun(ctx context.Context, event *RunEvent)   {}
func (BaseRunCallbacks) AfterRun(ctx context.Context, event *RunEvent)    {}
func (BaseRunCallbacks) BeforeNode(ctx context.Context, event *NodeEvent) {}
func (BaseRunCallbacks) AfterNode(ctx context.Context, event *NodeEvent)  {}

// CallbackChain fans events out to multiple callback implementations in
// order.
type CallbackChain struct {
	callbacks []RunCallbacks
}

// NewCallbackChain creates a chain over the given callbacks.
func NewCallbackChain(callbacks ...RunCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add appends a callback to the chain.
func (c *CallbackChain) Add(callback RunCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeRun(ctx context.Context, event *RunEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeRun(ctx, event)
	}
}

func (c *CallbackChain) AfterRun(ctx context.Context, event *RunEvent) {
	for _, callback := range c.callbacks {
		callback.AfterRun(ctx, event)
	}
}

func (c *CallbackChain) BeforeNode(ctx context.Context, event *NodeEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeNode(ctx, event)
	}
}

func (c *CallbackChain) AfterNode(ctx context.Context, event *NodeEvent) {
	for _, callback := range c.callbacks {
		callback.AfterNode(ctx, event)
	}
}
