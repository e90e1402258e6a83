// Package tools binds the capability server's tool set to the agent. A
// binding is an immutable snapshot; rebinding swaps the whole snapshot so a
// turn in flight keeps the tools it started with.
package tools

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/logging"
)

// Agent instructions, chosen solely by whether any tools are bound.
const (
	InstructionsWithTools = "Use the tools to answer the questions. Maintain context from previous messages in the conversation. " +
		"You now have access to home automation tools - help users control their smart home devices."
	InstructionsWithoutTools = "You are a helpful AI agent. You currently don't have access to any tools or external systems. " +
		"Explain to users that they need to start the MCP server to access home automation capabilities."
)

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ErrorResult builds an error-shaped result.
func ErrorResult(msg string) *ToolResult {
	return &ToolResult{Content: msg, IsError: true}
}

// Executor runs tool calls against whatever provides the bound tools.
type Executor interface {
	Execute(ctx context.Context, call *ai.ToolCall) *ToolResult
}

// Binding is the agent configuration for one capability state.
type Binding struct {
	Instructions string
	Tools        []ai.ToolDefinition
	executor     Executor
}

// HasTools reports whether any tools are bound.
func (b *Binding) HasTools() bool {
	return len(b.Tools) > 0
}

// ToolNames lists bound tool names in binding order.
func (b *Binding) ToolNames() []string {
	names := make([]string, len(b.Tools))
	for i, t := range b.Tools {
		names[i] = t.Name
	}
	return names
}

// Execute dispatches a call. Calls to tools outside this binding fail without
// reaching the executor.
func (b *Binding) Execute(ctx context.Context, call *ai.ToolCall) *ToolResult {
	if b.executor == nil {
		return ErrorResult("No tools are available. Start the MCP server first.")
	}
	if !slices.ContainsFunc(b.Tools, func(t ai.ToolDefinition) bool { return t.Name == call.Name }) {
		return ErrorResult("Unknown tool: " + call.Name)
	}
	return b.executor.Execute(ctx, call)
}

// ChangeListener is called after every rebind with the new binding.
type ChangeListener func(b *Binding)

// Binder holds the current binding.
type Binder struct {
	current   atomic.Pointer[Binding]
	mu        sync.Mutex
	listeners []ChangeListener
}

// NewBinder starts with no tools bound.
func NewBinder() *Binder {
	b := &Binder{}
	b.current.Store(newBinding(nil, nil))
	return b
}

func newBinding(defs []ai.ToolDefinition, exec Executor) *Binding {
	if len(defs) == 0 {
		return &Binding{Instructions: InstructionsWithoutTools}
	}
	return &Binding{
		Instructions: InstructionsWithTools,
		Tools:        slices.Clone(defs),
		executor:     exec,
	}
}

// Current returns the active binding. Callers keep the pointer for the
// duration of a turn.
func (b *Binder) Current() *Binding {
	return b.current.Load()
}

// Rebind replaces the binding. An empty tool list unbinds the executor too.
func (b *Binder) Rebind(defs []ai.ToolDefinition, exec Executor) *Binding {
	next := newBinding(defs, exec)
	b.current.Store(next)
	logging.Infof("[Binder] rebound agent with %d tools", len(next.Tools))

	b.mu.Lock()
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// OnChange registers a listener for rebinds.
func (b *Binder) OnChange(fn ChangeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}
