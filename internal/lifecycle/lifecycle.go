// Package lifecycle provides event hooks for capability server transitions,
// conversation turns and process startup/shutdown.
package lifecycle

import (
	"sync"

	"github.com/neboloop/hearth/internal/logging"
)

// Event types for lifecycle hooks
type Event string

const (
	// Process lifecycle events
	EventServerStarted    Event = "server_started"
	EventShutdownStarted  Event = "shutdown_started"
	EventShutdownComplete Event = "shutdown_complete"

	// Capability server events
	EventCapabilityStarting Event = "capability_starting"
	EventCapabilityReady    Event = "capability_ready"
	EventCapabilityFailed   Event = "capability_failed"
	EventCapabilityStopped  Event = "capability_stopped"
	EventToolsRebound       Event = "tools_rebound"

	// Session lifecycle events
	EventSessionNew   Event = "session_new"
	EventSessionReset Event = "session_reset"

	// Agent run events
	EventAgentRunStart    Event = "agent_run_start"
	EventAgentRunComplete Event = "agent_run_complete"
	EventAgentRunError    Event = "agent_run_error"
	EventToolCall         Event = "tool_call"
)

// Handler is a function that handles a lifecycle event
type Handler func(event Event, data any)

// Manager manages lifecycle event subscriptions and dispatching
type Manager struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	any      []Handler
}

// NewManager returns an empty manager. Most callers use the package-level
// functions, which share one global manager.
func NewManager() *Manager {
	return &Manager{handlers: make(map[Event][]Handler)}
}

// Global lifecycle manager
var global = NewManager()

// Default returns the global manager.
func Default() *Manager {
	return global
}

// On registers a handler for a lifecycle event
func On(event Event, handler Handler) {
	global.On(event, handler)
}

// Emit dispatches an event to all registered handlers
func Emit(event Event, data any) {
	global.Emit(event, data)
}

// On registers a handler for a lifecycle event
func (m *Manager) On(event Event, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// OnAll registers a handler that receives every event.
func (m *Manager) OnAll(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.any = append(m.any, handler)
}

// Emit dispatches an event to all registered handlers
func (m *Manager) Emit(event Event, data any) {
	m.mu.RLock()
	handlers := append([]Handler(nil), m.handlers[event]...)
	handlers = append(handlers, m.any...)
	m.mu.RUnlock()

	logging.Debugf("[lifecycle] Emitting event: %s", event)
	for _, h := range handlers {
		// Run handlers synchronously (they can spawn goroutines if needed)
		h(event, data)
	}
}

// SessionEventData contains data for session lifecycle events
type SessionEventData struct {
	SessionID string
}

// AgentRunEventData contains data for agent run events. Events of one
// conversation share a SessionID, which groups them into a trace.
type AgentRunEventData struct {
	SessionID  string
	Tools      int
	ToolCalls  int
	DurationMS int64
	Error      error
}

// ToolCallEventData describes one tool invocation inside a run.
type ToolCallEventData struct {
	SessionID string
	Tool      string
	IsError   bool
}

// CapabilityEventData describes a capability server transition.
type CapabilityEventData struct {
	PID     int
	State   string
	Tools   int
	Message string
}

// OnCapability registers a handler for every capability server transition.
func (m *Manager) OnCapability(handler func(e Event, data CapabilityEventData)) {
	for _, ev := range []Event{EventCapabilityStarting, EventCapabilityReady, EventCapabilityFailed, EventCapabilityStopped} {
		m.On(ev, func(e Event, data any) {
			if d, ok := data.(CapabilityEventData); ok {
				handler(e, d)
			}
		})
	}
}

