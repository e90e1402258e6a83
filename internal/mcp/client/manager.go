// Package client owns the capability server child process: it spawns it,
// speaks MCP to it over the child's stdio, caches its tool list and rebinds
// the agent whenever the server comes or goes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/agent/tools"
	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/lifecycle"
	"github.com/neboloop/hearth/internal/logging"
)

// State is the liveness state of the capability server.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Status strings shown to the user.
const (
	MsgStarted = "✅ MCP Server started! AI Agent now has access to home automation tools."
	MsgStopped = "🛑 MCP Server stopped. AI Agent now works without tools (general assistance only)."
)

// ErrNotRunning is returned by protocol calls when no server is ready.
var ErrNotRunning = errors.New("MCP server is not running")

// StartupError explains why Start did not reach the ready state.
type StartupError struct {
	Kind   string // missing_file, missing_executable, exited, handshake, spawn
	Detail string
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *StartupError) Unwrap() error { return e.Err }

// Status renders the error the way the front ends show it.
func (e *StartupError) Status() string {
	switch e.Kind {
	case "missing_file":
		return "❌ MCP server file not found: " + e.Detail
	case "missing_executable":
		return "❌ MCP server executable not found: " + e.Detail
	case "exited":
		return "❌ Server failed to start: " + e.Detail
	default:
		return "❌ Error starting MCP server: " + e.Error()
	}
}

// Options configures a Manager.
type Options struct {
	// Executable is launched as "<Executable> <File>".
	Executable string
	File       string

	StartupGrace     time.Duration
	HandshakeTimeout time.Duration
	ShutdownTimeout  time.Duration
	ToolTimeout      time.Duration

	ClientName    string
	ClientVersion string
}

// OptionsFromConfig resolves the executable and copies the timeouts. An
// unresolvable executable is kept as configured and reported by Start.
func OptionsFromConfig(c config.CapabilityConfig, version string) Options {
	exe, err := c.ResolveExecutable()
	if err != nil {
		exe = c.Executable
	}
	return Options{
		Executable:       exe,
		File:             c.File,
		StartupGrace:     c.StartupGrace,
		HandshakeTimeout: c.HandshakeTimeout,
		ShutdownTimeout:  c.ShutdownTimeout,
		ToolTimeout:      c.ToolTimeout,
		ClientName:       "hearth",
		ClientVersion:    version,
	}
}

func (o *Options) applyDefaults() {
	if o.StartupGrace <= 0 {
		o.StartupGrace = 2 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 30 * time.Second
	}
	if o.ClientName == "" {
		o.ClientName = "hearth"
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "dev"
	}
}

// Snapshot is a lock-free view of the manager, safe to read from binding
// listeners and HTTP handlers while a transition is in progress.
type Snapshot struct {
	State     State    `json:"state"`
	PID       int      `json:"pid,omitempty"`
	Tools     []string `json:"tools"`
	LastError string   `json:"last_error,omitempty"`

	defs []ai.ToolDefinition
}

// handle is one running capability server.
type handle struct {
	proc    *process
	session *mcp.ClientSession
	tools   []ai.ToolDefinition
}

// Manager is the Connection Manager. Lifecycle transitions and tool calls
// share mu, so a tool call never races a start or stop.
type Manager struct {
	opts   Options
	binder *tools.Binder
	events *lifecycle.Manager

	mu     sync.Mutex
	handle *handle

	snap atomic.Pointer[Snapshot]
}

// NewManager creates a stopped manager that rebinds binder on every change.
func NewManager(opts Options, binder *tools.Binder, events *lifecycle.Manager) *Manager {
	opts.applyDefaults()
	if events == nil {
		events = lifecycle.Default()
	}
	m := &Manager{opts: opts, binder: binder, events: events}
	m.setState(StateStopped, 0, nil, "")
	return m
}

func (m *Manager) Snapshot() Snapshot {
	s := *m.snap.Load()
	s.Tools = append([]string{}, s.Tools...)
	s.defs = nil
	return s
}

func (m *Manager) State() State { return m.snap.Load().State }

// PID of the running child, or 0.
func (m *Manager) PID() int { return m.snap.Load().PID }

// Tools returns the cached tool list of the ready server.
func (m *Manager) Tools() []ai.ToolDefinition {
	return append([]ai.ToolDefinition(nil), m.snap.Load().defs...)
}

func (m *Manager) setState(state State, pid int, defs []ai.ToolDefinition, lastErr string) {
	m.snap.Store(&Snapshot{State: state, PID: pid, Tools: toolNames(defs), LastError: lastErr, defs: defs})
}

// Start launches the capability server, or restarts it if one is running.
// It always returns a status string; failures leave the agent without tools.
func (m *Manager) Start(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		logging.Info("[MCP] Restarting capability server")
		if err := m.stopLocked(ctx); err != nil {
			logging.Warnf("[MCP] Stopping previous server: %v", err)
		}
	}

	h, err := m.startLocked(ctx)
	if err != nil {
		var se *StartupError
		if !errors.As(err, &se) {
			se = &StartupError{Kind: "spawn", Detail: m.opts.Executable, Err: err}
		}
		logging.Errorf("[MCP] Start failed: %v", se)
		m.setState(StateFailed, 0, nil, se.Error())
		m.binder.Rebind(nil, nil)
		m.events.Emit(lifecycle.EventCapabilityFailed, lifecycle.CapabilityEventData{
			State:   string(StateFailed),
			Message: se.Error(),
		})
		return se.Status()
	}

	m.handle = h
	names := toolNames(h.tools)
	m.setState(StateReady, h.proc.pid, h.tools, "")
	m.binder.Rebind(h.tools, m)
	go m.watch(h)

	logging.Infof("[MCP] Server ready (pid %d) with %d tools: %s", h.proc.pid, len(names), strings.Join(names, ", "))
	m.events.Emit(lifecycle.EventCapabilityReady, lifecycle.CapabilityEventData{
		PID:   h.proc.pid,
		State: string(StateReady),
		Tools: len(names),
	})
	m.events.Emit(lifecycle.EventToolsRebound, lifecycle.CapabilityEventData{
		PID:   h.proc.pid,
		State: string(StateReady),
		Tools: len(names),
	})
	return MsgStarted
}

func (m *Manager) startLocked(ctx context.Context) (*handle, error) {
	if _, err := os.Stat(m.opts.Executable); err != nil {
		return nil, &StartupError{Kind: "missing_executable", Detail: m.opts.Executable, Err: err}
	}
	if _, err := os.Stat(m.opts.File); err != nil {
		return nil, &StartupError{Kind: "missing_file", Detail: m.opts.File}
	}

	m.setState(StateStarting, 0, nil, "")
	m.events.Emit(lifecycle.EventCapabilityStarting, lifecycle.CapabilityEventData{State: string(StateStarting)})

	proc, err := spawn(m.opts.Executable, m.opts.File)
	if err != nil {
		return nil, &StartupError{Kind: "spawn", Detail: m.opts.Executable, Err: err}
	}
	logging.Infof("[MCP] Spawned %s %s (pid %d)", m.opts.Executable, m.opts.File, proc.pid)

	// Grace period: a server that dies straight away is never handshaken.
	grace := time.NewTimer(m.opts.StartupGrace)
	defer grace.Stop()
	select {
	case <-proc.done:
		proc.closePipes()
		return nil, &StartupError{Kind: "exited", Detail: proc.failureDetail()}
	case <-ctx.Done():
		m.abandon(proc)
		return nil, &StartupError{Kind: "spawn", Detail: "cancelled", Err: ctx.Err()}
	case <-grace.C:
	}

	session, err := m.handshake(ctx, proc)
	if err != nil {
		m.abandon(proc)
		return nil, err
	}

	list, err := listTools(ctx, session, m.opts.HandshakeTimeout)
	if err != nil {
		session.Close()
		m.abandon(proc)
		return nil, &StartupError{Kind: "handshake", Detail: "tools/list", Err: err}
	}
	return &handle{proc: proc, session: session, tools: list}, nil
}

// handshake runs MCP initialize against the child, bounded by the handshake
// timeout and by the child staying alive.
func (m *Manager) handshake(ctx context.Context, proc *process) (*mcp.ClientSession, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    m.opts.ClientName,
		Version: m.opts.ClientVersion,
	}, nil)
	transport := &mcp.IOTransport{Reader: proc.stdout, Writer: proc.stdin}

	type result struct {
		session *mcp.ClientSession
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		cs, err := client.Connect(context.WithoutCancel(ctx), transport, nil)
		ch <- result{cs, err}
	}()

	timer := time.NewTimer(m.opts.HandshakeTimeout)
	defer timer.Stop()

	var failure error
	select {
	case r := <-ch:
		if r.err == nil {
			return r.session, nil
		}
		if proc.exited() {
			return nil, &StartupError{Kind: "exited", Detail: proc.failureDetail()}
		}
		return nil, &StartupError{Kind: "handshake", Detail: "initialize", Err: r.err}
	case <-proc.done:
		failure = &StartupError{Kind: "exited", Detail: proc.failureDetail()}
	case <-timer.C:
		failure = &StartupError{Kind: "handshake", Detail: fmt.Sprintf("no response within %s", m.opts.HandshakeTimeout)}
	case <-ctx.Done():
		failure = &StartupError{Kind: "handshake", Detail: "cancelled", Err: ctx.Err()}
	}

	// Connect unblocks once the pipes close; drop a late session.
	go func() {
		if r := <-ch; r.session != nil {
			r.session.Close()
		}
	}()
	return nil, failure
}

func listTools(ctx context.Context, cs *mcp.ClientSession, timeout time.Duration) ([]ai.ToolDefinition, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var defs []ai.ToolDefinition
	for tool, err := range cs.Tools(ctx, nil) {
		if err != nil {
			return nil, err
		}
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil || string(schema) == "null" {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		defs = append(defs, ai.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

// abandon force-stops a child that never became ready.
func (m *Manager) abandon(proc *process) {
	proc.closePipes()
	if proc.exited() {
		return
	}
	_ = proc.kill()
	select {
	case <-proc.done:
	case <-time.After(m.opts.ShutdownTimeout):
		logging.Warnf("[MCP] pid %d did not exit after kill", proc.pid)
	}
}

// Stop shuts the capability server down. Stopping with nothing running is a
// successful no-op.
func (m *Manager) Stop(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		if m.State() == StateFailed {
			m.setState(StateStopped, 0, nil, "")
		}
		return MsgStopped
	}
	if err := m.stopLocked(ctx); err != nil {
		return "❌ Error stopping server: " + err.Error()
	}
	return MsgStopped
}

// stopLocked closes the session, then terminates the process group and
// escalates to a kill after the shutdown timeout. The handle is cleared and
// the agent unbound whatever happens.
func (m *Manager) stopLocked(ctx context.Context) error {
	h := m.handle
	m.handle = nil
	pid := h.proc.pid

	defer func() {
		h.proc.closePipes()
		m.setState(StateStopped, 0, nil, "")
		m.binder.Rebind(nil, nil)
		m.events.Emit(lifecycle.EventCapabilityStopped, lifecycle.CapabilityEventData{PID: pid, State: string(StateStopped)})
		m.events.Emit(lifecycle.EventToolsRebound, lifecycle.CapabilityEventData{State: string(StateStopped)})
	}()

	closed := make(chan error, 1)
	go func() { closed <- h.session.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			logging.Debugf("[MCP] Session close: %v", err)
		}
	case <-time.After(m.opts.ShutdownTimeout):
		logging.Warnf("[MCP] Session close timed out for pid %d", pid)
	}

	if h.proc.exited() {
		logging.Infof("[MCP] Server pid %d exited (%s)", pid, h.proc.exitStatus())
		return nil
	}

	if err := h.proc.terminate(); err != nil && !h.proc.exited() {
		logging.Warnf("[MCP] SIGTERM pid %d: %v", pid, err)
	}
	timer := time.NewTimer(m.opts.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-h.proc.done:
		logging.Infof("[MCP] Server pid %d stopped", pid)
		return nil
	case <-timer.C:
		logging.Warnf("[MCP] Server pid %d ignored SIGTERM, killing", pid)
	case <-ctx.Done():
		logging.Warnf("[MCP] Stop cancelled, killing pid %d", pid)
	}

	if err := h.proc.kill(); err != nil && !h.proc.exited() {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	select {
	case <-h.proc.done:
		return nil
	case <-time.After(m.opts.ShutdownTimeout):
		return fmt.Errorf("pid %d still running after kill", pid)
	}
}

// watch unbinds the tools if the child dies on its own.
func (m *Manager) watch(h *handle) {
	<-h.proc.done

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != h {
		return
	}
	m.handle = nil
	h.session.Close()
	h.proc.closePipes()

	detail := h.proc.failureDetail()
	logging.Warnf("[MCP] Server pid %d exited unexpectedly: %s", h.proc.pid, detail)
	m.setState(StateStopped, 0, nil, "exited unexpectedly: "+detail)
	m.binder.Rebind(nil, nil)
	m.events.Emit(lifecycle.EventCapabilityStopped, lifecycle.CapabilityEventData{
		PID:     h.proc.pid,
		State:   string(StateStopped),
		Message: detail,
	})
	m.events.Emit(lifecycle.EventToolsRebound, lifecycle.CapabilityEventData{State: string(StateStopped)})
}

// Execute implements tools.Executor by forwarding the call to the server.
func (m *Manager) Execute(ctx context.Context, call *ai.ToolCall) *tools.ToolResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.handle
	if h == nil {
		return tools.ErrorResult(ErrNotRunning.Error())
	}
	args := map[string]any{}
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return tools.ErrorResult(fmt.Sprintf("invalid arguments for %s: %v", call.Name, err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ToolTimeout)
	defer cancel()
	res, err := h.session.CallTool(ctx, &mcp.CallToolParams{Name: call.Name, Arguments: args})
	if err != nil {
		logging.Warnf("[MCP] Tool %s failed: %v", call.Name, err)
		return tools.ErrorResult(fmt.Sprintf("tool %s failed: %v", call.Name, err))
	}
	return &tools.ToolResult{Content: contentText(res.Content), IsError: res.IsError}
}

// ReadResource returns the text of a server resource.
func (m *Manager) ReadResource(ctx context.Context, uri string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return "", ErrNotRunning
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ToolTimeout)
	defer cancel()
	res, err := m.handle.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return "", fmt.Errorf("read %s: %w", uri, err)
	}
	var parts []string
	for _, c := range res.Contents {
		if c != nil && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// GetPrompt returns the text of a server prompt.
func (m *Manager) GetPrompt(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return "", ErrNotRunning
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ToolTimeout)
	defer cancel()
	res, err := m.handle.session.GetPrompt(ctx, &mcp.GetPromptParams{Name: name})
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", name, err)
	}
	var parts []string
	for _, msg := range res.Messages {
		if msg == nil {
			continue
		}
		parts = append(parts, contentText([]mcp.Content{msg.Content}))
	}
	return strings.Join(parts, "\n"), nil
}

// Close stops the server if one is running; used on process shutdown.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil {
		if err := m.stopLocked(ctx); err != nil {
			logging.Warnf("[MCP] Close: %v", err)
		}
	}
}

func contentText(contents []mcp.Content) string {
	var parts []string
	for _, c := range contents {
		switch v := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		case nil:
		default:
			if raw, err := json.Marshal(v); err == nil {
				parts = append(parts, string(raw))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func toolNames(defs []ai.ToolDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}
