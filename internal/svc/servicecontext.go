// Package svc wires the agent, the conversation and the capability server
// connection together for the front ends.
package svc

import (
	"context"
	"fmt"
	"sync"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/agent/runner"
	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/agent/tools"
	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/lifecycle"
	"github.com/neboloop/hearth/internal/logging"
	hearthmcp "github.com/neboloop/hearth/internal/mcp"
	mcpclient "github.com/neboloop/hearth/internal/mcp/client"
)

// Status strings shown by the front ends.
const (
	MsgInitializing = "🟡 Initializing AI Agent..."
	MsgAgentReady   = "✅ AI Agent initialised successfully! (No MCP tools available yet)"
	MsgReset        = "🔄 Conversation reset successfully!"
)

// ServiceContext holds the process-wide state shared by the web server and
// the terminal chat.
type ServiceContext struct {
	Config  config.Config
	Version string

	Events       *lifecycle.Manager
	Binder       *tools.Binder
	Capability   *mcpclient.Manager
	Conversation *session.Conversation

	agentMu sync.RWMutex
	agent   *runner.Runner
	status  string

	// newProvider is swapped in tests.
	newProvider func(config.ProviderConfig) (ai.Provider, error)
	runnerOpts  []runner.Option

	streamMu  sync.RWMutex
	streamFns []func(ai.StreamEvent)
}

type Option func(*ServiceContext)

// WithProvider bypasses the provider factory.
func WithProvider(p ai.Provider) Option {
	return func(s *ServiceContext) {
		s.newProvider = func(config.ProviderConfig) (ai.Provider, error) { return p, nil }
	}
}

// WithRunnerOptions adds options to every runner built by InitAgent.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(s *ServiceContext) { s.runnerOpts = append(s.runnerOpts, opts...) }
}

// WithCapabilityOptions replaces the connection options derived from config.
func WithCapabilityOptions(o mcpclient.Options) Option {
	return func(s *ServiceContext) {
		s.Capability = mcpclient.NewManager(o, s.Binder, s.Events)
	}
}

// NewServiceContext builds the services without touching the network or
// spawning anything. Call InitAgent before the first turn.
func NewServiceContext(c config.Config, version string, opts ...Option) *ServiceContext {
	events := lifecycle.NewManager()
	binder := tools.NewBinder()
	svc := &ServiceContext{
		Config:       c,
		Version:      version,
		Events:       events,
		Binder:       binder,
		Conversation: session.NewConversation(events),
		status:       MsgInitializing,
		newProvider:  ai.NewFromConfig,
	}
	svc.Capability = mcpclient.NewManager(mcpclient.OptionsFromConfig(c.Capability, version), binder, events)
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// InitAgent creates the model provider and the runner. On failure the
// service stays up and turns answer with session.UnavailableMessage.
func (svc *ServiceContext) InitAgent() string {
	p, err := svc.newProvider(svc.Config.Provider)
	if err != nil {
		logging.Errorf("[Agent] init failed: %v", err)
		return svc.setStatus("❌ Error initialising LLM: " + err.Error())
	}

	opts := []runner.Option{
		runner.WithMaxTurns(svc.Config.Agent.MaxTurns),
		runner.WithMaxTokens(svc.Config.Provider.MaxTokens),
		runner.WithPruning(svc.Config.Agent.Pruning),
		runner.WithLifecycle(svc.Events),
		runner.WithStreamObserver(svc.publishStream),
	}
	r := runner.New(p, svc.Binder, append(opts, svc.runnerOpts...)...)

	svc.agentMu.Lock()
	svc.agent = r
	svc.agentMu.Unlock()
	logging.Infof("[Agent] %s ready on %s", svc.Config.Agent.Name, p.ID())
	return svc.setStatus(MsgAgentReady)
}

func (svc *ServiceContext) setStatus(s string) string {
	svc.agentMu.Lock()
	svc.status = s
	svc.agentMu.Unlock()
	return s
}

// StatusMessage is the last status line produced by any action.
func (svc *ServiceContext) StatusMessage() string {
	svc.agentMu.RLock()
	defer svc.agentMu.RUnlock()
	return svc.status
}

// AgentReady reports whether InitAgent succeeded.
func (svc *ServiceContext) AgentReady() bool {
	svc.agentMu.RLock()
	defer svc.agentMu.RUnlock()
	return svc.agent != nil
}

func (svc *ServiceContext) currentAgent() session.Agent {
	svc.agentMu.RLock()
	defer svc.agentMu.RUnlock()
	if svc.agent == nil {
		return nil
	}
	return svc.agent
}

// OnStream registers fn for every provider stream event of every turn.
func (svc *ServiceContext) OnStream(fn func(ai.StreamEvent)) {
	svc.streamMu.Lock()
	defer svc.streamMu.Unlock()
	svc.streamFns = append(svc.streamFns, fn)
}

func (svc *ServiceContext) publishStream(ev ai.StreamEvent) {
	svc.streamMu.RLock()
	fns := svc.streamFns
	svc.streamMu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// StartServer starts (or restarts) the capability server.
func (svc *ServiceContext) StartServer(ctx context.Context) string {
	return svc.setStatus(svc.Capability.Start(ctx))
}

// StopServer stops the capability server; a no-op when none runs.
func (svc *ServiceContext) StopServer(ctx context.Context) string {
	return svc.setStatus(svc.Capability.Stop(ctx))
}

// Send runs one conversational turn. Errors become the reply text so the
// front ends always have something to show.
func (svc *ServiceContext) Send(ctx context.Context, text string) string {
	reply, err := svc.Conversation.Send(ctx, svc.currentAgent(), text)
	if err != nil {
		return "❌ Error: " + err.Error()
	}
	return reply
}

// Reset starts a fresh conversation.
func (svc *ServiceContext) Reset() string {
	svc.Conversation.Reset()
	return svc.setStatus(MsgReset)
}

// DeviceStatus reads the device status resource from the running server.
func (svc *ServiceContext) DeviceStatus(ctx context.Context) (string, error) {
	return svc.Capability.ReadResource(ctx, hearthmcp.StatusURI)
}

// StatusReportPrompt fetches the status report prompt from the running server.
func (svc *ServiceContext) StatusReportPrompt(ctx context.Context) (string, error) {
	return svc.Capability.GetPrompt(ctx, hearthmcp.StatusReportPrompt)
}

// Snapshot summarizes the service for status endpoints.
type Snapshot struct {
	Status     string             `json:"status"`
	Agent      bool               `json:"agent"`
	Provider   string             `json:"provider,omitempty"`
	SessionID  string             `json:"session_id,omitempty"`
	Capability mcpclient.Snapshot `json:"capability"`
}

func (svc *ServiceContext) Snapshot() Snapshot {
	svc.agentMu.RLock()
	s := Snapshot{Status: svc.status, Agent: svc.agent != nil}
	if svc.agent != nil {
		s.Provider = svc.agent.ProviderID()
	}
	svc.agentMu.RUnlock()
	s.SessionID = svc.Conversation.ID()
	s.Capability = svc.Capability.Snapshot()
	return s
}

// Close stops the capability server.
func (svc *ServiceContext) Close(ctx context.Context) {
	svc.Events.Emit(lifecycle.EventShutdownStarted, nil)
	svc.Capability.Close(ctx)
	svc.Events.Emit(lifecycle.EventShutdownComplete, nil)
}

func (svc *ServiceContext) String() string {
	s := svc.Snapshot()
	return fmt.Sprintf("agent=%t capability=%s tools=%d session=%q", s.Agent, s.Capability.State, len(s.Capability.Tools), s.SessionID)
}
