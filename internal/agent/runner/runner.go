// Package runner drives the agent tool loop: ask the model, execute any tool
// calls through the current binding, feed results back, repeat until the
// model answers in text.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/agent/tools"
	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/lifecycle"
	"github.com/neboloop/hearth/internal/logging"
)

// DefaultMaxTurns bounds model round-trips per run.
const DefaultMaxTurns = 10

// ErrMaxTurns is returned when the model keeps calling tools past the limit.
var ErrMaxTurns = errors.New("maximum turns exceeded")

// Result is the outcome of a run.
type Result = session.Result

// Runner executes agent runs against one provider and the tools currently
// bound by a Binder.
type Runner struct {
	provider  ai.Provider
	binder    *tools.Binder
	maxTurns  int
	maxTokens int
	events    *lifecycle.Manager
	onEvent   func(ai.StreamEvent)
	pruning   config.ContextPruningConfig
}

type Option func(*Runner)

// WithMaxTurns overrides DefaultMaxTurns.
func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(r *Runner) { r.maxTokens = n }
}

// WithLifecycle routes tool call events to m instead of the global manager.
func WithLifecycle(m *lifecycle.Manager) Option {
	return func(r *Runner) { r.events = m }
}

// WithStreamObserver receives every provider event as it arrives, e.g. to
// print text incrementally in a terminal.
func WithStreamObserver(fn func(ai.StreamEvent)) Option {
	return func(r *Runner) { r.onEvent = fn }
}

// WithPruning trims old tool results in each request once the replayed
// history outgrows cfg.ContextTokens.
func WithPruning(cfg config.ContextPruningConfig) Option {
	return func(r *Runner) {
		cfg.ApplyDefaults()
		r.pruning = cfg
	}
}

func New(provider ai.Provider, binder *tools.Binder, opts ...Option) *Runner {
	r := &Runner{
		provider: provider,
		binder:   binder,
		maxTurns: DefaultMaxTurns,
		events:   lifecycle.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProviderID names the backing provider.
func (r *Runner) ProviderID() string {
	return r.provider.ID()
}

// Run executes one agent run. The binding is read once at the start and used
// for every model round-trip of the run.
func (r *Runner) Run(ctx context.Context, in session.Input) (*Result, error) {
	binding := r.binder.Current()
	msgs := in.Messages()
	sessionID := lifecycle.SessionFromContext(ctx)
	toolCalls := 0

	for turn := 1; turn <= r.maxTurns; turn++ {
		req := &ai.ChatRequest{
			Messages:  pruneContext(msgs, r.pruning),
			Tools:     binding.Tools,
			System:    binding.Instructions,
			MaxTokens: r.maxTokens,
		}
		start := time.Now()
		text, calls, err := r.complete(ctx, req)
		if err != nil {
			logging.Errorf("[Runner] %s request failed (%s): %v", r.provider.ID(), ai.ClassifyErrorReason(err), err)
			return nil, err
		}
		logging.Debugf("[Runner] turn %d: %d chars, %d tool calls in %s", turn, len(text), len(calls), time.Since(start))

		if text != "" || len(calls) > 0 {
			msg := session.Message{Role: session.RoleAssistant, Content: text, CreatedAt: time.Now()}
			if len(calls) > 0 {
				msg.ToolCalls, _ = json.Marshal(calls)
			}
			msgs = append(msgs, msg)
		}

		if len(calls) == 0 {
			return &Result{
				FinalOutput: text,
				State:       session.NewState(msgs),
				ToolCalls:   toolCalls,
				Turns:       turn,
			}, nil
		}

		results := make([]session.ToolResult, 0, len(calls))
		for _, tc := range calls {
			logging.Infof("[Runner] Executing tool: %s", tc.Name)
			res := binding.Execute(ctx, &ai.ToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
			toolCalls++
			r.events.Emit(lifecycle.EventToolCall, lifecycle.ToolCallEventData{
				SessionID: sessionID,
				Tool:      tc.Name,
				IsError:   res.IsError,
			})
			results = append(results, session.ToolResult{
				ToolCallID: tc.ID,
				Content:    res.Content,
				IsError:    res.IsError,
			})
		}
		raw, _ := json.Marshal(results)
		msgs = append(msgs, session.Message{Role: session.RoleTool, ToolResults: raw, CreatedAt: time.Now()})
	}

	return nil, fmt.Errorf("%w (%d)", ErrMaxTurns, r.maxTurns)
}

// complete streams one model response and gathers its text and tool calls.
func (r *Runner) complete(ctx context.Context, req *ai.ChatRequest) (string, []session.ToolCall, error) {
	events, err := r.provider.Stream(ctx, req)
	if err != nil {
		return "", nil, err
	}

	var text strings.Builder
	var calls []session.ToolCall
	var streamErr error
	for event := range events {
		if r.onEvent != nil {
			r.onEvent(event)
		}
		switch event.Type {
		case ai.EventTypeText:
			text.WriteString(event.Text)
		case ai.EventTypeToolCall:
			if event.ToolCall == nil {
				continue
			}
			input := event.ToolCall.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			calls = append(calls, session.ToolCall{ID: event.ToolCall.ID, Name: event.ToolCall.Name, Input: input})
		case ai.EventTypeError:
			if streamErr == nil {
				streamErr = event.Error
			}
		}
	}
	if streamErr != nil {
		return "", nil, streamErr
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	return text.String(), calls, nil
}
