package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/hearth/internal/lifecycle"
	"github.com/neboloop/hearth/internal/logging"
)

// UnavailableMessage is returned instead of running a turn when no agent is
// available.
const UnavailableMessage = "LLM not initialised. Please restart the application."

// Agent runs one conversational turn.
type Agent interface {
	Run(ctx context.Context, in Input) (*Result, error)
}

// Exchange is one user message and the reply shown for it.
type Exchange struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	At        time.Time `json:"at"`
}

// Conversation tracks the single ongoing conversation. It is EMPTY until the
// first successful turn and returns to EMPTY on Reset. Turns are serialized.
type Conversation struct {
	turn sync.Mutex // held for a whole turn or reset

	mu      sync.Mutex // guards the fields below
	id      string
	state   *State
	history []Exchange
	events  *lifecycle.Manager
}

// NewConversation returns an empty conversation. A nil manager uses the
// global lifecycle manager.
func NewConversation(events *lifecycle.Manager) *Conversation {
	if events == nil {
		events = lifecycle.Default()
	}
	return &Conversation{events: events}
}

// ID returns the session id, or "" when empty.
func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Active reports whether a prior state exists.
func (c *Conversation) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != nil
}

// State returns the current continuation state, or nil when empty.
func (c *Conversation) State() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	s := *c.state
	return &s
}

// History returns the displayed exchanges, oldest first.
func (c *Conversation) History() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Exchange, len(c.history))
	copy(out, c.history)
	return out
}

// Send runs one turn. A nil agent short-circuits with UnavailableMessage and
// leaves the conversation untouched. A failed run also leaves it untouched.
func (c *Conversation) Send(ctx context.Context, agent Agent, text string) (string, error) {
	if agent == nil {
		return UnavailableMessage, nil
	}

	c.turn.Lock()
	defer c.turn.Unlock()

	c.mu.Lock()
	id := c.id
	prior := c.state
	c.mu.Unlock()

	in := Input{Text: text}
	if prior == nil {
		v7, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("new session id: %w", err)
		}
		id = v7.String()
	} else {
		p := *prior
		in.Prior = &p
	}

	start := time.Now()
	c.events.Emit(lifecycle.EventAgentRunStart, lifecycle.AgentRunEventData{SessionID: id})

	res, err := agent.Run(lifecycle.WithSession(ctx, id), in)
	if err != nil {
		logging.Errorf("[Session] turn failed in %s: %v", id, err)
		c.events.Emit(lifecycle.EventAgentRunError, lifecycle.AgentRunEventData{
			SessionID:  id,
			DurationMS: time.Since(start).Milliseconds(),
			Error:      err,
		})
		return "", err
	}

	st := res.State
	c.mu.Lock()
	c.id = id
	c.state = &st
	c.history = append(c.history, Exchange{User: text, Assistant: res.FinalOutput, At: time.Now()})
	c.mu.Unlock()

	if prior == nil {
		logging.Infof("[Session] started %s", id)
		c.events.Emit(lifecycle.EventSessionNew, lifecycle.SessionEventData{SessionID: id})
	}

	c.events.Emit(lifecycle.EventAgentRunComplete, lifecycle.AgentRunEventData{
		SessionID:  id,
		ToolCalls:  res.ToolCalls,
		DurationMS: time.Since(start).Milliseconds(),
	})
	return res.FinalOutput, nil
}

// Reset discards the session id, state and history.
func (c *Conversation) Reset() {
	c.turn.Lock()
	defer c.turn.Unlock()

	c.mu.Lock()
	old := c.id
	c.id = ""
	c.state = nil
	c.history = nil
	c.mu.Unlock()
	if old != "" {
		logging.Infof("[Session] reset %s", old)
		c.events.Emit(lifecycle.EventSessionReset, lifecycle.SessionEventData{SessionID: old})
	}
}
