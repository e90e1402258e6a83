package realtime

import (
	"context"
	"strings"
	"time"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/agent/tools"
	"github.com/neboloop/hearth/internal/lifecycle"
	"github.com/neboloop/hearth/internal/logging"
	"github.com/neboloop/hearth/internal/markdown"
	"github.com/neboloop/hearth/internal/svc"
)

// Inbound frame types.
const (
	TypeChat        = "chat"
	TypeStartServer = "start_server"
	TypeStopServer  = "stop_server"
	TypeReset       = "reset"
	TypeStatus      = "status"
	TypeHistory     = "history"
)

// ChatContext routes browser actions to the service context and mirrors
// agent progress to every connected browser. There is one conversation, so
// all clients see the same stream.
type ChatContext struct {
	svcCtx    *svc.ServiceContext
	clientHub *Hub
}

// NewChatContext subscribes the hub to stream, binding and lifecycle events.
func NewChatContext(svcCtx *svc.ServiceContext, clientHub *Hub) *ChatContext {
	c := &ChatContext{svcCtx: svcCtx, clientHub: clientHub}

	svcCtx.OnStream(c.handleStreamEvent)
	svcCtx.Binder.OnChange(func(*tools.Binding) { c.broadcastStatus("") })
	svcCtx.Events.On(lifecycle.EventToolCall, func(_ lifecycle.Event, data any) {
		if d, ok := data.(lifecycle.ToolCallEventData); ok {
			c.clientHub.Broadcast(&Message{
				Type: "tool_result",
				Data: map[string]any{"session_id": d.SessionID, "tool": d.Tool, "is_error": d.IsError},
			})
		}
	})
	svcCtx.Events.On(lifecycle.EventSessionNew, func(lifecycle.Event, any) { c.broadcastStatus("") })
	return c
}

// Handle is the MessageHandler for browser clients. Actions run off the read
// loop so pings keep flowing during a long turn.
func (c *ChatContext) Handle(client *Client, msg *Message) {
	logging.Debugf("[Chat] %s from client %s", msg.Type, client.ID)
	switch msg.Type {
	case TypeChat:
		text, _ := msg.Data["text"].(string)
		text = strings.TrimSpace(text)
		if text == "" {
			sendChatError(client, "empty message")
			return
		}
		go c.chat(text)
	case TypeStartServer:
		go c.broadcastStatus(c.svcCtx.StartServer(context.Background()))
	case TypeStopServer:
		go c.broadcastStatus(c.svcCtx.StopServer(context.Background()))
	case TypeReset:
		go func() {
			status := c.svcCtx.Reset()
			c.clientHub.Broadcast(&Message{Type: "history", Data: map[string]any{"exchanges": []any{}}})
			c.broadcastStatus(status)
		}()
	case TypeStatus:
		sendToClient(client, c.statusMessage(""))
	case TypeHistory:
		sendToClient(client, c.historyMessage())
	default:
		logging.Infof("Unknown message type: %s", msg.Type)
	}
}

func (c *ChatContext) chat(text string) {
	c.clientHub.Broadcast(&Message{Type: "chat_user", Data: map[string]any{"text": text}})

	start := time.Now()
	reply := c.svcCtx.Send(context.Background(), text)
	c.clientHub.Broadcast(&Message{
		Type: "chat_complete",
		Data: map[string]any{
			"session_id":  c.svcCtx.Conversation.ID(),
			"reply":       reply,
			"html":        markdown.Render(reply),
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
}

func (c *ChatContext) handleStreamEvent(ev ai.StreamEvent) {
	switch ev.Type {
	case ai.EventTypeText:
		c.clientHub.Broadcast(&Message{Type: "chat_stream", Data: map[string]any{"content": ev.Text}})
	case ai.EventTypeToolCall:
		if ev.ToolCall != nil {
			c.clientHub.Broadcast(&Message{
				Type: "tool_start",
				Data: map[string]any{"tool": ev.ToolCall.Name, "input": string(ev.ToolCall.Input)},
			})
		}
	}
}

func (c *ChatContext) broadcastStatus(status string) {
	c.clientHub.Broadcast(c.statusMessage(status))
}

func (c *ChatContext) statusMessage(status string) *Message {
	snap := c.svcCtx.Snapshot()
	if status == "" {
		status = snap.Status
	}
	return &Message{
		Type: "status",
		Data: map[string]any{
			"message":    status,
			"agent":      snap.Agent,
			"provider":   snap.Provider,
			"session_id": snap.SessionID,
			"server":     snap.Capability.State,
			"pid":        snap.Capability.PID,
			"tools":      snap.Capability.Tools,
		},
	}
}

func (c *ChatContext) historyMessage() *Message {
	history := c.svcCtx.Conversation.History()
	exchanges := make([]map[string]any, 0, len(history))
	for _, ex := range history {
		exchanges = append(exchanges, map[string]any{
			"user":      ex.User,
			"assistant": ex.Assistant,
			"html":      markdown.Render(ex.Assistant),
		})
	}
	return &Message{Type: "history", Data: map[string]any{"exchanges": exchanges}}
}

func sendChatError(c *Client, errStr string) {
	sendToClient(c, &Message{Type: "error", Data: map[string]any{"error": errStr}})
}

func sendToClient(c *Client, msg *Message) {
	if c == nil {
		return
	}
	if err := c.SendMessage(msg); err != nil {
		switch err {
		case ErrClientClosed:
			logging.Debugf("[Chat] Client connection closed, dropping %s", msg.Type)
		case ErrClientSendBufferFull:
			logging.Warnf("[Chat] Client send buffer full, dropping %s", msg.Type)
		default:
			logging.Errorf("[Chat] Failed to send message: %v", err)
		}
	}
}
