// Package session holds the conversation model: messages, the continuation
// state an agent run hands back, and the single conversation the assistant
// keeps between turns.
package session

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Message is one entry of the model input list. Assistant messages may carry
// tool calls; tool messages carry their results.
type Message struct {
	Role        string          `json:"role"` // user, assistant, system, tool
	Content     string          `json:"content,omitempty"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToolCall represents a tool invocation
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// UserMessage builds a user turn stamped with the current time.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, CreatedAt: time.Now()}
}

// DecodeToolCalls returns the tool calls carried by an assistant message.
func (m Message) DecodeToolCalls() ([]ToolCall, error) {
	if len(m.ToolCalls) == 0 {
		return nil, nil
	}
	var calls []ToolCall
	if err := json.Unmarshal(m.ToolCalls, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

// DecodeToolResults returns the results carried by a tool message.
func (m Message) DecodeToolResults() ([]ToolResult, error) {
	if len(m.ToolResults) == 0 {
		return nil, nil
	}
	var results []ToolResult
	if err := json.Unmarshal(m.ToolResults, &results); err != nil {
		return nil, err
	}
	return results, nil
}
