// Package ai adapts language model backends to one streaming interface used
// by the agent runner.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/neboloop/hearth/internal/agent/session"
)

// StreamEventType defines the type of streaming event
type StreamEventType string

const (
	EventTypeText     StreamEventType = "text"
	EventTypeToolCall StreamEventType = "tool_call"
	EventTypeError    StreamEventType = "error"
	EventTypeDone     StreamEventType = "done"
	EventTypeThinking StreamEventType = "thinking"
)

// StreamEvent represents a streaming response event
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ToolCall *ToolCall       `json:"tool_call,omitempty"`
	Error    error           `json:"error,omitempty"`
}

// ToolCall represents a tool invocation from the AI
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolDefinition describes a tool available to the AI
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ChatRequest represents a request to the AI provider
type ChatRequest struct {
	Messages    []session.Message `json:"messages"`
	Tools       []ToolDefinition  `json:"tools,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	System      string            `json:"system,omitempty"`
	Model       string            `json:"model,omitempty"` // overrides the provider default
}

// Provider interface for AI providers
type Provider interface {
	// ID returns the provider identifier (e.g., "azure", "anthropic")
	ID() string

	// Stream sends a request and returns a channel of streaming events.
	// The channel is closed after a done or error event.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider string `json:"provider,omitempty"`
	Status   int    `json:"status,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Type     string `json:"type,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return e.Provider + ": " + e.Message
	}
	return e.Message
}

// IsRateLimitOrAuth checks if an error is due to rate limiting or auth issues
func IsRateLimitOrAuth(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch {
	case pe.Status == 401, pe.Status == 403, pe.Status == 429:
		return true
	case pe.Code == "rate_limit_exceeded", pe.Code == "authentication_error", pe.Code == "invalid_api_key":
		return true
	case pe.Type == "rate_limit_error", pe.Type == "authentication_error":
		return true
	}
	return false
}

// ClassifyErrorReason determines the category of error for logging and user
// feedback. Returns: "billing", "rate_limit", "auth", "timeout", or "other"
func ClassifyErrorReason(err error) string {
	if err == nil {
		return "other"
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.Status == 429 || pe.Code == "rate_limit_exceeded" || pe.Type == "rate_limit_error":
			return "rate_limit"
		case pe.Status == 401 || pe.Status == 403 || pe.Code == "invalid_api_key" || pe.Type == "authentication_error":
			return "auth"
		case pe.Status == 402 || pe.Code == "insufficient_quota":
			return "billing"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	patterns := []struct {
		reason string
		words  []string
	}{
		{"billing", []string{"billing", "quota", "payment", "insufficient"}},
		{"rate_limit", []string{"rate limit", "rate_limit", "too many requests", "429"}},
		{"auth", []string{"authentication", "unauthorized", "api key", "401", "forbidden", "403"}},
		{"timeout", []string{"timeout", "timed out", "deadline exceeded"}},
	}
	for _, p := range patterns {
		for _, w := range p.words {
			if strings.Contains(msg, w) {
				return p.reason
			}
		}
	}
	return "other"
}
