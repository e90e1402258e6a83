package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.ProviderConfig{Kind: config.ProviderAzure, Endpoint: "https://x.openai.azure.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	p, err := NewFromConfig(config.ProviderConfig{
		Kind:       config.ProviderAzure,
		Endpoint:   "https://x.openai.azure.com",
		APIVersion: "2024-10-21",
		APIKey:     "k",
		Deployment: "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, "azure", p.ID())

	p, err = NewFromConfig(config.ProviderConfig{Kind: config.ProviderOllama, Model: "llama3.1"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.ID())

	_, err = NewFromConfig(config.ProviderConfig{Kind: "bard"})
	assert.Error(t, err)
}

func TestClassifyErrorReason(t *testing.T) {
	assert.Equal(t, "rate_limit", ClassifyErrorReason(&ProviderError{Status: 429}))
	assert.Equal(t, "auth", ClassifyErrorReason(fmt.Errorf("wrap: %w", &ProviderError{Status: 401})))
	assert.Equal(t, "billing", ClassifyErrorReason(errors.New("You exceeded your current quota")))
	assert.Equal(t, "timeout", ClassifyErrorReason(context.DeadlineExceeded))
	assert.Equal(t, "other", ClassifyErrorReason(errors.New("boom")))
	assert.True(t, IsRateLimitOrAuth(&ProviderError{Type: "rate_limit_error"}))
	assert.False(t, IsRateLimitOrAuth(errors.New("429")))
}

func toolTurn(t *testing.T) []session.Message {
	t.Helper()
	calls, err := json.Marshal([]session.ToolCall{
		{ID: "c1", Name: "list_devices", Input: json.RawMessage(`{}`)},
		{ID: "orphan", Name: "control_light", Input: json.RawMessage(`{"action":"on"}`)},
	})
	require.NoError(t, err)
	results, err := json.Marshal([]session.ToolResult{{ToolCallID: "c1", Content: "devices"}})
	require.NoError(t, err)
	return []session.Message{
		{Role: session.RoleUser, Content: "what is on?"},
		{Role: session.RoleAssistant, ToolCalls: calls},
		{Role: session.RoleTool, ToolResults: results},
		{Role: session.RoleAssistant, Content: "the light is off"},
	}
}

func TestPairTools(t *testing.T) {
	pairs := pairTools(toolTurn(t))
	assert.True(t, pairs.complete("c1"))
	assert.False(t, pairs.complete("orphan"))
	assert.Equal(t, "list_devices", pairs.toolName("c1"))
	assert.Equal(t, "unknown", pairs.toolName("nope"))
}

func TestOpenAIBuildMessagesDropsUnpairedCalls(t *testing.T) {
	p := NewOpenAIProvider("k", "", "gpt-4o-mini")
	msgs := p.buildMessages(&ChatRequest{System: "sys", Messages: toolTurn(t)})
	// system, user, assistant(tool call), tool result, assistant text
	require.Len(t, msgs, 5)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
}

func TestAnthropicBuildMessages(t *testing.T) {
	p := NewAnthropicProvider("k", "claude")
	msgs := p.buildMessages(toolTurn(t))
	// user, assistant(tool_use), user(tool_result), assistant text
	require.Len(t, msgs, 4)
	assert.Len(t, msgs[1].Content, 1)
}

func TestOllamaBuildTools(t *testing.T) {
	p := NewOllamaProvider("", "llama3.1")
	tools := p.buildTools([]ToolDefinition{{
		Name:        "control_light",
		Description: "Control the light",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"action":{"type":"string","description":"on/off"},"brightness":{"type":["null","integer"]}},"required":["action"]}`),
	}})
	require.Len(t, tools, 1)
	assert.Equal(t, "control_light", tools[0].Function.Name)
	assert.Equal(t, []string{"action"}, tools[0].Function.Parameters.Required)

	msgs := p.buildMessages(&ChatRequest{Messages: toolTurn(t)})
	require.Len(t, msgs, 4)
	assert.Equal(t, "tool", msgs[2].Role)
	assert.Equal(t, "list_devices", msgs[2].ToolName)
}

func TestSchemaObjectDefaults(t *testing.T) {
	s := schemaObject(nil)
	assert.Equal(t, "object", s["type"])
	assert.NotNil(t, s["properties"])
	assert.Empty(t, argumentsMap(json.RawMessage(`not json`)))
}
