package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/logging"
)

const defaultMaxTokens = 4096

// AnthropicProvider implements the Anthropic Messages API using the official SDK
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// ID returns the provider identifier
func (p *AnthropicProvider) ID() string {
	return "anthropic"
}

// Stream sends a request and returns streaming events
func (p *AnthropicProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	messages := p.buildMessages(req.Messages)

	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(defaultMaxTokens),
		Messages:  messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}

	system := req.System
	for _, msg := range req.Messages {
		if msg.Role == session.RoleSystem && msg.Content != "" {
			system = strings.TrimSpace(system + "\n\n" + msg.Content)
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			schema := schemaObject(tool.InputSchema)
			toolParam := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   requiredFields(schema),
				},
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	logging.Debugf("[Anthropic] Sending request: model=%s messages=%d tools=%d", model, len(messages), len(req.Tools))

	stream := p.client.Messages.NewStreaming(ctx, params)

	events := make(chan StreamEvent, 100)
	go p.handleStream(stream, events)

	return events, nil
}

// buildMessages converts session messages to Anthropic format. Tool results
// travel as user messages carrying tool_result blocks.
func (p *AnthropicProvider) buildMessages(msgs []session.Message) []anthropic.MessageParam {
	pairs := pairTools(msgs)

	var result []anthropic.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case session.RoleUser:
			// Empty text blocks are rejected by the API
			if msg.Content == "" {
				continue
			}
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case session.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			calls, _ := msg.DecodeToolCalls()
			for _, tc := range calls {
				if !pairs.complete(tc.ID) {
					logging.Debugf("[Anthropic] Skipping tool_use without response: %s", tc.ID)
					continue
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: argumentsMap(tc.Input),
					},
				})
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: blocks,
				})
			}

		case session.RoleTool:
			results, _ := msg.DecodeToolResults()
			var blocks []anthropic.ContentBlockParamUnion
			for _, r := range results {
				if !pairs.complete(r.ToolCallID) {
					continue
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(r.ToolCallID, r.Content, r.IsError))
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	return result
}

// handleStream processes the streaming response
func (p *AnthropicProvider) handleStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], events chan<- StreamEvent) {
	defer close(events)
	defer stream.Close()

	var currentToolID string
	var currentToolName string
	var inputBuffer strings.Builder

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			cb := event.AsContentBlockStart()
			if toolUse, ok := cb.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				currentToolID = toolUse.ID
				currentToolName = toolUse.Name
				inputBuffer.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				events <- StreamEvent{Type: EventTypeText, Text: d.Text}
			case anthropic.InputJSONDelta:
				inputBuffer.WriteString(d.PartialJSON)
			case anthropic.ThinkingDelta:
				events <- StreamEvent{Type: EventTypeThinking, Text: d.Thinking}
			}

		case "content_block_stop":
			if currentToolID != "" {
				input := inputBuffer.String()
				if input == "" {
					input = "{}"
				}
				events <- StreamEvent{
					Type: EventTypeToolCall,
					ToolCall: &ToolCall{
						ID:    currentToolID,
						Name:  currentToolName,
						Input: json.RawMessage(input),
					},
				}
				currentToolID = ""
				currentToolName = ""
				inputBuffer.Reset()
			}

		case "message_stop":
			events <- StreamEvent{Type: EventTypeDone}
			return

		case "error":
			events <- StreamEvent{
				Type:  EventTypeError,
				Error: &ProviderError{Provider: "anthropic", Message: event.RawJSON()},
			}
			return
		}
	}

	if err := stream.Err(); err != nil {
		logging.Errorf("[Anthropic] Stream error: %v", err)
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			err = &ProviderError{
				Provider: "anthropic",
				Status:   apiErr.StatusCode,
				Message:  fmt.Sprintf("%d %s", apiErr.StatusCode, apiErr.Error()),
			}
		}
		events <- StreamEvent{Type: EventTypeError, Error: err}
		return
	}

	events <- StreamEvent{Type: EventTypeDone}
}
