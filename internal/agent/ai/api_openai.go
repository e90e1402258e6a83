package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/logging"
)

// OpenAIProvider implements the chat completions API using the official SDK.
// It serves both OpenAI and Azure OpenAI deployments.
type OpenAIProvider struct {
	id     string
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for api.openai.com. A non-empty
// baseURL points it at a compatible endpoint instead.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		id:     "openai",
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// NewAzureProvider creates a provider for an Azure OpenAI resource. The
// deployment name is sent as the model.
func NewAzureProvider(endpoint, apiVersion, apiKey, deployment string) *OpenAIProvider {
	client := openai.NewClient(
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
	)
	return &OpenAIProvider{
		id:     "azure",
		client: client,
		model:  deployment,
	}
}

// ID returns the provider identifier
func (p *OpenAIProvider) ID() string {
	return p.id
}

// Stream sends a request and returns streaming events
func (p *OpenAIProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	if model == "" {
		return nil, &ProviderError{Provider: p.id, Message: "no model or deployment configured"}
	}

	messages := p.buildMessages(req)
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  shared.FunctionParameters(schemaObject(tool.InputSchema)),
				},
			})
		}
		params.Tools = tools
	}

	logging.Debugf("[%s] Sending request: model=%s messages=%d tools=%d", p.id, model, len(messages), len(req.Tools))

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	events := make(chan StreamEvent, 100)
	go p.handleStream(stream, events)

	return events, nil
}

// buildMessages converts session messages to chat completion messages
func (p *OpenAIProvider) buildMessages(req *ChatRequest) []openai.ChatCompletionMessageParamUnion {
	pairs := pairTools(req.Messages)

	var result []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		result = append(result, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case session.RoleUser:
			result = append(result, openai.UserMessage(msg.Content))

		case session.RoleAssistant:
			var toolCalls []openai.ChatCompletionMessageToolCallParam
			calls, _ := msg.DecodeToolCalls()
			for _, tc := range calls {
				if !pairs.complete(tc.ID) {
					logging.Debugf("[%s] Skipping tool_call without response: %s", p.id, tc.ID)
					continue
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			if msg.Content == "" && len(toolCalls) == 0 {
				continue
			}
			assistantMsg := openai.ChatCompletionAssistantMessageParam{Role: "assistant"}
			if msg.Content != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			assistantMsg.ToolCalls = toolCalls
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMsg})

		case session.RoleTool:
			results, _ := msg.DecodeToolResults()
			for _, r := range results {
				if pairs.complete(r.ToolCallID) {
					result = append(result, openai.ToolMessage(r.Content, r.ToolCallID))
				}
			}

		case session.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		}
	}
	return result
}

// handleStream processes the streaming response
func (p *OpenAIProvider) handleStream(stream *ssestream.Stream[openai.ChatCompletionChunk], events chan<- StreamEvent) {
	defer close(events)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			events <- StreamEvent{
				Type: EventTypeToolCall,
				ToolCall: &ToolCall{
					ID:    tool.ID,
					Name:  tool.Name,
					Input: json.RawMessage(tool.Arguments),
				},
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			events <- StreamEvent{
				Type: EventTypeText,
				Text: chunk.Choices[0].Delta.Content,
			}
		}
	}

	if err := stream.Err(); err != nil {
		logging.Errorf("[%s] Stream error: %v", p.id, err)
		events <- StreamEvent{Type: EventTypeError, Error: p.wrapError(err)}
		return
	}

	events <- StreamEvent{Type: EventTypeDone}
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider: p.id,
			Status:   apiErr.StatusCode,
			Code:     apiErr.Code,
			Type:     apiErr.Type,
			Message:  fmt.Sprintf("%d %s", apiErr.StatusCode, apiErr.Message),
		}
	}
	return fmt.Errorf("%s stream: %w", p.id, err)
}
