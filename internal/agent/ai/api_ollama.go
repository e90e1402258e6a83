package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/logging"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider implements the Provider interface for a local Ollama daemon
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		logging.Warnf("[Ollama] invalid base URL %q, using %s", baseURL, defaultOllamaURL)
		parsedURL, _ = url.Parse(defaultOllamaURL)
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Minute, // local inference can be slow
	}
	return &OllamaProvider{
		client: api.NewClient(parsedURL, httpClient),
		model:  model,
	}
}

// ID returns the provider identifier
func (p *OllamaProvider) ID() string {
	return "ollama"
}

// Stream sends a request to Ollama and streams the response
func (p *OllamaProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	messages := p.buildMessages(req)

	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	stream := true
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		chatReq.Options = make(map[string]any)
		if req.Temperature > 0 {
			chatReq.Options["temperature"] = req.Temperature
		}
		if req.MaxTokens > 0 {
			chatReq.Options["num_predict"] = req.MaxTokens
		}
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.buildTools(req.Tools)
	}

	logging.Debugf("[Ollama] Sending request: model=%s messages=%d tools=%d", model, len(messages), len(req.Tools))

	events := make(chan StreamEvent, 100)
	go func() {
		defer close(events)

		calls := 0
		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				events <- StreamEvent{Type: EventTypeText, Text: resp.Message.Content}
			}
			for _, tc := range resp.Message.ToolCalls {
				calls++
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("ollama-call-%d", calls)
				}
				argsJSON, _ := json.Marshal(tc.Function.Arguments.ToMap())
				events <- StreamEvent{
					Type: EventTypeToolCall,
					ToolCall: &ToolCall{
						ID:    id,
						Name:  tc.Function.Name,
						Input: argsJSON,
					},
				}
			}
			if resp.Done {
				events <- StreamEvent{Type: EventTypeDone}
			}
			return nil
		})
		if err != nil {
			logging.Errorf("[Ollama] Stream error: %v", err)
			events <- StreamEvent{Type: EventTypeError, Error: &ProviderError{Provider: "ollama", Message: err.Error()}}
		}
	}()

	return events, nil
}

// buildMessages converts session messages to Ollama format
func (p *OllamaProvider) buildMessages(req *ChatRequest) []api.Message {
	pairs := pairTools(req.Messages)

	messages := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case session.RoleUser, session.RoleSystem:
			messages = append(messages, api.Message{Role: msg.Role, Content: msg.Content})

		case session.RoleAssistant:
			assistantMsg := api.Message{Role: "assistant", Content: msg.Content}
			calls, _ := msg.DecodeToolCalls()
			for _, tc := range calls {
				if !pairs.complete(tc.ID) {
					continue
				}
				args := api.NewToolCallFunctionArguments()
				for k, v := range argumentsMap(tc.Input) {
					args.Set(k, v)
				}
				assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
			if assistantMsg.Content != "" || len(assistantMsg.ToolCalls) > 0 {
				messages = append(messages, assistantMsg)
			}

		case session.RoleTool:
			results, _ := msg.DecodeToolResults()
			for _, r := range results {
				if !pairs.complete(r.ToolCallID) {
					continue
				}
				messages = append(messages, api.Message{
					Role:       "tool",
					Content:    r.Content,
					ToolCallID: r.ToolCallID,
					ToolName:   pairs.toolName(r.ToolCallID),
				})
			}
		}
	}
	return messages
}

// buildTools converts tool definitions to Ollama format
func (p *OllamaProvider) buildTools(tools []ToolDefinition) api.Tools {
	result := make(api.Tools, 0, len(tools))
	for _, tool := range tools {
		schema := schemaObject(tool.InputSchema)

		params := api.ToolFunctionParameters{
			Type:     "object",
			Required: requiredFields(schema),
		}
		if props, ok := schema["properties"].(map[string]any); ok {
			propsMap := api.NewToolPropertiesMap()
			for name, raw := range props {
				if obj, ok := raw.(map[string]any); ok {
					propsMap.Set(name, convertProperty(obj))
				}
			}
			params.Properties = propsMap
		}

		result = append(result, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return result
}

// convertProperty converts a JSON schema property to Ollama format. Union
// types such as ["null","integer"] are carried through as a PropertyType list.
func convertProperty(prop map[string]any) api.ToolProperty {
	result := api.ToolProperty{}
	switch t := prop["type"].(type) {
	case string:
		result.Type = api.PropertyType{t}
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				result.Type = append(result.Type, s)
			}
		}
	}
	if desc, ok := prop["description"].(string); ok {
		result.Description = desc
	}
	if enum, ok := prop["enum"].([]any); ok {
		result.Enum = enum
	}
	if items, ok := prop["items"]; ok {
		result.Items = items
	}
	return result
}
