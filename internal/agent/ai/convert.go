package ai

import (
	"encoding/json"

	"github.com/neboloop/hearth/internal/agent/session"
)

// toolPairing indexes the tool calls and results of a message list so that
// providers can drop unmatched halves. Backends reject a tool call without a
// result and a result without its call.
type toolPairing struct {
	called    map[string]string // call id -> tool name
	responded map[string]bool
}

func pairTools(msgs []session.Message) toolPairing {
	p := toolPairing{called: map[string]string{}, responded: map[string]bool{}}
	for _, msg := range msgs {
		switch msg.Role {
		case session.RoleAssistant:
			calls, _ := msg.DecodeToolCalls()
			for _, c := range calls {
				p.called[c.ID] = c.Name
			}
		case session.RoleTool:
			results, _ := msg.DecodeToolResults()
			for _, r := range results {
				p.responded[r.ToolCallID] = true
			}
		}
	}
	return p
}

// complete reports whether a call id has both halves.
func (p toolPairing) complete(id string) bool {
	_, ok := p.called[id]
	return ok && p.responded[id]
}

func (p toolPairing) toolName(id string) string {
	if name, ok := p.called[id]; ok {
		return name
	}
	return "unknown"
}

// schemaObject decodes a tool input schema. Nil or invalid schemas become an
// empty object schema.
func schemaObject(raw json.RawMessage) map[string]any {
	var schema map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &schema)
	}
	if schema == nil {
		schema = map[string]any{}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema
}

func requiredFields(schema map[string]any) []string {
	raw, ok := schema["required"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// argumentsMap decodes tool call input, tolerating empty input.
func argumentsMap(raw json.RawMessage) map[string]any {
	var m map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}
