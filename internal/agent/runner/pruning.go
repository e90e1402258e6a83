package runner

import (
	"encoding/json"
	"strings"

	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/logging"
)

// CharsPerTokenEstimate converts a token budget into a character budget.
const CharsPerTokenEstimate = 4

// minClearChars leaves short results such as "Light turned on" alone.
const minClearChars = 200

// pruneContext shrinks old tool results in the request copy of the message
// list. The last cfg.KeepLastAssistant assistant turns and everything after
// them are replayed untouched.
func pruneContext(messages []session.Message, cfg config.ContextPruningConfig) []session.Message {
	if cfg.ContextTokens <= 0 || len(messages) == 0 {
		return messages
	}

	budget := cfg.ContextTokens * CharsPerTokenEstimate
	total := 0
	for i := range messages {
		total += messageChars(&messages[i])
	}
	if total <= int(float64(budget)*cfg.SoftTrimRatio) {
		return messages
	}

	out := make([]session.Message, len(messages))
	copy(out, messages)
	cutoff := protectedFrom(out, cfg.KeepLastAssistant)
	labels := toolCallLabels(out)

	trimmed := 0
	total = rewriteResults(out[:cutoff], labels, total, func(r *session.ToolResult) (string, bool) {
		n := len(r.Content)
		if n <= cfg.SoftTrimMaxChars || n <= cfg.SoftTrimHead+cfg.SoftTrimTail {
			return "", false
		}
		trimmed++
		return r.Content[:cfg.SoftTrimHead] + "\n...\n" + r.Content[n-cfg.SoftTrimTail:], true
	})
	if trimmed > 0 {
		logging.Debugf("[Runner] soft-trimmed %d tool results (chars %d, budget %d)", trimmed, total, budget)
	}

	if total <= int(float64(budget)*cfg.HardClearRatio) {
		return out
	}

	cleared := 0
	total = rewriteResults(out[:cutoff], labels, total, func(r *session.ToolResult) (string, bool) {
		if len(r.Content) <= minClearChars || strings.Contains(r.Content, cfg.HardClearPlaceholder) {
			return "", false
		}
		cleared++
		return cfg.HardClearPlaceholder, true
	})
	if cleared > 0 {
		logging.Debugf("[Runner] cleared %d tool results (chars %d, budget %d)", cleared, total, budget)
	}
	return out
}

// protectedFrom returns the index of the keep-th assistant message from the
// end, or len(messages) when keep is zero.
func protectedFrom(messages []session.Message, keep int) int {
	cutoff := len(messages)
	seen := 0
	for i := len(messages) - 1; i >= 0 && seen < keep; i-- {
		if messages[i].Role == session.RoleAssistant {
			seen++
			cutoff = i
		}
	}
	return cutoff
}

// rewriteResults applies fn to every tool result in messages. A rewritten
// result is prefixed with the call label and outcome so the model still knows
// what ran. It returns the updated character total.
func rewriteResults(messages []session.Message, labels map[string]string, total int, fn func(*session.ToolResult) (string, bool)) int {
	for i := range messages {
		results, err := messages[i].DecodeToolResults()
		if err != nil || len(results) == 0 {
			continue
		}
		changed := false
		for j := range results {
			body, ok := fn(&results[j])
			if !ok {
				continue
			}
			status := "succeeded"
			if results[j].IsError {
				status = "failed"
			}
			header := "[" + status + "]"
			if label, ok := labels[results[j].ToolCallID]; ok {
				header = "[" + label + ": " + status + "]"
			}
			replacement := header + "\n" + body
			total -= len(results[j].Content) - len(replacement)
			results[j].Content = replacement
			changed = true
		}
		if !changed {
			continue
		}
		if raw, err := json.Marshal(results); err == nil {
			messages[i].ToolResults = raw
		}
	}
	return total
}

func messageChars(m *session.Message) int {
	return len(m.Content) + len(m.ToolCalls) + len(m.ToolResults)
}

// toolCallLabels maps call IDs to "name(action)" style labels.
func toolCallLabels(messages []session.Message) map[string]string {
	labels := make(map[string]string)
	for _, m := range messages {
		calls, err := m.DecodeToolCalls()
		if err != nil {
			continue
		}
		for _, tc := range calls {
			label := tc.Name
			var input map[string]any
			if json.Unmarshal(tc.Input, &input) == nil {
				for _, key := range []string{"action", "scene"} {
					if v, ok := input[key].(string); ok && v != "" {
						label += "(" + v + ")"
						break
					}
				}
			}
			labels[tc.ID] = label
		}
	}
	return labels
}
