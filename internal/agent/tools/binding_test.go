package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hearth/internal/agent/ai"
)

type recordingExecutor struct {
	calls []string
}

func (e *recordingExecutor) Execute(ctx context.Context, call *ai.ToolCall) *ToolResult {
	e.calls = append(e.calls, call.Name)
	return &ToolResult{Content: "ok:" + call.Name}
}

func defs(names ...string) []ai.ToolDefinition {
	out := make([]ai.ToolDefinition, len(names))
	for i, n := range names {
		out[i] = ai.ToolDefinition{Name: n, InputSchema: json.RawMessage(`{"type":"object"}`)}
	}
	return out
}

func TestBinderStartsUnbound(t *testing.T) {
	b := NewBinder()
	cur := b.Current()
	assert.False(t, cur.HasTools())
	assert.Equal(t, InstructionsWithoutTools, cur.Instructions)

	res := cur.Execute(context.Background(), &ai.ToolCall{Name: "list_devices"})
	assert.True(t, res.IsError)
}

func TestBinderRebind(t *testing.T) {
	b := NewBinder()
	exec := &recordingExecutor{}

	var notified []int
	b.OnChange(func(nb *Binding) { notified = append(notified, len(nb.Tools)) })

	bound := b.Rebind(defs("list_devices", "control_light"), exec)
	assert.True(t, bound.HasTools())
	assert.Equal(t, InstructionsWithTools, bound.Instructions)
	assert.Equal(t, []string{"list_devices", "control_light"}, bound.ToolNames())

	res := bound.Execute(context.Background(), &ai.ToolCall{Name: "control_light"})
	assert.False(t, res.IsError)
	assert.Equal(t, "ok:control_light", res.Content)

	res = bound.Execute(context.Background(), &ai.ToolCall{Name: "format_disk"})
	assert.True(t, res.IsError)
	assert.Equal(t, []string{"control_light"}, exec.calls)

	unbound := b.Rebind(nil, exec)
	assert.False(t, unbound.HasTools())
	assert.Equal(t, InstructionsWithoutTools, unbound.Instructions)
	assert.True(t, unbound.Execute(context.Background(), &ai.ToolCall{Name: "control_light"}).IsError)

	assert.Equal(t, []int{2, 0}, notified)
}

func TestBindingSnapshotSurvivesRebind(t *testing.T) {
	b := NewBinder()
	exec := &recordingExecutor{}
	tools := defs("list_devices")
	held := b.Rebind(tools, exec)

	tools[0].Name = "mutated"
	b.Rebind(nil, nil)

	require.True(t, held.HasTools())
	assert.Equal(t, "list_devices", held.Tools[0].Name)
	assert.False(t, b.Current().HasTools())
}
