package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/neboloop/hearth/internal/home"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, h *home.Home) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := NewServer(h, "test").Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callText(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text, res.IsError
}

func TestServerListsTools(t *testing.T) {
	cs := connect(t, home.New(home.DefaultDevices()))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.InputSchema)
	}
	assert.ElementsMatch(t, []string{
		"list_devices", "control_light", "set_temperature", "control_door_lock", "activate_scene",
	}, names)
}

func TestServerControlLightRejectsBrightness(t *testing.T) {
	h := home.New(home.DefaultDevices())
	cs := connect(t, h)
	before := h.Devices()

	text, isErr := callText(t, cs, "control_light", map[string]any{"action": "on", "brightness": 150})
	assert.True(t, isErr)
	assert.Contains(t, text, "Brightness must be between 0 and 100")
	assert.Equal(t, before, h.Devices())
	assert.Empty(t, h.Events())
}

func TestServerSetTemperature(t *testing.T) {
	h := home.New(home.DefaultDevices())
	cs := connect(t, h)

	text, isErr := callText(t, cs, "set_temperature", map[string]any{"target_temperature": 45})
	assert.True(t, isErr)
	assert.Contains(t, text, "16")
	assert.Contains(t, text, "30")

	text, isErr = callText(t, cs, "set_temperature", map[string]any{"target_temperature": 25})
	assert.False(t, isErr)
	assert.Contains(t, text, "Current temperature: 22.6°C")
	assert.Equal(t, 25.0, h.Devices().Thermostat.TargetTemperature)
	assert.Equal(t, 22.6, h.Devices().Thermostat.Temperature)
}

func TestServerSceneAndStatusResource(t *testing.T) {
	h := home.New(home.DefaultDevices())
	cs := connect(t, h)

	text, isErr := callText(t, cs, "activate_scene", map[string]any{"scene": "evening"})
	require.False(t, isErr)
	assert.Contains(t, text, "Scene 'evening' activated!")

	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: StatusURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	var st home.Status
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &st))
	assert.Equal(t, "on", st.Devices.Light.State)
	assert.Equal(t, 70, st.Devices.Light.Brightness)
	require.Len(t, st.RecentEvents, 1)
	assert.Equal(t, "Scene 'evening' activated", st.RecentEvents[0].Action)
}

func TestServerListDevicesAndPrompt(t *testing.T) {
	cs := connect(t, home.New(home.DefaultDevices()))

	text, isErr := callText(t, cs, "list_devices", map[string]any{})
	assert.False(t, isErr)
	assert.Contains(t, text, "Home Devices Status")

	p, err := cs.GetPrompt(context.Background(), &mcp.GetPromptParams{Name: StatusReportPrompt})
	require.NoError(t, err)
	require.Len(t, p.Messages, 1)
	tc, ok := p.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "list_devices")
}
