package svc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/agent/session"
	"github.com/neboloop/hearth/internal/config"
	mcpclient "github.com/neboloop/hearth/internal/mcp/client"
)

type echoProvider struct {
	prompts []int
}

func (p *echoProvider) ID() string { return "echo" }

func (p *echoProvider) Stream(ctx context.Context, req *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	p.prompts = append(p.prompts, len(req.Messages))
	last := req.Messages[len(req.Messages)-1]
	ch := make(chan ai.StreamEvent, 2)
	ch <- ai.StreamEvent{Type: ai.EventTypeText, Text: "echo: " + last.Content}
	ch <- ai.StreamEvent{Type: ai.EventTypeDone}
	close(ch)
	return ch, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	c, err := config.LoadFromBytes([]byte("provider:\n  kind: openai\n  api_key: test\n"))
	require.NoError(t, err)
	c.Capability.Executable = filepath.Join(t.TempDir(), "missing-hearth-devices")
	return c
}

func TestSendBeforeInit(t *testing.T) {
	svc := NewServiceContext(testConfig(t), "test")
	assert.Equal(t, MsgInitializing, svc.StatusMessage())
	assert.False(t, svc.AgentReady())

	assert.Equal(t, session.UnavailableMessage, svc.Send(context.Background(), "hello"))
	assert.Empty(t, svc.Conversation.ID())
	assert.Empty(t, svc.Conversation.History())
}

func TestInitAgentFailure(t *testing.T) {
	svc := NewServiceContext(testConfig(t), "test")
	svc.newProvider = func(config.ProviderConfig) (ai.Provider, error) {
		return nil, errors.New("missing endpoint")
	}

	assert.Equal(t, "❌ Error initialising LLM: missing endpoint", svc.InitAgent())
	assert.False(t, svc.AgentReady())
	assert.Equal(t, session.UnavailableMessage, svc.Send(context.Background(), "hello"))
}

func TestConversationContinuityAndReset(t *testing.T) {
	p := &echoProvider{}
	svc := NewServiceContext(testConfig(t), "test", WithProvider(p))
	require.Equal(t, MsgAgentReady, svc.InitAgent())

	assert.Equal(t, "echo: my name is Ada", svc.Send(context.Background(), "my name is Ada"))
	id := svc.Conversation.ID()
	require.NotEmpty(t, id)

	assert.Equal(t, "echo: what is my name?", svc.Send(context.Background(), "what is my name?"))
	assert.Equal(t, id, svc.Conversation.ID())
	assert.Equal(t, []int{1, 3}, p.prompts)

	assert.Equal(t, MsgReset, svc.Reset())
	assert.Empty(t, svc.Conversation.ID())

	svc.Send(context.Background(), "hi again")
	assert.NotEqual(t, id, svc.Conversation.ID())
	assert.Equal(t, 1, p.prompts[len(p.prompts)-1])
}

func TestStartServerFailureKeepsServiceUsable(t *testing.T) {
	svc := NewServiceContext(testConfig(t), "test", WithProvider(&echoProvider{}))
	svc.InitAgent()

	status := svc.StartServer(context.Background())
	assert.Contains(t, status, "❌ MCP server executable not found")
	assert.Equal(t, status, svc.StatusMessage())
	assert.Equal(t, mcpclient.StateFailed, svc.Capability.State())
	assert.False(t, svc.Binder.Current().HasTools())

	// Chat still works without tools.
	assert.Equal(t, "echo: hi", svc.Send(context.Background(), "hi"))

	assert.Equal(t, mcpclient.MsgStopped, svc.StopServer(context.Background()))
	assert.Equal(t, mcpclient.StateStopped, svc.Capability.State())

	_, err := svc.DeviceStatus(context.Background())
	assert.ErrorIs(t, err, mcpclient.ErrNotRunning)
}

func TestSnapshot(t *testing.T) {
	svc := NewServiceContext(testConfig(t), "test", WithProvider(&echoProvider{}))
	svc.InitAgent()
	svc.Send(context.Background(), "hello")

	s := svc.Snapshot()
	assert.True(t, s.Agent)
	assert.Equal(t, "echo", s.Provider)
	assert.Equal(t, svc.Conversation.ID(), s.SessionID)
	assert.Equal(t, mcpclient.StateStopped, s.Capability.State)
	assert.Empty(t, s.Capability.Tools)
}

func TestOnStreamReceivesEvents(t *testing.T) {
	svc := NewServiceContext(testConfig(t), "test", WithProvider(&echoProvider{}))
	var got []string
	svc.OnStream(func(ev ai.StreamEvent) {
		if ev.Type == ai.EventTypeText {
			got = append(got, ev.Text)
		}
	})
	svc.InitAgent()
	svc.Send(context.Background(), "ping")
	assert.Equal(t, []string{"echo: ping"}, got)
}
