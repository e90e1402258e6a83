package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/realtime"
	"github.com/neboloop/hearth/internal/svc"
	"github.com/neboloop/hearth/internal/types"
)

type echoProvider struct{}

func (echoProvider) ID() string { return "echo" }

func (echoProvider) Stream(ctx context.Context, req *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	last := req.Messages[len(req.Messages)-1]
	ch := make(chan ai.StreamEvent, 2)
	ch <- ai.StreamEvent{Type: ai.EventTypeText, Text: "**echo** " + last.Content}
	ch <- ai.StreamEvent{Type: ai.EventTypeDone}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *svc.ServiceContext) {
	t.Helper()
	c, err := config.LoadFromBytes([]byte("provider:\n  kind: openai\n  api_key: test\n"))
	require.NoError(t, err)
	c.Capability.Executable = filepath.Join(t.TempDir(), "missing-hearth-devices")

	svcCtx := svc.NewServiceContext(c, "test", svc.WithProvider(echoProvider{}))
	svcCtx.InitAgent()

	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(NewRouter(ctx, svcCtx, ServerOptions{Quiet: true}))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, svcCtx
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndIndex(t *testing.T) {
	ts, _ := newTestServer(t)

	var health types.HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Home Automation MCP Client / Server Demo")
}

func TestChatHistoryAndReset(t *testing.T) {
	ts, _ := newTestServer(t)

	var reply types.SendMessageResponse
	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/v1/chat", types.SendMessageRequest{Text: "hello"}, &reply))
	assert.Equal(t, "**echo** hello", reply.Reply)
	assert.Contains(t, reply.HTML, "<strong>echo</strong>")
	assert.NotEmpty(t, reply.SessionID)

	var history types.HistoryResponse
	getJSON(t, ts.URL+"/api/v1/chat/history", &history)
	require.Len(t, history.Exchanges, 1)
	assert.Equal(t, "hello", history.Exchanges[0].User)
	assert.Equal(t, reply.SessionID, history.SessionID)

	var reset types.ActionResponse
	postJSON(t, ts.URL+"/api/v1/chat/reset", nil, &reset)
	assert.Equal(t, svc.MsgReset, reset.Status)
	assert.Empty(t, reset.State.SessionID)

	history = types.HistoryResponse{}
	getJSON(t, ts.URL+"/api/v1/chat/history", &history)
	assert.Empty(t, history.Exchanges)
}

func TestChatRejectsEmptyText(t *testing.T) {
	ts, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, ts.URL+"/api/v1/chat", types.SendMessageRequest{Text: "  "}, nil))
}

func TestServerStartFailureAndDeviceStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	var start types.ActionResponse
	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/api/v1/server/start", nil, &start))
	assert.True(t, strings.HasPrefix(start.Status, "❌"), start.Status)
	assert.Equal(t, "failed", start.State.Server)
	assert.Empty(t, start.State.Tools)

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/v1/devices/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/v1/devices/prompt", nil))

	var stop types.ActionResponse
	postJSON(t, ts.URL+"/api/v1/server/stop", nil, &stop)
	assert.Equal(t, "stopped", stop.State.Server)

	var status types.StatusResponse
	getJSON(t, ts.URL+"/api/v1/status", &status)
	assert.True(t, status.Agent)
	assert.Equal(t, "echo", status.Provider)
}

func TestWebSocketChat(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func(want string) realtime.Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var msg realtime.Message
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Type == want {
				return msg
			}
		}
	}

	require.NoError(t, conn.WriteJSON(realtime.Message{Type: "status"}))
	status := read("status")
	assert.Equal(t, "stopped", status.Data["server"])

	require.NoError(t, conn.WriteJSON(realtime.Message{Type: "chat", Data: map[string]any{"text": "lights?"}}))
	stream := read("chat_stream")
	assert.Equal(t, "**echo** lights?", stream.Data["content"])
	done := read("chat_complete")
	assert.Equal(t, "**echo** lights?", done.Data["reply"])
	assert.NotEmpty(t, done.Data["session_id"])
}
