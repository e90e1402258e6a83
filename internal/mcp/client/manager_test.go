//go:build !windows

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hearth/internal/agent/ai"
	"github.com/neboloop/hearth/internal/agent/tools"
	"github.com/neboloop/hearth/internal/lifecycle"
	"github.com/neboloop/hearth/internal/logging"
	hearthmcp "github.com/neboloop/hearth/internal/mcp"
)

const childEnv = "HEARTH_TEST_CHILD"

// TestMain doubles as the capability server: with HEARTH_TEST_CHILD set the
// test binary behaves as the child selected by its value.
func TestMain(m *testing.M) {
	mode := os.Getenv(childEnv)
	if mode == "" {
		os.Exit(m.Run())
	}
	logging.Setup(os.Stderr, "warn")
	seed := os.Args[len(os.Args)-1]

	switch mode {
	case "devices":
		if err := hearthmcp.ServeStdio(context.Background(), seed, "test"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "crash":
		fmt.Fprintln(os.Stderr, "boom: cannot open device bus")
		os.Exit(3)
	case "hang":
		// Alive but silent.
		time.Sleep(time.Hour)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		_ = hearthmcp.ServeStdio(context.Background(), seed, "test")
		time.Sleep(time.Hour)
	}
	os.Exit(2)
}

func newTestManager(t *testing.T, mode string) (*Manager, *tools.Binder, *lifecycle.Manager) {
	t.Helper()
	t.Setenv(childEnv, mode)

	exe, err := os.Executable()
	require.NoError(t, err)
	seed := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("{}\n"), 0o644))

	binder := tools.NewBinder()
	events := lifecycle.NewManager()
	m := NewManager(Options{
		Executable:       exe,
		File:             seed,
		StartupGrace:     300 * time.Millisecond,
		HandshakeTimeout: 2 * time.Second,
		ShutdownTimeout:  time.Second,
		ToolTimeout:      5 * time.Second,
	}, binder, events)
	t.Cleanup(func() { m.Close(context.Background()) })
	return m, binder, events
}

func alive(pid int) bool {
	return pid > 0 && syscall.Kill(pid, 0) == nil
}

func TestStartBindsTools(t *testing.T) {
	m, binder, events := newTestManager(t, "devices")
	var seen []lifecycle.Event
	events.OnAll(func(e lifecycle.Event, _ any) { seen = append(seen, e) })

	status := m.Start(context.Background())
	require.Equal(t, MsgStarted, status)
	assert.Equal(t, StateReady, m.State())
	assert.True(t, alive(m.PID()))

	b := binder.Current()
	assert.True(t, b.HasTools())
	assert.Equal(t, tools.InstructionsWithTools, b.Instructions)
	assert.ElementsMatch(t,
		[]string{"list_devices", "control_light", "set_temperature", "control_door_lock", "activate_scene"},
		b.ToolNames())
	assert.Len(t, m.Tools(), 5)
	assert.Contains(t, seen, lifecycle.EventCapabilityStarting)
	assert.Contains(t, seen, lifecycle.EventCapabilityReady)
}

func TestExecuteForwardsToServer(t *testing.T) {
	m, binder, _ := newTestManager(t, "devices")
	require.Equal(t, MsgStarted, m.Start(context.Background()))

	res := binder.Current().Execute(context.Background(), &ai.ToolCall{
		ID:    "1",
		Name:  "control_light",
		Input: json.RawMessage(`{"action":"on","brightness":80}`),
	})
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content, "Living Room Light is now on at 80% brightness")

	res = m.Execute(context.Background(), &ai.ToolCall{
		Name:  "set_temperature",
		Input: json.RawMessage(`{"target_temperature":45}`),
	})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "Temperature must be between 16°C and 30°C")

	status, err := m.ReadResource(context.Background(), hearthmcp.StatusURI)
	require.NoError(t, err)
	assert.Contains(t, status, `"brightness": 80`)

	prompt, err := m.GetPrompt(context.Background(), hearthmcp.StatusReportPrompt)
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
}

func TestStartTwiceKeepsOneProcess(t *testing.T) {
	m, _, _ := newTestManager(t, "devices")
	require.Equal(t, MsgStarted, m.Start(context.Background()))
	first := m.PID()

	require.Equal(t, MsgStarted, m.Start(context.Background()))
	second := m.PID()

	assert.NotEqual(t, first, second)
	assert.False(t, alive(first), "previous server must be gone")
	assert.True(t, alive(second))
}

func TestStopUnbindsAndIsIdempotent(t *testing.T) {
	m, binder, _ := newTestManager(t, "devices")
	require.Equal(t, MsgStarted, m.Start(context.Background()))
	pid := m.PID()

	assert.Equal(t, MsgStopped, m.Stop(context.Background()))
	assert.Equal(t, StateStopped, m.State())
	assert.Zero(t, m.PID())
	assert.False(t, alive(pid))
	assert.False(t, binder.Current().HasTools())
	assert.Equal(t, tools.InstructionsWithoutTools, binder.Current().Instructions)
	assert.Empty(t, m.Tools())

	assert.Equal(t, MsgStopped, m.Stop(context.Background()))

	res := m.Execute(context.Background(), &ai.ToolCall{Name: "list_devices"})
	assert.True(t, res.IsError)
	_, err := m.ReadResource(context.Background(), hearthmcp.StatusURI)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStopWithoutServer(t *testing.T) {
	m, binder, events := newTestManager(t, "devices")
	var seen []lifecycle.Event
	events.OnAll(func(e lifecycle.Event, _ any) { seen = append(seen, e) })

	assert.Equal(t, MsgStopped, m.Stop(context.Background()))
	assert.Equal(t, StateStopped, m.State())
	assert.False(t, binder.Current().HasTools())
	assert.Empty(t, seen)
}

func TestStartCrashReportsStderr(t *testing.T) {
	m, binder, _ := newTestManager(t, "crash")

	status := m.Start(context.Background())
	assert.True(t, strings.HasPrefix(status, "❌ Server failed to start:"), status)
	assert.Contains(t, status, "boom: cannot open device bus")
	assert.Equal(t, StateFailed, m.State())
	assert.Contains(t, m.Snapshot().LastError, "boom")
	assert.False(t, binder.Current().HasTools())
}

func TestStartMissingFile(t *testing.T) {
	m, _, _ := newTestManager(t, "devices")
	m.opts.File = filepath.Join(t.TempDir(), "absent.yaml")

	status := m.Start(context.Background())
	assert.Equal(t, "❌ MCP server file not found: "+m.opts.File, status)
	assert.Equal(t, StateFailed, m.State())
	assert.Zero(t, m.PID())
}

func TestStartHandshakeTimeout(t *testing.T) {
	m, binder, _ := newTestManager(t, "hang")
	m.opts.HandshakeTimeout = 500 * time.Millisecond

	start := time.Now()
	status := m.Start(context.Background())
	assert.True(t, strings.HasPrefix(status, "❌ Error starting MCP server:"), status)
	assert.Contains(t, status, "no response within")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateFailed, m.State())
	assert.False(t, binder.Current().HasTools())
}

func TestStopKillsStubbornServer(t *testing.T) {
	m, _, _ := newTestManager(t, "stubborn")
	m.opts.ShutdownTimeout = 300 * time.Millisecond
	require.Equal(t, MsgStarted, m.Start(context.Background()))
	pid := m.PID()

	assert.Equal(t, MsgStopped, m.Stop(context.Background()))
	assert.False(t, alive(pid))
	assert.Equal(t, StateStopped, m.State())
}

func TestWatcherUnbindsOnCrash(t *testing.T) {
	m, binder, _ := newTestManager(t, "devices")
	require.Equal(t, MsgStarted, m.Start(context.Background()))

	changed := make(chan *tools.Binding, 1)
	binder.OnChange(func(b *tools.Binding) {
		select {
		case changed <- b:
		default:
		}
	})
	require.NoError(t, syscall.Kill(m.PID(), syscall.SIGKILL))

	select {
	case b := <-changed:
		assert.False(t, b.HasTools())
	case <-time.After(5 * time.Second):
		t.Fatal("binding was not cleared after the server died")
	}
	assert.Equal(t, StateStopped, m.State())
	assert.Contains(t, m.Snapshot().LastError, "exited unexpectedly")
}

func TestStartupErrorStatus(t *testing.T) {
	tests := []struct {
		err  *StartupError
		want string
	}{
		{&StartupError{Kind: "missing_file", Detail: "x.yaml"}, "❌ MCP server file not found: x.yaml"},
		{&StartupError{Kind: "exited", Detail: "bad"}, "❌ Server failed to start: bad"},
		{&StartupError{Kind: "handshake", Detail: "initialize", Err: context.DeadlineExceeded},
			"❌ Error starting MCP server: handshake: initialize: context deadline exceeded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Status())
	}
}
