package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/hearth/internal/config"
	"github.com/neboloop/hearth/internal/svc"
)

func resetFlags(t *testing.T) {
	t.Helper()
	cfgFile, logLevel, verbose = "", "", false
	t.Cleanup(func() {
		cfgFile, logLevel, verbose = "", "", false
		ServerConfig = nil
	})
}

func TestLoadConfigFromFlag(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "hearth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9123\nprovider:\n  kind: ollama\n"), 0o644))

	embedded, err := config.LoadFromBytes([]byte("server:\n  port: 7000\n"))
	require.NoError(t, err)
	ServerConfig = &embedded
	cfgFile = path

	require.NoError(t, loadConfig())
	assert.Equal(t, 9123, ServerConfig.Server.Port)
	assert.Equal(t, config.ProviderOllama, ServerConfig.Provider.Kind)
}

func TestLoadConfigErrors(t *testing.T) {
	resetFlags(t)
	ServerConfig = nil
	assert.Error(t, loadConfig())

	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, loadConfig())
}

func TestRootCommandWiring(t *testing.T) {
	resetFlags(t)
	c, err := config.LoadFromBytes(nil)
	require.NoError(t, err)

	root := SetupRootCmd(&c, "1.2.3")
	assert.Equal(t, "1.2.3", Version)
	for _, name := range []string{"serve", "chat", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRunChatCommand(t *testing.T) {
	resetFlags(t)
	c, err := config.LoadFromBytes([]byte("provider:\n  kind: openai\n  api_key: test\n"))
	require.NoError(t, err)
	c.Capability.Executable = filepath.Join(t.TempDir(), "missing-hearth-devices")
	svcCtx := svc.NewServiceContext(c, "test")
	printer := &turnPrinter{}
	ctx := context.Background()

	assert.True(t, runChatCommand(ctx, svcCtx, printer, "/quit"))
	assert.False(t, runChatCommand(ctx, svcCtx, printer, "/tools"))
	assert.False(t, runChatCommand(ctx, svcCtx, printer, "/devices"))
	assert.False(t, runChatCommand(ctx, svcCtx, printer, "/nope"))

	assert.False(t, runChatCommand(ctx, svcCtx, printer, "/reset"))
	assert.Equal(t, svc.MsgReset, svcCtx.StatusMessage())

	assert.False(t, runChatCommand(ctx, svcCtx, printer, "/start"))
	assert.Equal(t, "failed", string(svcCtx.Capability.State()))
	assert.False(t, runChatCommand(ctx, svcCtx, printer, "/stop"))
	assert.Equal(t, "stopped", string(svcCtx.Capability.State()))
}

func TestOrNone(t *testing.T) {
	assert.Equal(t, "(none)", orNone(""))
	assert.Equal(t, "abc", orNone("abc"))
}
