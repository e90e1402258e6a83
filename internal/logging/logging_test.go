package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestSetupAndDisable(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "info")
	t.Cleanup(func() {
		Enable()
		Setup(&bytes.Buffer{}, "info")
	})

	Infof("[Test] hello %s", "world")
	Debugf("[Test] hidden")
	assert.Contains(t, buf.String(), "[Test] hello world")
	assert.NotContains(t, buf.String(), "hidden")

	buf.Reset()
	Disable()
	Errorf("[Test] muted")
	assert.Empty(t, buf.String())
}
