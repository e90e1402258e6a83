// Package logging is the process-wide leveled logger. It keeps the printf-style
// helpers used across hearth and routes them through log/slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	disabled atomic.Bool
	logger   atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(newLogger(os.Stderr, slog.LevelInfo))
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup replaces the process logger with a text handler writing to w.
// Unknown or empty levels fall back to info.
func Setup(w io.Writer, level string) {
	logger.Store(newLogger(w, ParseLevel(level)))
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Disable turns off all logging
func Disable() {
	disabled.Store(true)
}

// Enable turns logging back on
func Enable() {
	disabled.Store(false)
}

func emit(level slog.Level, msg string) {
	if disabled.Load() {
		return
	}
	logger.Load().Log(context.Background(), level, msg)
}

// Info logs an info message
func Info(v ...any) {
	emit(slog.LevelInfo, fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	emit(slog.LevelInfo, fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func Warn(v ...any) {
	emit(slog.LevelWarn, fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	emit(slog.LevelWarn, fmt.Sprintf(format, v...))
}

// Error logs an error message
func Error(v ...any) {
	emit(slog.LevelError, fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	emit(slog.LevelError, fmt.Sprintf(format, v...))
}

// Debug logs a debug message
func Debug(v ...any) {
	emit(slog.LevelDebug, fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	emit(slog.LevelDebug, fmt.Sprintf(format, v...))
}
