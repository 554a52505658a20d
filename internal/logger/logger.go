// Package logger provides the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var std = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Configure sets the minimum level from a string ("debug", "info", "warn", "error").
// Unrecognized values leave the current level unchanged.
func Configure(level string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return
	}
	std = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func Debug(msg string, args ...any) { std.Debug(msg, args...) }
func Info(msg string, args ...any)  { std.Info(msg, args...) }
func Warn(msg string, args ...any)  { std.Warn(msg, args...) }
func Error(msg string, args ...any) { std.Error(msg, args...) }

// With returns a logger scoped with the given key/value pairs, for call
// sites that want to avoid repeating route/session fields on every line.
func With(args ...any) *slog.Logger {
	return std.With(args...)
}
