// Package logger provides the structured logger shared by annodiff's
// packages.
//
// It wraps log/slog with a global DefaultLogger writing text records to
// stderr. Stdout is never used: it carries rendered diff output and, in
// serve mode, the MCP protocol stream.
//
// The initial level comes from the ANNODIFF_LOG_LEVEL environment variable
// (debug, info, warn, error) and defaults to info.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EnvLevel names the environment variable read at start-up.
const EnvLevel = "ANNODIFF_LOG_LEVEL"

var (
	// DefaultLogger is the global structured logger instance.
	DefaultLogger *slog.Logger

	mu     sync.Mutex
	output io.Writer = os.Stderr
	level            = new(slog.LevelVar)
)

func init() {
	if lvl, ok := ParseLevel(os.Getenv(EnvLevel)); ok {
		level.Set(lvl)
	}
	rebuild()
}

func rebuild() {
	DefaultLogger = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: level,
	}))
}

// ParseLevel converts a level name to a slog.Level. Unknown or empty names
// report false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel changes the level of DefaultLogger and every logger derived from
// it.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the current level.
func Level() slog.Level {
	return level.Level()
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets
// info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects DefaultLogger. Loggers obtained earlier keep writing to
// the previous destination.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Component returns DefaultLogger tagged with a component attribute.
func Component(name string) *slog.Logger {
	return DefaultLogger.With("component", name)
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// Debug logs a debug-level message.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}
