// Package logging provides the small structured logging surface used by the
// segmentation runtime. Components depend on the Logger interface; the CLIs
// plug in a log/slog backed implementation and tests use NoOp.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is a user facing log level decoupled from slog.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses debug, info, warn or error. Unknown strings map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the minimal logging interface used across the runtime.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// With returns a logger carrying the given attributes.
func (s *SlogAdapter) With(args ...any) Logger {
	return &SlogAdapter{Logger: s.Logger.With(args...)}
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewSlogLogger builds a Logger writing json (default) or text records to w.
// A nil writer logs to stderr.
func NewSlogLogger(level Level, format string, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NoOp discards everything.
type NoOp struct{}

func (NoOp) Debug(string, ...any) {}
func (NoOp) Info(string, ...any) {}
func (NoOp) Warn(string, ...any) {}
func (NoOp) Error(string, ...any) {}
func (n NoOp) With(...any) Logger { return n }

// OrNoOp returns l, or NoOp when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOp{}
	}
	return l
}
