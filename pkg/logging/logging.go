// Package logging provides a small structured-logging wrapper around log/slog,
// shared by every component of the router engine.
//
// Logs are leveled (Debug/Info/Warn/Error) and tagged with a subsystem name so
// operators can filter "Cache", "Registry", "Adapter:stdio", and so on. The
// package exposes a single process-wide logger configured once at startup via
// Init; all exported functions are safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// Level mirrors slog.Level with names the rest of the router uses directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger atomic.Pointer[slog.Logger]

// Init configures the process-wide logger. Safe to call more than once; the
// most recent call wins. Programs that never call Init get a quiet INFO
// logger writing to io.Discard, so library code (and tests) can log freely
// without panicking on a nil logger.
func Init(level Level, output io.Writer) {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger.Store(slog.New(handler))
}

func logger() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	defaultLogger.CompareAndSwap(nil, l)
	return defaultLogger.Load()
}

func logf(level Level, subsystem string, err error, format string, args ...interface{}) {
	l := logger()
	if !l.Enabled(context.Background(), level.slogLevel()) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

// Debug logs a debug-level message tagged with subsystem.
func Debug(subsystem, format string, args ...interface{}) { logf(LevelDebug, subsystem, nil, format, args...) }

// Info logs an info-level message tagged with subsystem.
func Info(subsystem, format string, args ...interface{}) { logf(LevelInfo, subsystem, nil, format, args...) }

// Warn logs a warning tagged with subsystem.
func Warn(subsystem, format string, args ...interface{}) { logf(LevelWarn, subsystem, nil, format, args...) }

// Error logs an error tagged with subsystem. err may be nil.
func Error(subsystem string, err error, format string, args ...interface{}) {
	logf(LevelError, subsystem, err, format, args...)
}
