// Package logger provides structured, leveled logging for every engine
// and server component, wrapping log/slog: a severity model of
// TRACE/DEBUG/INFO/WARNING/ERROR selectable as text or JSON, with an
// optional rotating file sink.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity orders the levels this package recognizes, below slog's
// built-in Debug for TRACE and otherwise matching slog's levels.
type Severity int

const (
	Trace Severity = iota
	Debug
	Info
	Warning
	Error
)

func (s Severity) slogLevel() slog.Level {
	switch s {
	case Trace:
		return slog.Level(-8)
	case Debug:
		return slog.LevelDebug
	case Warning:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseSeverity accepts the level names of the CLI --log-level flag and
// config's log.severity field, spelled all upper or all lower case, plus
// WARN/warn for WARNING; any other string maps to Info.
func ParseSeverity(s string) Severity {
	switch s {
	case "TRACE", "trace":
		return Trace
	case "DEBUG", "debug":
		return Debug
	case "WARNING", "warning", "WARN", "warn":
		return Warning
	case "ERROR", "error":
		return Error
	default:
		return Info
	}
}

// Config describes where and how a Logger writes.
type Config struct {
	Severity Severity
	Format   string // "text" or "json"
	// FilePath, if non-empty, routes output through a rotating file
	// sink instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger wraps *slog.Logger with the severity/format conventions above.
type Logger struct {
	inner *slog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Severity.slogLevel())
	opts := &slog.HandlerOptions{Level: levelVar, ReplaceAttr: replaceSeverity}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{inner: slog.New(handler)}
}

// Nop returns a Logger that discards everything, for callers (tests,
// library embedders) that don't want log output.
func Nop() *Logger {
	return &Logger{inner: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// replaceSeverity renders slog's "level" attribute as "severity" with the
// original's TRACE/DEBUG/INFO/WARNING/ERROR names.
func replaceSeverity(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level := a.Value.Any().(slog.Level)
	switch {
	case level < slog.LevelDebug:
		a.Value = slog.StringValue("TRACE")
	case level < slog.LevelInfo:
		a.Value = slog.StringValue("DEBUG")
	case level < slog.LevelWarn:
		a.Value = slog.StringValue("INFO")
	case level < slog.LevelError:
		a.Value = slog.StringValue("WARNING")
	default:
		a.Value = slog.StringValue("ERROR")
	}
	a.Key = "severity"
	return a
}

func (l *Logger) Trace(msg string, args ...any) { l.log(Trace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.log(Debug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(Info, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(Warning, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(Error, msg, args...) }

func (l *Logger) log(sev Severity, msg string, args ...any) {
	l.inner.Log(context.Background(), sev.slogLevel(), msg, args...)
}

// With returns a Logger that always includes the given attributes, used
// by the server to tag every line from a session's worker with its
// session id (SPEC_FULL.md "Logging").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}
