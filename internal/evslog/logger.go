// Package evslog provides structured logging built on log/slog.
//
// Unlike the CLI this is adapted from, there is no package-level singleton:
// callers construct a *Logger explicitly (usually once, in cmd/eversession)
// and thread it through evscore.Context-carrying call chains, or attach it
// to a context.Context with WithLogger for deeply nested pure code that
// would otherwise need a logger parameter threaded through every call.
package evslog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	runIDKey
	sessionIDKey
	agentKey
)

// Logger wraps slog.Logger with run/session/agent attribute extraction
// performed against context values.
type Logger struct {
	slog *slog.Logger
}

// New builds a JSON logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{slog: slog.New(handler)}
}

// NewFromEnv builds a logger honoring EVERSESSION_LOG_LEVEL, falling back to
// stderr at INFO when unset or invalid.
func NewFromEnv() *Logger {
	return New(os.Stderr, ParseLevel(os.Getenv("EVERSESSION_LOG_LEVEL")))
}

// ParseLevel parses a level string, defaulting to INFO for empty/invalid input.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithLogger attaches l to ctx so deeply nested pure functions can log
// without an explicit parameter.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithRunID attaches a supervisor run id for log correlation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithSessionID attaches a session id for log correlation.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithAgent attaches an agent name ("a" or "b") for log correlation.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// FromContext returns the logger attached to ctx, or a stderr default.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
			return l
		}
	}
	return NewFromEnv()
}

func (l *Logger) Debug(ctx context.Context, msg string, attrs ...any) { l.log(ctx, slog.LevelDebug, msg, attrs) }
func (l *Logger) Info(ctx context.Context, msg string, attrs ...any)  { l.log(ctx, slog.LevelInfo, msg, attrs) }
func (l *Logger) Warn(ctx context.Context, msg string, attrs ...any)  { l.log(ctx, slog.LevelWarn, msg, attrs) }
func (l *Logger) Error(ctx context.Context, msg string, attrs ...any) { l.log(ctx, slog.LevelError, msg, attrs) }

// LogDuration logs with a duration_ms attribute computed from start.
func (l *Logger) LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	all := make([]any, 0, len(attrs)+1)
	all = append(all, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	all = append(all, attrs...)
	l.log(ctx, level, msg, all)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, attrs []any) {
	all := append(contextAttrs(ctx), attrs...)
	l.slog.Log(ctx, level, msg, all...) //nolint:staticcheck // context may be nil upstream; slog tolerates it
}

func contextAttrs(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var attrs []any
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("run_id", v))
	}
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("session_id", v))
	}
	if v, ok := ctx.Value(agentKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("agent", v))
	}
	return attrs
}
