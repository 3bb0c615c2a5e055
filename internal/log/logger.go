package log

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

// RedactedValue replaces the value of any redacted attribute.
const RedactedValue = "[REDACTED]"

// Logger provides structured logging with slog
type Logger struct {
	slog   *slog.Logger
	config Config
}

// New creates a new Logger with the given configuration
func New(config Config) *Logger {
	redact := config.RedactKeys
	if redact == nil {
		redact = DefaultRedactKeys
	}

	opts := &slog.HandlerOptions{
		Level:       config.Level.ToSlogLevel(),
		AddSource:   config.AddSource,
		ReplaceAttr: redactAttr(redact),
	}

	w := config.Output.Writer()
	if w == nil {
		w = io.Discard
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler).With("service", config.ServiceName)
	if config.ServiceVersion != "" {
		l = l.With("version", config.ServiceVersion)
	}
	return &Logger{slog: l, config: config}
}

func redactAttr(keys []string) func(groups []string, a slog.Attr) slog.Attr {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := set[strings.ToLower(a.Key)]; ok {
			return slog.String(a.Key, RedactedValue)
		}
		return a
	}
}

// Default creates a logger with default configuration
func Default() *Logger {
	return New(DefaultConfig())
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	cfg := DefaultConfig()
	cfg.Output = NewOutput(io.Discard)
	cfg.Level = LevelError
	return New(cfg)
}

// With returns a new Logger with the given attributes added to all log entries
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
	}
}

// WithGroup returns a new Logger with a group name that prefixes all attributes
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		slog:   l.slog.WithGroup(name),
		config: l.config,
	}
}

// WithError adds error details to the logger
// If the error chain holds a DevquoteError, it adds error_code and suggestions
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	var dqErr *errors.DevquoteError
	if stderrors.As(err, &dqErr) {
		args := []any{
			"error", dqErr.Message,
			"error_code", string(dqErr.Code),
		}

		if len(dqErr.Suggestions) > 0 {
			args = append(args, "suggestions", dqErr.Suggestions)
		}

		if dqErr.Cause != nil {
			args = append(args, "cause", dqErr.Cause.Error())
		}

		return l.With(args...)
	}

	return l.With("error", err.Error())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// DebugContext logs a debug message with context
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slog.DebugContext(ctx, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// InfoContext logs an info message with context
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slog.InfoContext(ctx, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// WarnContext logs a warning message with context
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slog.WarnContext(ctx, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// ErrorContext logs an error message with context
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slog.ErrorContext(ctx, msg, args...)
}

// LogError logs an error with full details
func (l *Logger) LogError(err error) {
	l.LogErrorContext(context.Background(), err)
}

// LogErrorContext logs an error with full details and context
func (l *Logger) LogErrorContext(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var dqErr *errors.DevquoteError
	if stderrors.As(err, &dqErr) {
		args := []any{
			"error_code", string(dqErr.Code),
			"error_message", dqErr.Message,
		}

		if len(dqErr.Suggestions) > 0 {
			args = append(args, "suggestions", dqErr.Suggestions)
		}

		if dqErr.DocsURL != "" {
			args = append(args, "docs_url", dqErr.DocsURL)
		}

		if dqErr.Cause != nil {
			args = append(args, "cause", dqErr.Cause.Error())
		}

		l.ErrorContext(ctx, "operation failed", args...)
		return
	}

	l.ErrorContext(ctx, "operation failed", "error", err.Error())
}

// Enabled returns whether the logger is enabled for the given level
func (l *Logger) Enabled(ctx context.Context, level Level) bool {
	return l.slog.Enabled(ctx, level.ToSlogLevel())
}

// Handler returns the underlying slog.Handler
func (l *Logger) Handler() slog.Handler {
	return l.slog.Handler()
}

// Config returns the logger configuration
func (l *Logger) Config() Config {
	return l.config
}
