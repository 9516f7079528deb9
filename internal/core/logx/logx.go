package logx

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// context key type to avoid collisions
type ctxKey struct{}

var (
	once       sync.Once
	baseLogger zerolog.Logger
)

// Options overrides the environment. Empty fields fall back to it.
type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|console
	Output io.Writer
}

// Init initializes the global logger once. Later calls are no-ops.
// Env vars:
//
//	LOG_LEVEL=debug|info|warn|error (default: info)
//	LOG_FORMAT=json|console (default: json)
func Init(opts Options) {
	once.Do(func() {
		if opts.Level == "" {
			opts.Level = os.Getenv("LOG_LEVEL")
		}
		if opts.Format == "" {
			opts.Format = os.Getenv("LOG_FORMAT")
		}
		if opts.Output == nil {
			opts.Output = os.Stderr
		}
		baseLogger = New(opts)
	})
}

// New builds a logger without touching the global one
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(opts.Format, "console") || strings.EqualFold(opts.Format, "text") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp().
		Str("app", "unmark").
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// FromContext retrieves the request-scoped logger or returns the base logger
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	return base()
}

// With returns a new context containing a logger with additional fields,
// given as alternating keys and values
func With(ctx context.Context, args ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	l := FromContext(ctx).With().Fields(args).Logger()
	return context.WithValue(ctx, ctxKey{}, &l)
}

// WithLogger stores l in ctx, used by tests to capture output
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, &l)
}

// base returns the initialized base logger (initializing if necessary)
func base() *zerolog.Logger {
	Init(Options{})
	return &baseLogger
}
