package postgresengine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// maxIdentifierLength is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLength = 63

// ErrNegativeLockTimeout is returned when a negative lock timeout is supplied.
var ErrNegativeLockTimeout = errors.New("lock timeout must not be negative")

type (
	Logger           = lending.Logger
	ContextualLogger = lending.ContextualLogger
	MetricsCollector = lending.MetricsCollector
	TracingCollector = lending.TracingCollector
	SpanContext      = lending.SpanContext
)

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithTableNames overrides the default table names. All four names must be non-empty plain identifiers,
// they are quoted as given, so case is preserved.
func WithTableNames(tables TableNames) Option {
	return func(e *Engine) error {
		for _, name := range []string{tables.Books, tables.Users, tables.Loans, tables.Events} {
			if name == "" {
				return lending.ErrEmptyTableName
			}

			if len(name) > maxIdentifierLength || strings.ContainsAny(name, ".\x00") {
				return fmt.Errorf("%w: %q", lending.ErrInvalidTableName, name)
			}
		}

		e.tables = tables

		return nil
	}
}

// WithClock replaces time.Now, e.g. with a fake clock in tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		if clock != nil {
			e.clock = clock
		}

		return nil
	}
}

// WithLockTimeout bounds how long a lend or return waits for the book row lock.
// Zero means wait as long as the server allows. A timeout surfaces as lending.ErrConcurrencyConflict.
func WithLockTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if timeout < 0 {
			return ErrNegativeLockTimeout
		}

		e.lockTimeout = timeout

		return nil
	}
}

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Loans issued and returned, out-of-stock rejections (production-safe)
// Warn level: Non-critical issues like rollback or cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// It receives the same messages as the Logger, with the context for trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// It receives operation durations, operation counts by status, out-of-stock rejections and store errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
// Every public operation opens one span named after it.
func WithTracing(collector TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}
