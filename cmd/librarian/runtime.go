package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/library-lending-go/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/notify"
	"github.com/AntonStoeckl/library-lending-go/oteladapters"
	"github.com/AntonStoeckl/library-lending-go/overdue"
)

const instrumentationName = "github.com/AntonStoeckl/library-lending-go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runtime bundles what a command needs to talk to the database.
type runtime struct {
	cfg              config.Config
	connections      *config.Connections
	providers        *config.ObservabilityProviders
	engine           *postgresengine.Engine
	contextualLogger lending.ContextualLogger
	metrics          lending.MetricsCollector
	tracing          lending.TracingCollector
}

func openRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	if cfg.Observability {
		providers, err := config.NewObservabilityProviders(ctx, cfg, Version)
		if err != nil {
			return nil, fmt.Errorf("failed to set up observability: %w", err)
		}

		rt.providers = providers
		rt.metrics = oteladapters.NewMetricsCollector(otel.Meter(instrumentationName))
		rt.tracing = oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))
		rt.contextualLogger = oteladapters.NewSlogBridgeLogger(instrumentationName)
	}

	connections, err := config.Connect(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.connections = connections

	engine, err := newEngine(connections, rt.engineOptions()...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.engine = engine

	return rt, nil
}

func (rt *runtime) engineOptions() []postgresengine.Option {
	options := []postgresengine.Option{
		postgresengine.WithLogger(slog.Default()),
		postgresengine.WithLockTimeout(rt.cfg.LockTimeout),
	}

	if rt.contextualLogger != nil {
		options = append(options, postgresengine.WithContextualLogger(rt.contextualLogger))
	}

	if rt.metrics != nil {
		options = append(options, postgresengine.WithMetrics(rt.metrics))
	}

	if rt.tracing != nil {
		options = append(options, postgresengine.WithTracing(rt.tracing))
	}

	return options
}

func (rt *runtime) sweeper() (*overdue.Sweeper, error) {
	notifier, err := notifierFor(rt.cfg)
	if err != nil {
		return nil, err
	}

	options := []overdue.Option{overdue.WithLogger(slog.Default())}

	if rt.contextualLogger != nil {
		options = append(options, overdue.WithContextualLogger(rt.contextualLogger))
	}

	if rt.metrics != nil {
		options = append(options, overdue.WithMetrics(rt.metrics))
	}

	if rt.tracing != nil {
		options = append(options, overdue.WithTracing(rt.tracing))
	}

	return overdue.NewSweeper(rt.engine, notifier, options...), nil
}

// Close releases connections and flushes telemetry.
func (rt *runtime) Close() {
	if rt.connections != nil {
		rt.connections.Close()
	}

	if rt.providers != nil {
		if err := rt.providers.Shutdown(); err != nil {
			slog.Warn("failed to shut down observability providers", "error", err.Error())
		}
	}
}

func newEngine(connections *config.Connections, options ...postgresengine.Option) (*postgresengine.Engine, error) {
	switch {
	case connections.PGXPool != nil && connections.Replica != nil:
		return postgresengine.NewEngineFromPGXPoolWithReplica(connections.PGXPool, connections.Replica, options...)
	case connections.PGXPool != nil:
		return postgresengine.NewEngineFromPGXPool(connections.PGXPool, options...)
	case connections.SQLDB != nil:
		return postgresengine.NewEngineFromSQLDB(connections.SQLDB, options...)
	default:
		return postgresengine.NewEngineFromSQLX(connections.SQLX, options...)
	}
}

// notifierFor mails through SMTP when an address is configured and only logs otherwise.
func notifierFor(cfg config.Config) (overdue.Notifier, error) {
	if strings.TrimSpace(cfg.SMTP.Addr) == "" {
		return notify.NewLogNotifier(slog.Default()), nil
	}

	return notify.NewSMTPNotifier(cfg.SMTP.Addr, cfg.SMTP.From, notify.WithPlainAuth(cfg.SMTP.Username, cfg.SMTP.Password))
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(ctx, rt)
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, lending.Invalidf("%s id %q is not a uuid", kind, raw)
	}

	return id, nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
