package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/config"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

// EnvTestDSN overrides the DSN of the test database.
const EnvTestDSN = "LIBRARIAN_TEST_DSN"

// Wrapper owns the connections behind a test engine.
type Wrapper struct {
	connections *config.Connections
	engine      *postgresengine.Engine
}

// GetEngine returns the engine under test.
func (w *Wrapper) GetEngine() *postgresengine.Engine {
	return w.engine
}

// AdapterType returns the adapter the wrapper was created with.
func (w *Wrapper) AdapterType() string {
	switch {
	case w.connections.SQLDB != nil:
		return config.AdapterSQLDB
	case w.connections.SQLX != nil:
		return config.AdapterSQLXDB
	default:
		return config.AdapterPGXPool
	}
}

// Close closes all connections.
func (w *Wrapper) Close() {
	w.connections.Close()
}

// TestConfig returns the configuration for the test database and the adapter from ADAPTER_TYPE.
func TestConfig() config.Config {
	cfg := config.Default()
	cfg.AdapterType = strings.ToLower(os.Getenv(config.EnvAdapterType))

	if cfg.AdapterType == "" {
		cfg.AdapterType = config.AdapterPGXPool
	}

	if dsn := os.Getenv(EnvTestDSN); dsn != "" {
		cfg.DSN = dsn
	}

	return cfg
}

// Connect opens the connections for the test configuration without building an engine.
func Connect(t testing.TB) *config.Connections {
	connections, err := config.Connect(context.Background(), TestConfig())
	require.NoError(t, err, "error connecting to the test database")

	return connections
}

// NewEngine builds an engine on connections for whichever adapter they hold.
func NewEngine(connections *config.Connections, options ...postgresengine.Option) (*postgresengine.Engine, error) {
	switch {
	case connections.PGXPool != nil && connections.Replica != nil:
		return postgresengine.NewEngineFromPGXPoolWithReplica(connections.PGXPool, connections.Replica, options...)
	case connections.PGXPool != nil:
		return postgresengine.NewEngineFromPGXPool(connections.PGXPool, options...)
	case connections.SQLDB != nil:
		return postgresengine.NewEngineFromSQLDB(connections.SQLDB, options...)
	case connections.SQLX != nil:
		return postgresengine.NewEngineFromSQLX(connections.SQLX, options...)
	default:
		panic("connections hold no database handle")
	}
}

// CreateWrapperWithTestConfig creates an engine on a freshly created, empty schema.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) *Wrapper {
	connections := Connect(t)

	engine, err := NewEngine(connections, options...)
	require.NoError(t, err, "error creating the engine")

	wrapper := &Wrapper{connections: connections, engine: engine}

	require.NoError(t, engine.CreateSchema(context.Background()), "error creating the schema")
	CleanUp(t, wrapper)

	return wrapper
}

// CleanUp empties all tables of the wrapper's engine.
func CleanUp(t testing.TB, wrapper *Wrapper) {
	require.NoError(t, wrapper.engine.TruncateAll(context.Background()), "error cleaning up the tables")
}

// Exec runs a raw statement outside the engine, e.g. to corrupt state on purpose.
func Exec(t testing.TB, wrapper *Wrapper, query string) int64 {
	ctx := context.Background()

	switch {
	case wrapper.connections.PGXPool != nil:
		tag, err := wrapper.connections.PGXPool.Exec(ctx, query)
		require.NoError(t, err, "error in arranging test data")

		return tag.RowsAffected()

	default:
		db := wrapper.sqlDB()
		result, err := db.ExecContext(ctx, query)
		require.NoError(t, err, "error in arranging test data")

		rowsAffected, err := result.RowsAffected()
		require.NoError(t, err, "error in arranging test data")

		return rowsAffected
	}
}

// HoldRowLock locks the row with id in table inside a separate transaction until release is called.
func HoldRowLock(t testing.TB, wrapper *Wrapper, table string, id fmt.Stringer) (release func()) {
	ctx := context.Background()
	query := fmt.Sprintf("SELECT id FROM %s WHERE id = '%s' FOR UPDATE", table, id.String())

	switch {
	case wrapper.connections.PGXPool != nil:
		tx, err := wrapper.connections.PGXPool.BeginTx(ctx, pgx.TxOptions{})
		require.NoError(t, err, "error in arranging test data")

		_, err = tx.Exec(ctx, query)
		require.NoError(t, err, "error in arranging test data")

		return func() { _ = tx.Rollback(ctx) }

	default:
		tx, err := wrapper.sqlDB().BeginTx(ctx, nil)
		require.NoError(t, err, "error in arranging test data")

		_, err = tx.ExecContext(ctx, query)
		require.NoError(t, err, "error in arranging test data")

		return func() { _ = tx.Rollback() }
	}
}

func (w *Wrapper) sqlDB() *sql.DB {
	if w.connections.SQLX != nil {
		return w.connections.SQLX.DB
	}

	return w.connections.SQLDB
}
