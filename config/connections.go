package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const driverName = "postgres"

// Connections holds the open handles for the configured adapter. Exactly one of
// PGXPool, SQLDB or SQLX is set; Replica is only set for pgx.pool with a replica DSN.
type Connections struct {
	PGXPool *pgxpool.Pool
	Replica *pgxpool.Pool
	SQLDB   *sql.DB
	SQLX    *sqlx.DB
}

// Close closes every open handle.
func (c *Connections) Close() {
	if c.PGXPool != nil {
		c.PGXPool.Close()
	}

	if c.Replica != nil {
		c.Replica.Close()
	}

	if c.SQLDB != nil {
		_ = c.SQLDB.Close()
	}

	if c.SQLX != nil {
		_ = c.SQLX.Close()
	}
}

// Connect opens and pings the connections for cfg.AdapterType.
func Connect(ctx context.Context, cfg Config) (*Connections, error) {
	switch cfg.AdapterType {
	case AdapterPGXPool, "":
		primary, err := OpenPGXPool(ctx, cfg.DSN, cfg.Pool)
		if err != nil {
			return nil, err
		}

		connections := &Connections{PGXPool: primary}

		if cfg.ReplicaDSN != "" {
			if connections.Replica, err = OpenPGXPool(ctx, cfg.ReplicaDSN, cfg.Pool); err != nil {
				primary.Close()
				return nil, err
			}
		}

		return connections, nil

	case AdapterSQLDB:
		db, err := OpenSQLDB(ctx, cfg.DSN, cfg.Pool)
		if err != nil {
			return nil, err
		}

		return &Connections{SQLDB: db}, nil

	case AdapterSQLXDB:
		db, err := OpenSQLX(ctx, cfg.DSN, cfg.Pool)
		if err != nil {
			return nil, err
		}

		return &Connections{SQLX: db}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, cfg.AdapterType)
	}
}

// PGXPoolConfig parses dsn and applies the pool tuning.
func PGXPoolConfig(dsn string, pool Pool) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create a pgx pool config: %w", err)
	}

	dbConfig.MaxConns = pool.MaxConns
	dbConfig.MinConns = pool.MinConns
	dbConfig.MaxConnLifetime = pool.MaxConnLifetime
	dbConfig.MaxConnIdleTime = pool.MaxConnIdleTime
	dbConfig.HealthCheckPeriod = pool.HealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = pool.ConnectTimeout

	return dbConfig, nil
}

// OpenPGXPool creates a pgx pool for dsn and pings it.
func OpenPGXPool(ctx context.Context, dsn string, pool Pool) (*pgxpool.Pool, error) {
	dbConfig, err := PGXPoolConfig(dsn, pool)
	if err != nil {
		return nil, err
	}

	connPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create a pgx pool: %w", err)
	}

	if err = connPool.Ping(ctx); err != nil {
		connPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return connPool, nil
}

// OpenSQLDB opens a lib/pq backed sql.DB for dsn and pings it.
func OpenSQLDB(ctx context.Context, dsn string, pool Pool) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	applySQLPool(db, pool)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenSQLX opens a lib/pq backed sqlx.DB for dsn and pings it.
func OpenSQLX(ctx context.Context, dsn string, pool Pool) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	applySQLPool(db.DB, pool)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func applySQLPool(db *sql.DB, pool Pool) {
	db.SetMaxOpenConns(int(pool.MaxConns))
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.MaxConnLifetime)
	db.SetConnMaxIdleTime(pool.MaxConnIdleTime)
}
