// Package adapters provide database adapter implementations for the PostgreSQL lending engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, including transactions, so the engine can scope every
// lend and return to one unit of work regardless of the connection type.
package adapters
