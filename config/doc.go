// Package config loads the librarian configuration and opens database connections for it.
//
// Values come from defaults, then an optional YAML file, then environment variables,
// each layer overriding the previous one. Connections can be opened for all three
// supported PostgreSQL adapters (pgx.Pool, sql.DB, sqlx.DB), optionally with a pgx replica.
package config
