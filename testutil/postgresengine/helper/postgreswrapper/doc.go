// Package postgreswrapper opens the lending engine on the adapter chosen by the ADAPTER_TYPE
// environment variable (pgx.pool by default, sql.db or sqlx.db) so the same integration
// tests run against every adapter.
package postgreswrapper
