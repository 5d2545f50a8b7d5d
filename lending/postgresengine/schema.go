package postgresengine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// schemaStatements returns the DDL for the engine's tables. Every statement is idempotent.
//
// The CHECK on books keeps 0 <= available_copies <= total_copies in the database itself,
// loans cascade with their book, and the partial indexes serve the active and overdue lookups.
func (e *Engine) schemaStatements() []string {
	t := TableNames{
		Books:  quoteIdent(e.tables.Books),
		Users:  quoteIdent(e.tables.Users),
		Loans:  quoteIdent(e.tables.Loans),
		Events: quoteIdent(e.tables.Events),
	}

	named := func(table, suffix string) string {
		return quoteIdent(table + suffix)
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`, t.Users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	isbn TEXT NOT NULL UNIQUE,
	year INTEGER NOT NULL,
	publisher TEXT NOT NULL DEFAULT '',
	total_copies INTEGER NOT NULL CHECK (total_copies > 0),
	available_copies INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT %[2]s CHECK (available_copies >= 0 AND available_copies <= total_copies)
)`, t.Books, named(e.tables.Books, "_available_copies_check")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY,
	book_id UUID NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
	user_id UUID NOT NULL REFERENCES %[3]s (id) ON DELETE CASCADE,
	loan_date TIMESTAMPTZ NOT NULL,
	due_date TIMESTAMPTZ NOT NULL,
	return_date TIMESTAMPTZ NULL,
	CONSTRAINT %[4]s CHECK (due_date > loan_date),
	CONSTRAINT %[5]s CHECK (return_date IS NULL OR return_date >= loan_date)
)`, t.Loans, t.Books, t.Users,
			named(e.tables.Loans, "_due_date_check"), named(e.tables.Loans, "_return_date_check")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (user_id)`,
			t.Loans, named(e.tables.Loans, "_user_id_idx")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (book_id) WHERE return_date IS NULL`,
			t.Loans, named(e.tables.Loans, "_active_book_idx")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (due_date) WHERE return_date IS NULL`,
			t.Loans, named(e.tables.Loans, "_active_due_date_idx")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	sequence_number BIGSERIAL UNIQUE,
	id UUID PRIMARY KEY,
	loan_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
)`, t.Events),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (loan_id, sequence_number)`,
			t.Events, named(e.tables.Events, "_loan_id_idx")),
	}
}

// CreateSchema creates the tables and indexes the engine needs, leaving existing ones untouched.
func (e *Engine) CreateSchema(ctx context.Context) error {
	for _, statement := range e.schemaStatements() {
		if _, err := e.execRaw(ctx, e.db, statement, actionCreateSchema); err != nil {
			e.logError(ctx, logMsgOperationFailed, err, logAttrOperation, operationSchema)
			return storeError(err)
		}
	}

	e.logOperation(ctx, actionCreateSchema)

	return nil
}

// TruncateAll removes every row from the engine's tables. Meant for test setups.
func (e *Engine) TruncateAll(ctx context.Context) error {
	statement := fmt.Sprintf("TRUNCATE TABLE %s, %s, %s, %s RESTART IDENTITY",
		quoteIdent(e.tables.Events), quoteIdent(e.tables.Loans), quoteIdent(e.tables.Books), quoteIdent(e.tables.Users))

	if _, err := e.execRaw(ctx, e.db, statement, actionTruncate); err != nil {
		return storeError(err)
	}

	return nil
}
