package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_storeError_MarksLockContention_AsConcurrencyConflict(t *testing.T) {
	for _, code := range []string{sqlStateLockNotAvailable, sqlStateDeadlockDetected, sqlStateSerializationFailure} {
		t.Run(code, func(t *testing.T) {
			for _, driverErr := range []error{&pgconn.PgError{Code: code}, &pq.Error{Code: pq.ErrorCode(code)}} {
				// act
				err := storeError(fmt.Errorf("wrapped: %w", driverErr))

				// assert
				assert.ErrorIs(t, err, lending.ErrStoreUnavailable)
				assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
				assert.ErrorIs(t, err, driverErr)
				assert.Equal(t, "concurrency_conflict", lending.ErrorType(err))
			}
		})
	}
}

func Test_storeError_MarksOtherFailures_AsStoreUnavailableOnly(t *testing.T) {
	// arrange
	connectionFailure := &pgconn.PgError{Code: "08006"}

	// act
	err := storeError(connectionFailure)

	// assert
	assert.ErrorIs(t, err, lending.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.Equal(t, "store_unavailable", lending.ErrorType(err))
}

func Test_storeError_LeavesClassifiedErrorsAndNilAlone(t *testing.T) {
	// arrange
	classified := storeError(errors.New("connection refused"))

	// act & assert
	assert.Same(t, classified, storeError(classified))
	assert.NoError(t, storeError(nil))
}

func Test_isUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: sqlStateUniqueViolation}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: sqlStateUniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: sqlStateLockNotAvailable}))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}

func Test_isDomainError(t *testing.T) {
	assert.True(t, isDomainError(lending.ErrOutOfStock))
	assert.True(t, isDomainError(lending.ErrBookNotFound))
	assert.True(t, isDomainError(lending.Conflictf("x")))
	assert.True(t, isDomainError(context.Canceled))
	assert.False(t, isDomainError(&pgconn.PgError{Code: "08006"}))
}

func Test_LockingSelect_RendersForUpdate(t *testing.T) {
	// arrange
	selectStmt := builder().
		From(defaultBooksTableName).
		Select(goqu.C(colID)).
		Where(goqu.C(colID).Eq("0198c1d0-0000-7000-8000-000000000001")).
		ForUpdate(exp.Wait)

	// act
	sqlQuery, err := buildSQL(selectStmt, actionLockBook)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `FROM "books"`)
	assert.Contains(t, sqlQuery, `'0198c1d0-0000-7000-8000-000000000001'`)
	assert.Contains(t, sqlQuery, "FOR UPDATE")
}

func Test_Engine_Now_IsUTC_AndMicrosecondPrecise(t *testing.T) {
	// arrange
	local := time.FixedZone("UTC+2", 2*60*60)
	engine := &Engine{clock: func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 123456789, local) }}

	// act
	now := engine.now()

	// assert
	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, 123456000, now.Nanosecond())
	assert.Equal(t, 8, now.Hour())
}

func Test_SchemaStatements_UseConfiguredTableNames(t *testing.T) {
	// arrange
	engine := &Engine{tables: TableNames{Books: "b1", Users: "u1", Loans: "l1", Events: "e1"}}

	// act
	statements := engine.schemaStatements()

	// assert
	require.NotEmpty(t, statements)
	joined := fmt.Sprint(statements)
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "b1"`)
	assert.Contains(t, joined, `REFERENCES "b1" (id) ON DELETE CASCADE`)
	assert.Contains(t, joined, `REFERENCES "u1" (id)`)
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "e1"`)
	assert.Contains(t, joined, "available_copies >= 0 AND available_copies <= total_copies")
}

func Test_SchemaStatements_QuoteTableNames_LikeTheQueries(t *testing.T) {
	// arrange
	engine := &Engine{tables: TableNames{Books: "Lib_Books", Users: "Lib_Users", Loans: "Lib_Loans", Events: "Lib_Events"}}

	selectStmt := builder().
		From(engine.tables.Books).
		Select(goqu.C(colID))

	// act
	statements := engine.schemaStatements()
	sqlQuery, err := buildSQL(selectStmt, actionSelectBooks)

	// assert
	require.NoError(t, err)
	joined := fmt.Sprint(statements)
	assert.Contains(t, sqlQuery, `FROM "Lib_Books"`)
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "Lib_Books" (`)
	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "Lib_Loans" (`)
	assert.Contains(t, joined, `REFERENCES "Lib_Users" (id)`)
	assert.Contains(t, joined, `CONSTRAINT "Lib_Books_available_copies_check"`)
	assert.Contains(t, joined, `CREATE INDEX IF NOT EXISTS "Lib_Loans_active_due_date_idx" ON "Lib_Loans"`)
	assert.NotContains(t, joined, "EXISTS Lib_")
}

func Test_WithTableNames_RejectsNonPlainIdentifiers(t *testing.T) {
	valid := TableNames{Books: "Lib_Books", Users: "users", Loans: "loans", Events: "loan_events"}

	testCases := []struct {
		name     string
		mutate   func(*TableNames)
		expected error
	}{
		{name: "empty", mutate: func(n *TableNames) { n.Loans = "" }, expected: lending.ErrEmptyTableName},
		{name: "schema qualified", mutate: func(n *TableNames) { n.Books = "library.books" }, expected: lending.ErrInvalidTableName},
		{name: "too long", mutate: func(n *TableNames) { n.Events = strings.Repeat("e", 64) }, expected: lending.ErrInvalidTableName},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			names := valid
			tc.mutate(&names)

			// act
			err := WithTableNames(names)(&Engine{})

			// assert
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	engine := &Engine{}
	require.NoError(t, WithTableNames(valid)(engine))
	assert.Equal(t, valid, engine.tables)
}
