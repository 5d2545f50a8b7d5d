package postgresengine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

// builder returns a goqu dialect wrapper; statements are rendered as literal SQL.
func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

type toSQLer interface {
	ToSQL() (string, []any, error)
}

func buildSQL(dataset toSQLer, action string) (string, error) {
	sqlQuery, _, err := dataset.ToSQL()
	if err != nil {
		return "", fmt.Errorf("failed to build %s query: %w", action, err)
	}

	return sqlQuery, nil
}

// query builds and runs a SELECT statement on q and logs it with its duration.
func (e *Engine) query(ctx context.Context, q adapters.Querier, dataset toSQLer, action string) (adapters.DBRows, error) {
	sqlQuery, err := buildSQL(dataset, action)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := q.Query(ctx, sqlQuery)
	e.logQuery(ctx, sqlQuery, action, time.Since(start))
	if err != nil {
		return nil, storeError(err)
	}

	return rows, nil
}

// exec builds and runs a data modifying statement on q and returns the number of affected rows.
func (e *Engine) exec(ctx context.Context, q adapters.Querier, dataset toSQLer, action string) (int64, error) {
	sqlQuery, err := buildSQL(dataset, action)
	if err != nil {
		return 0, err
	}

	return e.execRaw(ctx, q, sqlQuery, action)
}

func (e *Engine) execRaw(ctx context.Context, q adapters.Querier, sqlQuery string, action string) (int64, error) {
	start := time.Now()
	result, err := q.Exec(ctx, sqlQuery)
	e.logQuery(ctx, sqlQuery, action, time.Since(start))
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return rowsAffected, nil
}

// withinTransaction runs fn in one read committed transaction and commits when fn succeeds.
// The transaction is rolled back on every other path, so a failed lend or return leaves no trace.
func (e *Engine) withinTransaction(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return storeError(err)
	}

	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			e.logWarn(ctx, logMsgRollbackFailed, rollbackErr)
		}
	}()

	if e.lockTimeout > 0 {
		setLockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", e.lockTimeout.Milliseconds())
		if _, err = e.execRaw(ctx, tx, setLockTimeout, actionSetLockTimeout); err != nil {
			return storeError(err)
		}
	}

	if err = fn(tx); err != nil {
		if isDomainError(err) {
			return err
		}

		return storeError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return storeError(err)
	}

	return nil
}

// collect iterates rows, scanning each into a T, and closes them.
func collect[T any](rows adapters.DBRows, scan func(adapters.DBRows) (T, error)) ([]T, error) {
	defer func() { _ = rows.Close() }()

	result := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, storeError(err)
		}

		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}

	return result, nil
}

// first returns the single row of a result or notFound when there is none.
func first[T any](rows adapters.DBRows, scan func(adapters.DBRows) (T, error), notFound error) (T, error) {
	var zero T

	items, err := collect(rows, scan)
	if err != nil {
		return zero, err
	}

	if len(items) == 0 {
		return zero, notFound
	}

	return items[0], nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	utc := t.Time.UTC()

	return &utc
}

func scanBook(rows adapters.DBRows) (lending.Book, error) {
	var book lending.Book

	err := rows.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.Year,
		&book.Publisher,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	book.CreatedAt = book.CreatedAt.UTC()
	book.UpdatedAt = book.UpdatedAt.UTC()

	return book, err
}

func scanUser(rows adapters.DBRows) (lending.User, error) {
	var user lending.User

	err := rows.Scan(&user.ID, &user.Username, &user.FullName, &user.Email, &user.CreatedAt)
	user.CreatedAt = user.CreatedAt.UTC()

	return user, err
}

func scanLoan(rows adapters.DBRows) (lending.Loan, error) {
	var loan lending.Loan
	var returnDate sql.NullTime

	err := rows.Scan(&loan.ID, &loan.BookID, &loan.UserID, &loan.LoanDate, &loan.DueDate, &returnDate)
	loan.LoanDate = loan.LoanDate.UTC()
	loan.DueDate = loan.DueDate.UTC()
	loan.ReturnDate = nullableTime(returnDate)

	return loan, err
}

func scanOverdueLoan(rows adapters.DBRows) (lending.OverdueLoan, error) {
	var overdue lending.OverdueLoan
	var returnDate sql.NullTime

	err := rows.Scan(
		&overdue.Loan.ID,
		&overdue.Loan.BookID,
		&overdue.Loan.UserID,
		&overdue.Loan.LoanDate,
		&overdue.Loan.DueDate,
		&returnDate,
		&overdue.BookTitle,
		&overdue.Borrower.ID,
		&overdue.Borrower.Username,
		&overdue.Borrower.FullName,
		&overdue.Borrower.Email,
		&overdue.Borrower.CreatedAt,
	)
	overdue.Loan.LoanDate = overdue.Loan.LoanDate.UTC()
	overdue.Loan.DueDate = overdue.Loan.DueDate.UTC()
	overdue.Loan.ReturnDate = nullableTime(returnDate)
	overdue.Borrower.CreatedAt = overdue.Borrower.CreatedAt.UTC()

	return overdue, err
}

func scanLedgerEvent(rows adapters.DBRows) (lending.LedgerEvent, error) {
	var event lending.LedgerEvent

	err := rows.Scan(&event.ID, &event.LoanID, &event.EventType, &event.OccurredAt, &event.PayloadJSON)
	event.OccurredAt = event.OccurredAt.UTC()

	return event, err
}

func uuidLiteral(id uuid.UUID) string {
	return id.String()
}
