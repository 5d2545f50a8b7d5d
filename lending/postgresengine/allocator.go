package postgresengine

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

// Lend issues a loan of one copy of bookID to userID for durationDays.
//
// The book row is locked for the whole transaction, so concurrent lends of the same book
// are applied one after the other and never overdraw its available copies.
// Returns lending.ErrInvalid, lending.ErrBookNotFound, lending.ErrUserNotFound,
// lending.ErrOutOfStock or an error joined with lending.ErrStoreUnavailable.
// On any error no state has changed.
func (e *Engine) Lend(ctx context.Context, bookID, userID uuid.UUID, durationDays int) (lending.Loan, error) {
	observer, ctx := e.observe(ctx, spanNameLend, operationLend, map[string]string{
		spanAttrBookID: bookID.String(),
		spanAttrUserID: userID.String(),
	})

	if err := lending.ValidateDuration(durationDays); err != nil {
		return lending.Loan{}, observer.finish(err)
	}

	if bookID == uuid.Nil || userID == uuid.Nil {
		return lending.Loan{}, observer.finish(lending.Invalidf("book id and user id must be set"))
	}

	loanID, err := uuid.NewV7()
	if err != nil {
		return lending.Loan{}, observer.finish(fmt.Errorf("failed to generate loan id: %w", err))
	}

	var loan lending.Loan

	err = e.withinTransaction(ctx, func(tx adapters.DBTx) error {
		if _, err := e.lockUser(ctx, tx, userID, exp.ForKeyShare); err != nil {
			return err
		}

		book, err := e.lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}

		if book.AvailableCopies <= 0 {
			e.logOperation(ctx, logMsgOutOfStock, logAttrBookID, bookID.String(), logAttrUserID, userID.String())
			return lending.ErrOutOfStock
		}

		now := e.now()

		if err = e.decrementAvailableCopies(ctx, tx, bookID, now); err != nil {
			return err
		}

		loan = lending.Loan{
			ID:       loanID,
			BookID:   bookID,
			UserID:   userID,
			LoanDate: now,
			DueDate:  now.AddDate(0, 0, durationDays),
		}

		if err = e.insertLoan(ctx, tx, loan); err != nil {
			return err
		}

		event, err := lending.BuildLoanIssued(loan)
		if err != nil {
			return err
		}

		return e.appendLedgerEvent(ctx, tx, event)
	})

	if err != nil {
		return lending.Loan{}, observer.finish(err)
	}

	e.logOperation(ctx, logMsgLoanIssued,
		logAttrLoanID, loan.ID.String(),
		logAttrBookID, bookID.String(),
		logAttrUserID, userID.String(),
		logAttrDueDate, loan.DueDate,
	)

	return loan, observer.finish(nil)
}

// ReturnBook closes an active loan and gives its copy back to the book.
//
// Returns lending.ErrLoanNotFound, lending.ErrAlreadyReturned or an error joined with
// lending.ErrStoreUnavailable. A loan is closed at most once even under concurrent returns.
func (e *Engine) ReturnBook(ctx context.Context, loanID uuid.UUID) (lending.Loan, error) {
	observer, ctx := e.observe(ctx, spanNameReturn, operationReturn, map[string]string{
		spanAttrLoanID: loanID.String(),
	})

	var loan lending.Loan

	err := e.withinTransaction(ctx, func(tx adapters.DBTx) error {
		// Look up the book first so that locks are always taken book before loan, like Lend and DeleteBook do.
		unlocked, err := e.findLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}

		if _, err = e.lockBook(ctx, tx, unlocked.BookID); err != nil {
			return err
		}

		loan, err = e.lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}

		if !loan.IsActive() {
			return lending.ErrAlreadyReturned
		}

		returnDate := e.now()
		if returnDate.Before(loan.LoanDate) {
			returnDate = loan.LoanDate
		}

		if err = e.closeLoan(ctx, tx, loanID, returnDate); err != nil {
			return err
		}

		loan.ReturnDate = &returnDate

		if err = e.incrementAvailableCopies(ctx, tx, loan.BookID, returnDate); err != nil {
			return err
		}

		event, err := lending.BuildLoanReturned(loan)
		if err != nil {
			return err
		}

		return e.appendLedgerEvent(ctx, tx, event)
	})

	if err != nil {
		return lending.Loan{}, observer.finish(err)
	}

	e.logOperation(ctx, logMsgLoanReturned,
		logAttrLoanID, loan.ID.String(),
		logAttrBookID, loan.BookID.String(),
		logAttrUserID, loan.UserID.String(),
	)

	return loan, observer.finish(nil)
}

func (e *Engine) bookColumns() []any {
	return []any{
		goqu.C(colID),
		goqu.C(colTitle),
		goqu.C(colAuthor),
		goqu.C(colISBN),
		goqu.C(colYear),
		goqu.C(colPublisher),
		goqu.C(colTotalCopies),
		goqu.C(colAvailableCopies),
		goqu.C(colCreatedAt),
		goqu.C(colUpdatedAt),
	}
}

func (e *Engine) loanColumns() []any {
	return []any{
		goqu.C(colID),
		goqu.C(colBookID),
		goqu.C(colUserID),
		goqu.C(colLoanDate),
		goqu.C(colDueDate),
		goqu.C(colReturnDate),
	}
}

// lockBook reads a book and holds its row lock until the transaction ends.
func (e *Engine) lockBook(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID) (lending.Book, error) {
	selectStmt := builder().
		From(e.tables.Books).
		Select(e.bookColumns()...).
		Where(goqu.C(colID).Eq(uuidLiteral(bookID))).
		ForUpdate(exp.Wait)

	rows, err := e.query(ctx, tx, selectStmt, actionLockBook)
	if err != nil {
		return lending.Book{}, err
	}

	return first(rows, scanBook, lending.ErrBookNotFound)
}

func (e *Engine) decrementAvailableCopies(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID, now time.Time) error {
	updateStmt := builder().
		Update(e.tables.Books).
		Set(goqu.Record{
			colAvailableCopies: goqu.L(colAvailableCopies + " - 1"),
			colUpdatedAt:       now,
		}).
		Where(
			goqu.C(colID).Eq(uuidLiteral(bookID)),
			goqu.C(colAvailableCopies).Gt(0),
		)

	rowsAffected, err := e.exec(ctx, tx, updateStmt, actionDecrement)
	if err != nil {
		return storeError(err)
	}

	if rowsAffected != 1 {
		return lending.ErrOutOfStock
	}

	return nil
}

// incrementAvailableCopies gives one copy back, never raising the counter above total copies.
func (e *Engine) incrementAvailableCopies(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID, now time.Time) error {
	updateStmt := builder().
		Update(e.tables.Books).
		Set(goqu.Record{
			colAvailableCopies: goqu.L("LEAST(" + colAvailableCopies + " + 1, " + colTotalCopies + ")"),
			colUpdatedAt:       now,
		}).
		Where(goqu.C(colID).Eq(uuidLiteral(bookID)))

	rowsAffected, err := e.exec(ctx, tx, updateStmt, actionIncrement)
	if err != nil {
		return storeError(err)
	}

	if rowsAffected != 1 {
		return lending.ErrBookNotFound
	}

	return nil
}

func (e *Engine) insertLoan(ctx context.Context, tx adapters.DBTx, loan lending.Loan) error {
	insertStmt := builder().
		Insert(e.tables.Loans).
		Rows(goqu.Record{
			colID:       uuidLiteral(loan.ID),
			colBookID:   uuidLiteral(loan.BookID),
			colUserID:   uuidLiteral(loan.UserID),
			colLoanDate: loan.LoanDate,
			colDueDate:  loan.DueDate,
		})

	if _, err := e.exec(ctx, tx, insertStmt, actionInsertLoan); err != nil {
		return storeError(err)
	}

	return nil
}

func (e *Engine) findLoan(ctx context.Context, q adapters.Querier, loanID uuid.UUID) (lending.Loan, error) {
	selectStmt := builder().
		From(e.tables.Loans).
		Select(e.loanColumns()...).
		Where(goqu.C(colID).Eq(uuidLiteral(loanID)))

	rows, err := e.query(ctx, q, selectStmt, actionSelectLoans)
	if err != nil {
		return lending.Loan{}, err
	}

	return first(rows, scanLoan, lending.ErrLoanNotFound)
}

func (e *Engine) lockLoan(ctx context.Context, tx adapters.DBTx, loanID uuid.UUID) (lending.Loan, error) {
	selectStmt := builder().
		From(e.tables.Loans).
		Select(e.loanColumns()...).
		Where(goqu.C(colID).Eq(uuidLiteral(loanID))).
		ForUpdate(exp.Wait)

	rows, err := e.query(ctx, tx, selectStmt, actionLockLoan)
	if err != nil {
		return lending.Loan{}, err
	}

	return first(rows, scanLoan, lending.ErrLoanNotFound)
}

// closeLoan sets the return date once; a second close affects no row and reports lending.ErrAlreadyReturned.
func (e *Engine) closeLoan(ctx context.Context, tx adapters.DBTx, loanID uuid.UUID, returnDate time.Time) error {
	updateStmt := builder().
		Update(e.tables.Loans).
		Set(goqu.Record{colReturnDate: returnDate}).
		Where(
			goqu.C(colID).Eq(uuidLiteral(loanID)),
			goqu.C(colReturnDate).IsNull(),
		)

	rowsAffected, err := e.exec(ctx, tx, updateStmt, actionCloseLoan)
	if err != nil {
		return storeError(err)
	}

	if rowsAffected != 1 {
		return lending.ErrAlreadyReturned
	}

	return nil
}
