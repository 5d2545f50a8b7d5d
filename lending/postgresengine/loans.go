package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// GetActiveLoans returns every loan without a return date, oldest first.
func (e *Engine) GetActiveLoans(ctx context.Context) (lending.Loans, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{spanAttrQuery: "active_loans"})

	selectStmt := builder().
		From(e.tables.Loans).
		Select(e.loanColumns()...).
		Where(goqu.C(colReturnDate).IsNull()).
		Order(goqu.C(colLoanDate).Asc(), goqu.C(colID).Asc())

	loans, err := e.selectLoans(ctx, selectStmt)

	return loans, observer.finish(err)
}

// GetLoansByUser returns all loans of a user, active and returned, oldest first.
// An unknown user simply has no loans.
func (e *Engine) GetLoansByUser(ctx context.Context, userID uuid.UUID) (lending.Loans, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{
		spanAttrQuery:  "loans_by_user",
		spanAttrUserID: userID.String(),
	})

	selectStmt := builder().
		From(e.tables.Loans).
		Select(e.loanColumns()...).
		Where(goqu.C(colUserID).Eq(uuidLiteral(userID))).
		Order(goqu.C(colLoanDate).Asc(), goqu.C(colID).Asc())

	loans, err := e.selectLoans(ctx, selectStmt)

	return loans, observer.finish(err)
}

// GetLoanByID returns a single loan or lending.ErrLoanNotFound.
func (e *Engine) GetLoanByID(ctx context.Context, loanID uuid.UUID) (lending.Loan, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{
		spanAttrQuery:  "loan_by_id",
		spanAttrLoanID: loanID.String(),
	})

	loan, err := e.findLoan(ctx, e.db, loanID)

	return loan, observer.finish(err)
}

// OverdueLoans returns all active loans whose due date lies strictly before now,
// together with the book title and the borrower, ordered by due date.
func (e *Engine) OverdueLoans(ctx context.Context, now time.Time) ([]lending.OverdueLoan, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{spanAttrQuery: "overdue_loans"})

	l := goqu.T(aliasLoan)
	b := goqu.T(aliasBook)
	u := goqu.T(aliasUser)

	selectStmt := builder().
		From(goqu.T(e.tables.Loans).As(aliasLoan)).
		Join(goqu.T(e.tables.Books).As(aliasBook), goqu.On(b.Col(colID).Eq(l.Col(colBookID)))).
		Join(goqu.T(e.tables.Users).As(aliasUser), goqu.On(u.Col(colID).Eq(l.Col(colUserID)))).
		Select(
			l.Col(colID),
			l.Col(colBookID),
			l.Col(colUserID),
			l.Col(colLoanDate),
			l.Col(colDueDate),
			l.Col(colReturnDate),
			b.Col(colTitle),
			u.Col(colID),
			u.Col(colUsername),
			u.Col(colFullName),
			u.Col(colEmail),
			u.Col(colCreatedAt),
		).
		Where(
			l.Col(colReturnDate).IsNull(),
			l.Col(colDueDate).Lt(now.UTC()),
		).
		Order(l.Col(colDueDate).Asc(), l.Col(colID).Asc())

	rows, err := e.query(ctx, e.db, selectStmt, actionSelectOverdue)
	if err != nil {
		return nil, observer.finish(err)
	}

	overdue, err := collect(rows, scanOverdueLoan)
	if err != nil {
		return nil, observer.finish(err)
	}

	e.logOperation(ctx, actionSelectOverdue, logAttrCount, len(overdue))

	return overdue, observer.finish(nil)
}

func (e *Engine) selectLoans(ctx context.Context, selectStmt *goqu.SelectDataset) (lending.Loans, error) {
	rows, err := e.query(ctx, e.db, selectStmt, actionSelectLoans)
	if err != nil {
		return nil, err
	}

	return collect(rows, scanLoan)
}
