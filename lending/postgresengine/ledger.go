package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

// appendLedgerEvent writes one event into the loan ledger inside the caller's transaction.
func (e *Engine) appendLedgerEvent(ctx context.Context, tx adapters.DBTx, event lending.LedgerEvent) error {
	insertStmt := builder().
		Insert(e.tables.Events).
		Cols(colID, colLoanID, colEventType, colOccurredAt, colPayload).
		Vals(goqu.Vals{
			uuidLiteral(event.ID),
			uuidLiteral(event.LoanID),
			event.EventType,
			event.OccurredAt,
			goqu.L(castJsonb, string(event.PayloadJSON)),
		})

	if _, err := e.exec(ctx, tx, insertStmt, actionAppendLedger); err != nil {
		return storeError(err)
	}

	return nil
}

// LoanHistory returns the ledger events of one loan in the order they were written.
// Events outlive the loan row, so the history of a loan deleted with its book is still readable.
func (e *Engine) LoanHistory(ctx context.Context, loanID uuid.UUID) (lending.LedgerEvents, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{
		spanAttrQuery:  "loan_history",
		spanAttrLoanID: loanID.String(),
	})

	selectStmt := builder().
		From(e.tables.Events).
		Select(
			goqu.C(colID),
			goqu.C(colLoanID),
			goqu.C(colEventType),
			goqu.C(colOccurredAt),
			goqu.C(colPayload),
		).
		Where(goqu.C(colLoanID).Eq(uuidLiteral(loanID))).
		Order(goqu.C(colSequenceNumber).Asc())

	rows, err := e.query(ctx, e.db, selectStmt, actionSelectHistory)
	if err != nil {
		return nil, observer.finish(err)
	}

	events, err := collect(rows, scanLedgerEvent)

	return events, observer.finish(err)
}
