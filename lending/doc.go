// Package lending provides the core types of the library loan/inventory consistency engine.
//
// This package defines the data model shared by all store implementations, the error
// taxonomy callers branch on, catalog validation rules, the loan ledger event DTO
// and the dependency-free observability interfaces.
//
// Key types:
//   - Book: title metadata plus the TotalCopies/AvailableCopies pair
//   - Loan: one copy of one Book lent to one User, ISSUED until its ReturnDate is set
//   - User: the borrower, as far as the engine needs to know it
//   - LedgerEvent: an append-only record of a loan being issued or returned
//
// The central invariant every engine must uphold:
//
//	book.AvailableCopies == book.TotalCopies - count(active loans of book)
//
// Common usage pattern:
//
//	loan, err := engine.Lend(ctx, bookID, userID, 14)
//	switch {
//	case errors.Is(err, lending.ErrOutOfStock):
//		// tell the reader to come back later
//	case errors.Is(err, lending.ErrNotFound):
//		// unknown book or user
//	case err != nil:
//		// store unavailable
//	}
//
//	returned, err := engine.ReturnBook(ctx, loan.ID)
package lending
