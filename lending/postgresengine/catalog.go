package postgresengine

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CreateBook adds a book to the catalog with all of its copies available.
// A duplicate isbn is reported as lending.ErrConflict.
func (e *Engine) CreateBook(ctx context.Context, draft lending.BookDraft) (lending.Book, error) {
	observer, ctx := e.observe(ctx, spanNameCatalog, operationCatalog, nil)

	now := e.now()

	if err := draft.Validate(now); err != nil {
		return lending.Book{}, observer.finish(err)
	}

	bookID, err := uuid.NewV7()
	if err != nil {
		return lending.Book{}, observer.finish(err)
	}

	book := lending.Book{
		ID:              bookID,
		Title:           strings.TrimSpace(draft.Title),
		Author:          strings.TrimSpace(draft.Author),
		ISBN:            draft.ISBN,
		Year:            draft.Year,
		Publisher:       strings.TrimSpace(draft.Publisher),
		TotalCopies:     draft.TotalCopies,
		AvailableCopies: draft.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	insertStmt := builder().
		Insert(e.tables.Books).
		Rows(goqu.Record{
			colID:              uuidLiteral(book.ID),
			colTitle:           book.Title,
			colAuthor:          book.Author,
			colISBN:            book.ISBN,
			colYear:            book.Year,
			colPublisher:       book.Publisher,
			colTotalCopies:     book.TotalCopies,
			colAvailableCopies: book.AvailableCopies,
			colCreatedAt:       book.CreatedAt,
			colUpdatedAt:       book.UpdatedAt,
		})

	if _, err = e.exec(ctx, e.db, insertStmt, actionInsertBook); err != nil {
		if isUniqueViolation(err) {
			return lending.Book{}, observer.finish(lending.Conflictf("a book with isbn %s already exists", book.ISBN))
		}

		return lending.Book{}, observer.finish(storeError(err))
	}

	e.logOperation(ctx, actionInsertBook, logAttrBookID, book.ID.String(), logAttrAvailable, book.AvailableCopies)

	return book, observer.finish(nil)
}

// UpdateBook replaces the catalog data of a book.
// Available copies shift by the change in total copies, so copies on loan stay on loan.
// Reducing total copies below the number on loan is rejected with lending.ErrConflict.
func (e *Engine) UpdateBook(ctx context.Context, bookID uuid.UUID, draft lending.BookDraft) (lending.Book, error) {
	observer, ctx := e.observe(ctx, spanNameCatalog, operationCatalog, map[string]string{spanAttrBookID: bookID.String()})

	now := e.now()

	if err := draft.Validate(now); err != nil {
		return lending.Book{}, observer.finish(err)
	}

	var book lending.Book

	err := e.withinTransaction(ctx, func(tx adapters.DBTx) error {
		current, err := e.lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}

		onLoan := current.CopiesOnLoan()
		if draft.TotalCopies < onLoan {
			return lending.Conflictf("book %s has %d copies on loan, total copies cannot drop to %d",
				bookID, onLoan, draft.TotalCopies)
		}

		book = current
		book.Title = strings.TrimSpace(draft.Title)
		book.Author = strings.TrimSpace(draft.Author)
		book.ISBN = draft.ISBN
		book.Year = draft.Year
		book.Publisher = strings.TrimSpace(draft.Publisher)
		book.TotalCopies = draft.TotalCopies
		book.AvailableCopies = draft.TotalCopies - onLoan
		book.UpdatedAt = now

		updateStmt := builder().
			Update(e.tables.Books).
			Set(goqu.Record{
				colTitle:           book.Title,
				colAuthor:          book.Author,
				colISBN:            book.ISBN,
				colYear:            book.Year,
				colPublisher:       book.Publisher,
				colTotalCopies:     book.TotalCopies,
				colAvailableCopies: book.AvailableCopies,
				colUpdatedAt:       book.UpdatedAt,
			}).
			Where(goqu.C(colID).Eq(uuidLiteral(bookID)))

		if _, err = e.exec(ctx, tx, updateStmt, actionUpdateBook); err != nil {
			if isUniqueViolation(err) {
				return lending.Conflictf("a book with isbn %s already exists", book.ISBN)
			}

			return storeError(err)
		}

		return nil
	})

	if err != nil {
		return lending.Book{}, observer.finish(err)
	}

	return book, observer.finish(nil)
}

// DeleteBook removes a book that has no active loans. Its returned loans are removed with it,
// their ledger events stay. A book with active loans is rejected with lending.ErrConflict.
func (e *Engine) DeleteBook(ctx context.Context, bookID uuid.UUID) error {
	observer, ctx := e.observe(ctx, spanNameCatalog, operationCatalog, map[string]string{spanAttrBookID: bookID.String()})

	err := e.withinTransaction(ctx, func(tx adapters.DBTx) error {
		if _, err := e.lockBook(ctx, tx, bookID); err != nil {
			return err
		}

		countStmt := builder().
			From(e.tables.Loans).
			Select(goqu.COUNT(goqu.Star())).
			Where(
				goqu.C(colBookID).Eq(uuidLiteral(bookID)),
				goqu.C(colReturnDate).IsNull(),
			)

		rows, err := e.query(ctx, tx, countStmt, actionCountActive)
		if err != nil {
			return err
		}

		activeLoans, err := first(rows, scanCount, lending.ErrBookNotFound)
		if err != nil {
			return err
		}

		if activeLoans > 0 {
			return lending.Conflictf("book %s still has %d active loans", bookID, activeLoans)
		}

		deleteStmt := builder().
			Delete(e.tables.Books).
			Where(goqu.C(colID).Eq(uuidLiteral(bookID)))

		if _, err = e.exec(ctx, tx, deleteStmt, actionDeleteBook); err != nil {
			return storeError(err)
		}

		return nil
	})

	if err == nil {
		e.logOperation(ctx, actionDeleteBook, logAttrBookID, bookID.String())
	}

	return observer.finish(err)
}

// GetBook returns a book or lending.ErrBookNotFound.
func (e *Engine) GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{
		spanAttrQuery:  "book_by_id",
		spanAttrBookID: bookID.String(),
	})

	book, err := e.selectOneBook(ctx, goqu.C(colID).Eq(uuidLiteral(bookID)))

	return book, observer.finish(err)
}

// FindBookByISBN returns the book with the given isbn or lending.ErrBookNotFound.
func (e *Engine) FindBookByISBN(ctx context.Context, isbn string) (lending.Book, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{spanAttrQuery: "book_by_isbn"})

	book, err := e.selectOneBook(ctx, goqu.C(colISBN).Eq(isbn))

	return book, observer.finish(err)
}

// SearchBooks returns books whose title contains term, case-insensitively.
func (e *Engine) SearchBooks(ctx context.Context, term string) ([]lending.Book, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{spanAttrQuery: "search_books"})

	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"

	books, err := e.selectBooks(ctx, goqu.C(colTitle).ILike(pattern))

	return books, observer.finish(err)
}

// ListBooks returns the whole catalog ordered by title.
func (e *Engine) ListBooks(ctx context.Context) ([]lending.Book, error) {
	observer, ctx := e.observe(ctx, spanNameQuery, operationQuery, map[string]string{spanAttrQuery: "list_books"})

	books, err := e.selectBooks(ctx)

	return books, observer.finish(err)
}

func (e *Engine) selectBooks(ctx context.Context, where ...goqu.Expression) ([]lending.Book, error) {
	selectStmt := builder().
		From(e.tables.Books).
		Select(e.bookColumns()...).
		Where(where...).
		Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc())

	rows, err := e.query(ctx, e.db, selectStmt, actionSelectBooks)
	if err != nil {
		return nil, err
	}

	return collect(rows, scanBook)
}

func (e *Engine) selectOneBook(ctx context.Context, where goqu.Expression) (lending.Book, error) {
	selectStmt := builder().
		From(e.tables.Books).
		Select(e.bookColumns()...).
		Where(where)

	rows, err := e.query(ctx, e.db, selectStmt, actionSelectBooks)
	if err != nil {
		return lending.Book{}, err
	}

	return first(rows, scanBook, lending.ErrBookNotFound)
}

func scanCount(rows adapters.DBRows) (int64, error) {
	var count int64
	err := rows.Scan(&count)

	return count, err
}
