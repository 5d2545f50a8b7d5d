// Package postgresengine provides a PostgreSQL implementation of the lending engine.
//
// It hosts the book catalog store, the user store, the loan ledger and the inventory
// allocator, the only component allowed to mutate a book's available copies.
// Every Lend and ReturnBook runs inside one transaction that takes a row lock on the
// book (SELECT ... FOR UPDATE) before reading its counter, so concurrent requests for
// the same book are linearized while requests for different books never block each other.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX), optional pgx replica for eventual reads
//   - All-or-nothing lend/return: counter update, loan row and ledger event commit together
//   - Lock timeouts, deadlocks and serialization failures surface as lending.ErrConcurrencyConflict
//   - Optional logging, contextual logging, metrics and tracing
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := postgresengine.NewEngineFromPGXPool(
//		db,
//		postgresengine.WithLogger(slog.Default()),
//		postgresengine.WithLockTimeout(5*time.Second),
//	)
//
//	loan, err := engine.Lend(ctx, bookID, userID, 14)
//	returned, err := engine.ReturnBook(ctx, loan.ID)
package postgresengine
