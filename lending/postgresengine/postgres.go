package postgresengine

import (
	"database/sql"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

const (
	defaultBooksTableName  = "books"
	defaultUsersTableName  = "users"
	defaultLoansTableName  = "loans"
	defaultEventsTableName = "loan_events"
	dialectPostgres        = "postgres"

	colID              = "id"
	colTitle           = "title"
	colAuthor          = "author"
	colISBN            = "isbn"
	colYear            = "year"
	colPublisher       = "publisher"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"
	colCreatedAt       = "created_at"
	colUpdatedAt       = "updated_at"
	colUsername        = "username"
	colFullName        = "full_name"
	colEmail           = "email"
	colBookID          = "book_id"
	colUserID          = "user_id"
	colLoanDate        = "loan_date"
	colDueDate         = "due_date"
	colReturnDate      = "return_date"
	colLoanID          = "loan_id"
	colEventType       = "event_type"
	colOccurredAt      = "occurred_at"
	colPayload         = "payload"
	colSequenceNumber  = "sequence_number"
	aliasLoan          = "l"
	aliasBook          = "b"
	aliasUser          = "u"
	castJsonb          = "?::jsonb"

	sqlStateLockNotAvailable     = "55P03"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateSerializationFailure = "40001"
	sqlStateUniqueViolation      = "23505"
)

// TableNames holds the names of the four tables the engine works on.
type TableNames struct {
	Books  string
	Users  string
	Loans  string
	Events string
}

// DefaultTableNames returns the table names used when WithTableNames is not supplied.
func DefaultTableNames() TableNames {
	return TableNames{
		Books:  defaultBooksTableName,
		Users:  defaultUsersTableName,
		Loans:  defaultLoansTableName,
		Events: defaultEventsTableName,
	}
}

// Engine implements the book catalog store, user store, loan ledger and inventory allocator on PostgreSQL.
// It is safe for concurrent use; all shared state lives in the database.
type Engine struct {
	db               adapters.DBAdapter
	tables           TableNames
	clock            func() time.Time
	lockTimeout      time.Duration
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, lending.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options...)
}

// NewEngineFromPGXPoolWithReplica creates a new Engine using a primary and a replica pgx Pool.
// Reads run on the replica only when the context carries lending.EventualConsistency.
func NewEngineFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil || replica == nil {
		return nil, lending.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, lending.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options...)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, lending.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options...)
}

func newEngine(db adapters.DBAdapter, options ...Option) (*Engine, error) {
	engine := &Engine{
		db:     db,
		tables: DefaultTableNames(),
		clock:  time.Now,
	}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// now returns the engine clock in UTC, truncated to the microsecond precision PostgreSQL stores.
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}
