package postgresengine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	. "github.com/AntonStoeckl/library-lending-go/lending/postgresengine"                         //nolint:revive
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper"                 //nolint:revive
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper/postgreswrapper" //nolint:revive
)

var fixedStart = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

func assertInventoryConsistent(t *testing.T, ctx context.Context, engine *Engine, book lending.Book) { //nolint:revive
	t.Helper()

	reloaded, err := engine.GetBook(ctx, book.ID)
	require.NoError(t, err)

	activeLoans, err := engine.GetActiveLoans(ctx)
	require.NoError(t, err)

	onLoan := 0
	for _, loan := range activeLoans {
		if loan.BookID == book.ID {
			onLoan++
		}
	}

	assert.GreaterOrEqual(t, reloaded.AvailableCopies, 0)
	assert.Equal(t, reloaded.TotalCopies, reloaded.AvailableCopies+onLoan, "available + on loan must equal total")
}

func Test_Lend_IssuesLoan_AndTakesOneCopy(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := NewFakeClock(fixedStart)
	wrapper := CreateWrapperWithTestConfig(t, WithClock(clock.Now))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 2)
	user := GivenUser(t, ctx, engine, "jane@example.org")

	// act
	loan, err := engine.Lend(ctx, book.ID, user.ID, 14)

	// assert
	require.NoError(t, err)
	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, user.ID, loan.UserID)
	assert.True(t, loan.LoanDate.Equal(fixedStart))
	assert.True(t, loan.DueDate.Equal(fixedStart.AddDate(0, 0, 14)))
	assert.Nil(t, loan.ReturnDate)
	assert.Equal(t, lending.LoanStatusIssued, loan.Status())

	stored, err := engine.GetLoanByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, stored.ID)
	assert.True(t, stored.LoanDate.Equal(loan.LoanDate))
	assert.True(t, stored.DueDate.Equal(loan.DueDate))
	assert.True(t, stored.IsActive())

	reloaded, err := engine.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableCopies)
	assertInventoryConsistent(t, ctx, engine, book)
}

func Test_Lend_ReturnBook_Scenario_WithTwoCopies(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := NewFakeClock(fixedStart)
	wrapper := CreateWrapperWithTestConfig(t, WithClock(clock.Now))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 2)
	userA := GivenUser(t, ctx, engine, "a@example.org")
	userB := GivenUser(t, ctx, engine, "b@example.org")
	userC := GivenUser(t, ctx, engine, "c@example.org")

	// act & assert
	loanA, err := engine.Lend(ctx, book.ID, userA.ID, 14)
	require.NoError(t, err)

	_, err = engine.Lend(ctx, book.ID, userB.ID, 14)
	require.NoError(t, err)

	_, err = engine.Lend(ctx, book.ID, userC.ID, 14)
	assert.ErrorIs(t, err, lending.ErrOutOfStock)
	assertInventoryConsistent(t, ctx, engine, book)

	clock.Advance(24 * time.Hour)
	returned, err := engine.ReturnBook(ctx, loanA.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, returned.ReturnDate.Equal(fixedStart.Add(24*time.Hour)))
	assert.Equal(t, lending.LoanStatusReturned, returned.Status())

	_, err = engine.Lend(ctx, book.ID, userC.ID, 14)
	require.NoError(t, err)

	reloaded, err := engine.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.AvailableCopies)

	activeLoans, err := engine.GetActiveLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, activeLoans, 2)
	assertInventoryConsistent(t, ctx, engine, book)
}

func Test_ReturnBook_Twice_FailsWithAlreadyReturned_AndChangesNothing(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	loan := GivenLoan(t, ctx, engine, book, user, 7)
	firstReturn, err := engine.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)

	// act
	_, err = engine.ReturnBook(ctx, loan.ID)

	// assert
	assert.ErrorIs(t, err, lending.ErrAlreadyReturned)

	stored, err := engine.GetLoanByID(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReturnDate)
	assert.True(t, stored.ReturnDate.Equal(*firstReturn.ReturnDate))

	reloaded, err := engine.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableCopies)
}

func Test_Lend_RejectsNonPositiveDuration_WithoutTouchingTheStore(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")

	for _, durationDays := range []int{0, -1} {
		// act
		_, err := engine.Lend(ctx, book.ID, user.ID, durationDays)

		// assert
		assert.ErrorIs(t, err, lending.ErrInvalid)
	}

	loans, err := engine.GetLoansByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, loans)

	reloaded, err := engine.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableCopies)
}

func Test_Lend_RejectsNilIDs(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// act
	_, err := engine.Lend(ctx, uuid.Nil, GivenUniqueID(t), 14)

	// assert
	assert.ErrorIs(t, err, lending.ErrInvalid)
}

func Test_Lend_And_Return_ReportNotFound(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")

	// act
	_, unknownBookErr := engine.Lend(ctx, GivenUniqueID(t), user.ID, 14)
	_, unknownUserErr := engine.Lend(ctx, book.ID, GivenUniqueID(t), 14)
	_, unknownLoanErr := engine.ReturnBook(ctx, GivenUniqueID(t))
	_, getUnknownLoanErr := engine.GetLoanByID(ctx, GivenUniqueID(t))

	// assert
	assert.ErrorIs(t, unknownBookErr, lending.ErrBookNotFound)
	assert.ErrorIs(t, unknownBookErr, lending.ErrNotFound)
	assert.ErrorIs(t, unknownUserErr, lending.ErrUserNotFound)
	assert.ErrorIs(t, unknownLoanErr, lending.ErrLoanNotFound)
	assert.ErrorIs(t, getUnknownLoanErr, lending.ErrLoanNotFound)

	reloaded, err := engine.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableCopies)
}

func Test_ReturnBook_NeverRaisesAvailableCopiesAboveTotal(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	loan := GivenLoan(t, ctx, engine, book, user, 14)
	Exec(t, wrapper, "UPDATE books SET available_copies = total_copies WHERE id = '"+book.ID.String()+"'")

	// act
	_, err := engine.ReturnBook(ctx, loan.ID)

	// assert
	require.NoError(t, err)

	reloaded, err := engine.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableCopies)
}

func Test_Lend_WhenBookRowIsLocked_FailsWithConcurrencyConflict(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t, WithLockTimeout(100*time.Millisecond))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	release := HoldRowLock(t, wrapper, "books", book.ID)

	// act
	_, err := engine.Lend(ctx, book.ID, user.ID, 14)
	release()

	// assert
	assert.ErrorIs(t, err, lending.ErrConcurrencyConflict)
	assert.ErrorIs(t, err, lending.ErrStoreUnavailable)

	reloaded, getErr := engine.GetBook(ctx, book.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 1, reloaded.AvailableCopies)

	_, err = engine.Lend(ctx, book.ID, user.ID, 14)
	assert.NoError(t, err, "lend must succeed once the lock is gone")
}

func Test_Lend_WithCanceledContext_ChangesNothing(t *testing.T) {
	// setup
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	canceledCtx, cancelNow := context.WithCancel(ctx)
	cancelNow()

	// act
	_, err := engine.Lend(canceledCtx, book.ID, user.ID, 14)

	// assert
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	reloaded, getErr := engine.GetBook(ctx, book.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 1, reloaded.AvailableCopies)
}

func Test_Lend_WhenTheLedgerWriteFails_RollsBackTheDecrementAndTheLoan(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")

	Exec(t, wrapper, fmt.Sprintf(`CREATE OR REPLACE FUNCTION refuse_ledger_write() RETURNS trigger AS $$
BEGIN
	IF NEW.payload->>'bookId' = '%s' THEN
		RAISE EXCEPTION 'ledger write refused';
	END IF;
	RETURN NEW;
END
$$ LANGUAGE plpgsql`, book.ID))
	Exec(t, wrapper, `CREATE TRIGGER refuse_ledger_write BEFORE INSERT ON loan_events
	FOR EACH ROW EXECUTE FUNCTION refuse_ledger_write()`)
	defer func() {
		Exec(t, wrapper, `DROP TRIGGER IF EXISTS refuse_ledger_write ON loan_events`)
		Exec(t, wrapper, `DROP FUNCTION IF EXISTS refuse_ledger_write()`)
	}()

	// act
	_, err := engine.Lend(ctx, book.ID, user.ID, 14)

	// assert
	assert.ErrorIs(t, err, lending.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, lending.ErrConcurrencyConflict)

	reloaded, getErr := engine.GetBook(ctx, book.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 1, reloaded.AvailableCopies)

	loans, getErr := engine.GetLoansByUser(ctx, user.ID)
	require.NoError(t, getErr)
	assert.Empty(t, loans)
	assertInventoryConsistent(t, ctx, engine, book)
}

func Test_ReturnBook_WithClockBehindTheLoanDate_ClampsTheReturnDate(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := NewFakeClock(fixedStart)
	wrapper := CreateWrapperWithTestConfig(t, WithClock(clock.Now))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	loan := GivenLoan(t, ctx, engine, book, user, 7)
	clock.Set(fixedStart.Add(-2 * time.Hour))

	// act
	returned, err := engine.ReturnBook(ctx, loan.ID)

	// assert
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, returned.ReturnDate.Equal(loan.LoanDate))
	assert.Equal(t, lending.LoanStatusReturned, returned.Status())

	stored, err := engine.GetLoanByID(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReturnDate)
	assert.False(t, stored.ReturnDate.Before(stored.LoanDate))
	assertInventoryConsistent(t, ctx, engine, book)
}
