package postgresengine_test

import (
	"context"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	. "github.com/AntonStoeckl/library-lending-go/lending/postgresengine"                         //nolint:revive
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper"                 //nolint:revive
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/helper/postgreswrapper" //nolint:revive
)

func Test_GetLoansByUser_ReturnsActiveAndReturnedLoans(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := NewFakeClock(fixedStart)
	wrapper := CreateWrapperWithTestConfig(t, WithClock(clock.Now))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 3)
	user := GivenUser(t, ctx, engine, "")
	otherUser := GivenUser(t, ctx, engine, "")
	first := GivenLoan(t, ctx, engine, book, user, 14)
	clock.Advance(time.Hour)
	second := GivenLoan(t, ctx, engine, book, user, 14)
	GivenLoan(t, ctx, engine, book, otherUser, 14)
	_, err := engine.ReturnBook(ctx, first.ID)
	require.NoError(t, err)

	// act
	loans, err := engine.GetLoansByUser(ctx, user.ID)
	unknown, unknownErr := engine.GetLoansByUser(ctx, GivenUniqueID(t))

	// assert
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, first.ID, loans[0].ID)
	assert.False(t, loans[0].IsActive())
	assert.Equal(t, second.ID, loans[1].ID)
	assert.True(t, loans[1].IsActive())

	require.NoError(t, unknownErr)
	assert.Empty(t, unknown)
}

func Test_OverdueLoans_ReturnsOnlyActiveLoansDueStrictlyBeforeNow(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := NewFakeClock(fixedStart)
	wrapper := CreateWrapperWithTestConfig(t, WithClock(clock.Now))
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 5)
	user := GivenUser(t, ctx, engine, "jane@example.org")
	overdue := GivenLoan(t, ctx, engine, book, user, 1)
	dueExactlyAtSweep := GivenLoan(t, ctx, engine, book, user, 2)
	GivenLoan(t, ctx, engine, book, user, 30)
	returned := GivenLoan(t, ctx, engine, book, user, 1)
	_, err := engine.ReturnBook(ctx, returned.ID)
	require.NoError(t, err)

	sweepAt := dueExactlyAtSweep.DueDate

	// act
	loans, err := engine.OverdueLoans(ctx, sweepAt)

	// assert
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, overdue.ID, loans[0].Loan.ID)
	assert.Equal(t, book.Title, loans[0].BookTitle)
	assert.Equal(t, user.ID, loans[0].Borrower.ID)
	assert.Equal(t, "jane@example.org", loans[0].Borrower.Email)
	assert.Equal(t, "Jane Reader", loans[0].Borrower.FullName)
	assert.True(t, loans[0].Loan.IsOverdueAt(sweepAt))
}

func Test_LoanHistory_RecordsIssuedAndReturnedEvents(t *testing.T) {
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
	loan := GivenLoan(t, ctx, engine, book, user, 14)
	clock.Advance(48 * time.Hour)
	_, err := engine.ReturnBook(ctx, loan.ID)
	require.NoError(t, err)

	// act
	history, err := engine.LoanHistory(ctx, loan.ID)

	// assert
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, lending.LoanIssuedEventType, history[0].EventType)
	assert.Equal(t, lending.LoanReturnedEventType, history[1].EventType)
	assert.True(t, history[0].OccurredAt.Equal(fixedStart))
	assert.True(t, history[1].OccurredAt.Equal(fixedStart.Add(48*time.Hour)))

	var issued lending.LoanIssuedPayload
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(history[0].PayloadJSON, &issued))
	assert.Equal(t, loan.ID.String(), issued.LoanID)
	assert.Equal(t, book.ID.String(), issued.BookID)
	assert.Equal(t, user.ID.String(), issued.UserID)
	assert.True(t, issued.DueDate.Equal(loan.DueDate))

	var returned lending.LoanReturnedPayload
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(history[1].PayloadJSON, &returned))
	assert.True(t, returned.ReturnDate.Equal(fixedStart.Add(48*time.Hour)))
}

func Test_FailedLend_LeavesNoLedgerEvent(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	// arrange
	book := GivenBook(t, ctx, engine, 1)
	user := GivenUser(t, ctx, engine, "")
	GivenLoan(t, ctx, engine, book, user, 14)

	// act
	_, err := engine.Lend(ctx, book.ID, user.ID, 14)

	// assert
	assert.ErrorIs(t, err, lending.ErrOutOfStock)
	rows := Exec(t, wrapper, "UPDATE loan_events SET event_type = event_type")
	assert.Equal(t, int64(1), rows)
}

func Test_Reads_WithEventualConsistency_WorkWithoutReplica(t *testing.T) {
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

	// act
	active, err := engine.GetActiveLoans(lending.WithEventualConsistency(ctx))

	// assert
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, loan.ID, active[0].ID)
}
