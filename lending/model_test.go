package lending_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_Loan_Status_FollowsReturnDate(t *testing.T) {
	// arrange
	loan := lending.Loan{LoanDate: now, DueDate: now.AddDate(0, 0, 14)}
	returnedAt := now.Add(time.Hour)

	// act & assert
	assert.True(t, loan.IsActive())
	assert.Equal(t, lending.LoanStatusIssued, loan.Status())

	loan.ReturnDate = &returnedAt
	assert.False(t, loan.IsActive())
	assert.Equal(t, lending.LoanStatusReturned, loan.Status())
}

func Test_Loan_IsOverdueAt_IsStrict(t *testing.T) {
	// arrange
	due := now.AddDate(0, 0, 1)
	loan := lending.Loan{LoanDate: now, DueDate: due}

	// act & assert
	assert.False(t, loan.IsOverdueAt(due))
	assert.True(t, loan.IsOverdueAt(due.Add(time.Nanosecond)))

	returnedAt := due
	loan.ReturnDate = &returnedAt
	assert.False(t, loan.IsOverdueAt(due.AddDate(0, 1, 0)))
}

func Test_Book_CopiesOnLoan(t *testing.T) {
	assert.Equal(t, 2, lending.Book{TotalCopies: 5, AvailableCopies: 3}.CopiesOnLoan())
}

func Test_User_DisplayName(t *testing.T) {
	assert.Equal(t, "Jane Reader", lending.User{Username: "jane", FullName: "Jane Reader"}.DisplayName())
	assert.Equal(t, "jane", lending.User{Username: "jane"}.DisplayName())
}

func Test_ErrorType(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{err: nil, want: "none"},
		{err: errors.Join(lending.ErrStoreUnavailable, lending.ErrConcurrencyConflict), want: "concurrency_conflict"},
		{err: errors.Join(lending.ErrStoreUnavailable, errors.New("down")), want: "store_unavailable"},
		{err: lending.ErrLoanNotFound, want: "not_found"},
		{err: fmt.Errorf("lend: %w", lending.ErrOutOfStock), want: "out_of_stock"},
		{err: lending.ErrAlreadyReturned, want: "already_returned"},
		{err: lending.Invalidf("x"), want: "invalid"},
		{err: lending.Conflictf("y"), want: "conflict"},
		{err: context.Canceled, want: "context_canceled"},
		{err: context.DeadlineExceeded, want: "context_deadline_exceeded"},
		{err: errors.New("boom"), want: "other"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, lending.ErrorType(tc.err))
	}
}

func Test_NotFoundErrors_WrapErrNotFound(t *testing.T) {
	assert.ErrorIs(t, lending.ErrBookNotFound, lending.ErrNotFound)
	assert.ErrorIs(t, lending.ErrUserNotFound, lending.ErrNotFound)
	assert.ErrorIs(t, lending.ErrLoanNotFound, lending.ErrNotFound)
	assert.NotErrorIs(t, lending.ErrBookNotFound, lending.ErrLoanNotFound)
}

func Test_BuildLoanIssued_And_BuildLoanReturned(t *testing.T) {
	// arrange
	loan := lending.Loan{
		ID:       uuid.New(),
		BookID:   uuid.New(),
		UserID:   uuid.New(),
		LoanDate: now,
		DueDate:  now.AddDate(0, 0, 14),
	}

	// act
	issued, issuedErr := lending.BuildLoanIssued(loan)
	_, notReturnedErr := lending.BuildLoanReturned(loan)

	returnedAt := now.AddDate(0, 0, 3)
	loan.ReturnDate = &returnedAt
	returned, returnedErr := lending.BuildLoanReturned(loan)

	// assert
	require.NoError(t, issuedErr)
	assert.Equal(t, lending.LoanIssuedEventType, issued.EventType)
	assert.Equal(t, loan.ID, issued.LoanID)
	assert.True(t, issued.OccurredAt.Equal(now))
	assert.NotEqual(t, uuid.Nil, issued.ID)

	var payload lending.LoanIssuedPayload
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(issued.PayloadJSON, &payload))
	assert.Equal(t, loan.BookID.String(), payload.BookID)
	assert.True(t, payload.DueDate.Equal(loan.DueDate))

	assert.ErrorIs(t, notReturnedErr, lending.ErrInvalid)

	require.NoError(t, returnedErr)
	assert.Equal(t, lending.LoanReturnedEventType, returned.EventType)
	assert.True(t, returned.OccurredAt.Equal(returnedAt))
}

func Test_BuildLedgerEvent_RejectsInvalidJSON(t *testing.T) {
	_, err := lending.BuildLedgerEvent(lending.LoanIssuedEventType, uuid.New(), now, []byte("{not json"))

	assert.ErrorIs(t, err, lending.ErrInvalidPayloadJSON)
}

func Test_ConsistencyLevel_Context(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, lending.StrongConsistency, lending.GetConsistencyLevel(ctx))
	assert.Equal(t, lending.EventualConsistency, lending.GetConsistencyLevel(lending.WithEventualConsistency(ctx)))
	assert.Equal(t, lending.StrongConsistency, lending.GetConsistencyLevel(
		lending.WithStrongConsistency(lending.WithEventualConsistency(ctx))))
	assert.Equal(t, "eventual", lending.EventualConsistency.String())
}
