package helper

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

// GivenUniqueID generates a unique UUID for testing.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id
}

// FixtureBookDraft returns a valid book draft with a unique isbn.
func FixtureBookDraft(t testing.TB, totalCopies int) lending.BookDraft {
	return lending.BookDraft{
		Title:       "Learning Domain-Driven Design",
		Author:      "Vlad Khononov",
		ISBN:        UniqueISBN(t),
		Year:        2021,
		Publisher:   "O'Reilly Media, Inc.",
		TotalCopies: totalCopies,
	}
}

// UniqueISBN returns a 13 digit isbn derived from a fresh UUID.
func UniqueISBN(t testing.TB) string {
	id := GivenUniqueID(t)

	var digits uint64
	for _, b := range id[8:] {
		digits = digits<<8 | uint64(b)
	}

	return fmt.Sprintf("%013d", digits%10_000_000_000_000)
}

// GivenBook creates a book with totalCopies copies.
func GivenBook(t testing.TB, ctx context.Context, engine *postgresengine.Engine, totalCopies int) lending.Book { //nolint:revive
	book, err := engine.CreateBook(ctx, FixtureBookDraft(t, totalCopies))
	require.NoError(t, err, "error in arranging test data")

	return book
}

// GivenUser creates a user with a unique username.
func GivenUser(t testing.TB, ctx context.Context, engine *postgresengine.Engine, email string) lending.User { //nolint:revive
	id := GivenUniqueID(t)

	user, err := engine.CreateUser(ctx, lending.UserDraft{
		Username: "reader-" + id.String(),
		FullName: "Jane Reader",
		Email:    email,
	})
	require.NoError(t, err, "error in arranging test data")

	return user
}

// GivenLoan lends one copy of book to user for durationDays.
func GivenLoan(
	t testing.TB,
	ctx context.Context, //nolint:revive
	engine *postgresengine.Engine,
	book lending.Book,
	user lending.User,
	durationDays int,
) lending.Loan {

	loan, err := engine.Lend(ctx, book.ID, user.ID, durationDays)
	require.NoError(t, err, "error in arranging test data")

	return loan
}

// FakeClock is a settable clock for engine and scheduler tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}
