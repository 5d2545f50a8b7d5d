package lending

import (
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Ledger event types.
const (
	LoanIssuedEventType   = "LoanIssued"
	LoanReturnedEventType = "LoanReturned"
)

// ErrInvalidPayloadJSON is returned by BuildLedgerEvent for a payload that is not valid JSON.
var ErrInvalidPayloadJSON = errors.New("payload json is not valid")

// LedgerEvents is an alias type for a slice of LedgerEvent.
type LedgerEvents = []LedgerEvent

// LedgerEvent is a DTO for one entry of the append-only loan ledger.
//
// It is built on scalars so the ledger stays agnostic of how payloads evolve.
// While its properties are exported, it should only be constructed with the supplied factory methods:
//   - BuildLedgerEvent
//   - BuildLoanIssued
//   - BuildLoanReturned
type LedgerEvent struct {
	ID          uuid.UUID
	LoanID      uuid.UUID
	EventType   string
	OccurredAt  time.Time
	PayloadJSON []byte
}

// LoanIssuedPayload is the payload of a LoanIssued ledger event.
type LoanIssuedPayload struct {
	LoanID   string    `json:"loanId"`
	BookID   string    `json:"bookId"`
	UserID   string    `json:"userId"`
	LoanDate time.Time `json:"loanDate"`
	DueDate  time.Time `json:"dueDate"`
}

// LoanReturnedPayload is the payload of a LoanReturned ledger event.
type LoanReturnedPayload struct {
	LoanID     string    `json:"loanId"`
	BookID     string    `json:"bookId"`
	UserID     string    `json:"userId"`
	ReturnDate time.Time `json:"returnDate"`
}

// BuildLedgerEvent is a factory method for LedgerEvent.
// Returns ErrInvalidPayloadJSON if payloadJSON is not valid JSON.
func BuildLedgerEvent(eventType string, loanID uuid.UUID, occurredAt time.Time, payloadJSON []byte) (LedgerEvent, error) {
	if !jsoniter.ConfigFastest.Valid(payloadJSON) {
		return LedgerEvent{}, ErrInvalidPayloadJSON
	}

	id, err := uuid.NewV7()
	if err != nil {
		return LedgerEvent{}, err
	}

	return LedgerEvent{
		ID:          id,
		LoanID:      loanID,
		EventType:   eventType,
		OccurredAt:  occurredAt,
		PayloadJSON: payloadJSON,
	}, nil
}

// BuildLoanIssued builds the ledger entry for a freshly created loan.
func BuildLoanIssued(loan Loan) (LedgerEvent, error) {
	payloadJSON, err := jsoniter.ConfigFastest.Marshal(LoanIssuedPayload{
		LoanID:   loan.ID.String(),
		BookID:   loan.BookID.String(),
		UserID:   loan.UserID.String(),
		LoanDate: loan.LoanDate,
		DueDate:  loan.DueDate,
	})
	if err != nil {
		return LedgerEvent{}, err
	}

	return BuildLedgerEvent(LoanIssuedEventType, loan.ID, loan.LoanDate, payloadJSON)
}

// BuildLoanReturned builds the ledger entry for a loan that has just been closed.
func BuildLoanReturned(loan Loan) (LedgerEvent, error) {
	if loan.ReturnDate == nil {
		return LedgerEvent{}, Invalidf("loan %s has no return date", loan.ID)
	}

	payloadJSON, err := jsoniter.ConfigFastest.Marshal(LoanReturnedPayload{
		LoanID:     loan.ID.String(),
		BookID:     loan.BookID.String(),
		UserID:     loan.UserID.String(),
		ReturnDate: *loan.ReturnDate,
	})
	if err != nil {
		return LedgerEvent{}, err
	}

	return BuildLedgerEvent(LoanReturnedEventType, loan.ID, *loan.ReturnDate, payloadJSON)
}
