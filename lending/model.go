package lending

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus is the state of a Loan. ISSUED is the only initial state, RETURNED is terminal.
type LoanStatus string

const (
	LoanStatusIssued   LoanStatus = "ISSUED"
	LoanStatusReturned LoanStatus = "RETURNED"
)

// Book is a catalog title together with its copy counters.
// AvailableCopies is only ever mutated by the allocator or by a catalog update of TotalCopies.
type Book struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Year            int       `json:"year"`
	Publisher       string    `json:"publisher"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CopiesOnLoan returns how many copies are lent out according to the counters.
func (b Book) CopiesOnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

// BookDraft carries the admin-editable fields of a Book.
type BookDraft struct {
	Title       string `json:"title" yaml:"title"`
	Author      string `json:"author" yaml:"author"`
	ISBN        string `json:"isbn" yaml:"isbn"`
	Year        int    `json:"year" yaml:"year"`
	Publisher   string `json:"publisher" yaml:"publisher"`
	TotalCopies int    `json:"totalCopies" yaml:"totalCopies"`
}

// User is a registered borrower.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}

	return u.Username
}

// UserDraft carries the fields needed to register a User.
type UserDraft struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Loan is a single copy of a Book lent to a User.
// ReturnDate is nil while the loan is active and, once set, never changes.
type Loan struct {
	ID         uuid.UUID  `json:"id"`
	BookID     uuid.UUID  `json:"bookId"`
	UserID     uuid.UUID  `json:"userId"`
	LoanDate   time.Time  `json:"loanDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.ReturnDate == nil
}

// Status derives the state machine position from ReturnDate.
func (l Loan) Status() LoanStatus {
	if l.IsActive() {
		return LoanStatusIssued
	}

	return LoanStatusReturned
}

// IsOverdueAt reports whether the loan is active and its due date lies strictly before now.
func (l Loan) IsOverdueAt(now time.Time) bool {
	return l.IsActive() && l.DueDate.Before(now)
}

// OverdueLoan is an active loan past its due date, joined with what is needed to notify the borrower.
type OverdueLoan struct {
	Loan      Loan
	BookTitle string
	Borrower  User
}

// Loans is an alias type for a slice of Loan.
type Loans = []Loan
