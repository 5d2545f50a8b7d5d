package lending

import (
	"strings"
	"time"
)

const (
	minPublicationYear = 1000
	isbn10Length       = 10
	isbn13Length       = 13
)

// ValidateDuration rejects loan durations that are not a positive number of days.
func ValidateDuration(durationDays int) error {
	if durationDays <= 0 {
		return Invalidf("durationDays must be positive, got %d", durationDays)
	}

	return nil
}

// ValidateISBN accepts exactly 10 or 13 ASCII digits.
func ValidateISBN(isbn string) error {
	if len(isbn) != isbn10Length && len(isbn) != isbn13Length {
		return Invalidf("isbn must be 10 or 13 digits")
	}

	for _, r := range isbn {
		if r < '0' || r > '9' {
			return Invalidf("isbn must be 10 or 13 digits")
		}
	}

	return nil
}

// ValidateYear accepts 1000 <= year <= the year of now.
func ValidateYear(year int, now time.Time) error {
	if year < minPublicationYear || year > now.Year() {
		return Invalidf("year must be between %d and %d", minPublicationYear, now.Year())
	}

	return nil
}

// Validate checks all catalog rules for a BookDraft at the given point in time.
func (d BookDraft) Validate(now time.Time) error {
	if strings.TrimSpace(d.Title) == "" {
		return Invalidf("title must not be empty")
	}

	if strings.TrimSpace(d.Author) == "" {
		return Invalidf("author must not be empty")
	}

	if d.TotalCopies <= 0 {
		return Invalidf("totalCopies must be positive, got %d", d.TotalCopies)
	}

	if err := ValidateISBN(d.ISBN); err != nil {
		return err
	}

	return ValidateYear(d.Year, now)
}

// Validate checks a UserDraft.
func (d UserDraft) Validate() error {
	if strings.TrimSpace(d.Username) == "" {
		return Invalidf("username must not be empty")
	}

	if d.Email != "" && !strings.Contains(d.Email, "@") {
		return Invalidf("email %q is malformed", d.Email)
	}

	return nil
}
