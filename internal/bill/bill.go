package bill

import (
	"fmt"
	"time"
)

// Bill statuses. New bills always start out pending; the other two are
// assigned by the admin review flow.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRefused  = "refused"
)

// Expense type labels known to the UI. The set is open-ended: unknown
// labels are stored as-is.
var KnownTypes = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}

// Bill represents one expense claim
type Bill struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Date         string    `json:"date"` // ISO-8601 (YYYY-MM-DD), lexically comparable
	Amount       int       `json:"amount"` // Amount in cents
	VAT          int       `json:"vat"`    // VAT in cents
	PCT          int       `json:"pct"`    // VAT percentage
	Status       string    `json:"status"`
	FileURL      string    `json:"fileUrl"`
	FileName     string    `json:"fileName"`
	Commentary   string    `json:"commentary,omitempty"`
	CommentAdmin string    `json:"commentAdmin,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidStatus reports whether s is one of the three bill statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRefused:
		return true
	}
	return false
}

// Validate checks the persistence invariant: a parseable date, a known
// status and a non-negative amount.
func (b *Bill) Validate() error {
	if b.Email == "" {
		return fmt.Errorf("bill email is required")
	}
	if b.Date == "" {
		return fmt.Errorf("bill date is required")
	}
	if _, err := time.Parse("2006-01-02", b.Date); err != nil {
		return fmt.Errorf("parsing bill date %q: %w", b.Date, err)
	}
	if !ValidStatus(b.Status) {
		return fmt.Errorf("invalid bill status: %q", b.Status)
	}
	if b.Amount < 0 {
		return fmt.Errorf("bill amount must be non-negative, got %d", b.Amount)
	}
	return nil
}
