package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Revenue Kind = "revenue"
	Expense Kind = "expense"
)

// DateLayout is the calendar-date format used on forms, in CSV files and in
// the assistant snapshot.
const DateLayout = "2006-01-02"

// ClockLayout is the wall-clock format of appointment start and end times.
const ClockLayout = "15:04"

type (
	Kind string

	Transaction struct {
		ID          string    `json:"id"`
		OwnerID     string    `json:"owner_id"`
		Kind        Kind      `json:"type"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Date        time.Time `json:"date"`
		Category    string    `json:"category"`
	}

	// Appointment times are local wall-clock strings. Ordering of start and
	// end is deliberately not checked.
	Appointment struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"owner_id"`
		Title     string    `json:"title"`
		Date      time.Time `json:"date"`
		StartTime string    `json:"start_time"`
		EndTime   string    `json:"end_time"`
	}
)

var (
	ErrMissingOwner      = errors.New("missing owner id")
	ErrInvalidKind       = errors.New("invalid transaction type")
	ErrEmptyDescription  = errors.New("empty description")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrMissingDate       = errors.New("missing date")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyTitle        = errors.New("empty title")
	ErrMissingTime       = errors.New("missing start or end time")
	ErrInvalidTime       = errors.New("invalid time, expected HH:MM")
)

// ParseKind accepts the canonical values and the labels used in exports.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "revenue", "receita", "income":
		return Revenue, nil
	case "expense", "despesa":
		return Expense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) Valid() bool {
	return k == Revenue || k == Expense
}

func (k Kind) String() string {
	return string(k)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrMissingOwner
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (a Appointment) Validate() error {
	if strings.TrimSpace(a.OwnerID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyTitle
	}
	if a.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(a.StartTime) == "" || strings.TrimSpace(a.EndTime) == "" {
		return ErrMissingTime
	}
	for _, v := range []string{a.StartTime, a.EndTime} {
		if _, err := time.Parse(ClockLayout, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTime, v)
		}
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDate
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
