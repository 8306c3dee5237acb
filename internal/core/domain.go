package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	// Date is a calendar date at UTC midnight. The time component is
	// always zero so that equality and round-trips are exact.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single dated income or expense record. Amounts are
	// stored non-negative; the sign is implied by Type.
	Transaction struct {
		ID       int64
		Date     Date
		Type     TransactionType
		Category string
		Amount   Money
		Note     string
		GoalID   int64 // 0 when not a goal contribution
	}

	// SavingsGoal is a named target amount. Progress is derived from
	// transactions tagged with the goal id, never stored.
	SavingsGoal struct {
		ID         int64
		Name       string
		Target     Money
		TargetDate Date // optional, zero when absent
	}

	// Budget is a per-category monthly spending limit.
	Budget struct {
		Category     string
		MonthlyLimit Money
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidType    = errors.New("invalid transaction type")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyCategory  = errors.New("empty category")
	ErrEmptyName      = errors.New("empty goal name")
	ErrInvalidTarget  = errors.New("invalid target amount")
	ErrNoteTooLong    = errors.New("note too long (max 200 characters)")
	ErrInvalidGroupBy = errors.New("invalid group-by dimension")
)

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the date in YYYY-MM-DD form, the storage encoding.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MonthKey returns the YYYY-MM grouping key.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// IsEmpty reports whether the date is unset (for optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

// Validate rejects negative amounts. Zero is allowed for transactions;
// goal targets require a positive amount and check that separately.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.Target.Cents <= 0 {
		return ErrInvalidTarget
	}
	if !g.TargetDate.IsEmpty() {
		if err := g.TargetDate.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.MonthlyLimit.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
