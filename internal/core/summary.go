package core

import "strings"

const (
	GroupByCategory GroupBy = "category"
	GroupByMonth    GroupBy = "month"
	GroupByType     GroupBy = "type"
)

type (
	// GroupBy selects the aggregation key for Aggregate queries.
	GroupBy string

	// Filter narrows transaction queries. Zero values mean "no constraint".
	Filter struct {
		From     Date
		To       Date
		Category string
		Type     TransactionType
		GoalID   int64
		Query    string // substring match on the note, case-insensitive
	}

	// GroupTotal is one row of an aggregate result. Rows keep the
	// insertion order of the first transaction in each group.
	GroupTotal struct {
		Key   string
		Total Money
	}

	// MonthSummary is the income/expense/balance overview for one month.
	MonthSummary struct {
		Year    int
		Month   int // 1-12
		Income  Money
		Expense Money
		Balance Money // Income - Expense, may be negative
	}

	// GoalProgress is the derived state of a savings goal.
	GoalProgress struct {
		Goal     SavingsGoal
		Current  Money
		Fraction float64 // clamped to [0, 1]
	}

	// BudgetStatus compares a category budget against actual spending.
	BudgetStatus struct {
		Category string
		Limit    Money
		Spent    Money
		Percent  float64
		State    BudgetState
	}

	BudgetState string
)

const (
	BudgetGood    BudgetState = "good"
	BudgetWarning BudgetState = "warning"
	BudgetOver    BudgetState = "over"
)

func (g GroupBy) Validate() error {
	switch g {
	case GroupByCategory, GroupByMonth, GroupByType:
		return nil
	default:
		return ErrInvalidGroupBy
	}
}

// Key returns the grouping key of a transaction for the given dimension.
func (g GroupBy) Key(t Transaction) string {
	switch g {
	case GroupByMonth:
		return t.Date.MonthKey()
	case GroupByType:
		return string(t.Type)
	default:
		return t.Category
	}
}

// Matches reports whether a transaction satisfies the filter.
func (f Filter) Matches(t Transaction) bool {
	if !f.From.IsEmpty() && t.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsEmpty() && t.Date.After(f.To.Time) {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.GoalID != 0 && t.GoalID != f.GoalID {
		return false
	}
	if f.Query != "" && !containsFold(t.Note, f.Query) {
		return false
	}
	return true
}

// AggregateTransactions groups the given transactions and sums cents per
// group, preserving first-occurrence order. Amounts are non-negative by
// invariant, so sums within a bucket never cancel; callers that must not
// mix income and expense either group by type or filter by type first.
func AggregateTransactions(items []Transaction, groupBy GroupBy) []GroupTotal {
	index := make(map[string]int, len(items))
	out := make([]GroupTotal, 0, len(items))
	for _, t := range items {
		key := groupBy.Key(t)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, GroupTotal{Key: key})
			i = len(out) - 1
		}
		out[i].Total.Cents += t.Amount.Cents
	}
	return out
}

// ClampFraction derives the goal completion fraction, capped at 1.0.
func ClampFraction(current, target Money) float64 {
	if target.Cents <= 0 {
		return 0
	}
	f := float64(current.Cents) / float64(target.Cents)
	if f > 1.0 {
		return 1.0
	}
	return f
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// StateForPercent maps a budget usage percentage to its state.
// Over 100% is over budget, over 80% is a warning.
func StateForPercent(pct float64) BudgetState {
	switch {
	case pct > 100:
		return BudgetOver
	case pct > 80:
		return BudgetWarning
	default:
		return BudgetGood
	}
}
