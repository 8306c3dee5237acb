// Package memory provides an in-process ledger store. It backs the
// "memory" data backend and the HTTP handler tests; semantics mirror the
// SQLite repository.
package memory

import (
	"context"
	"strings"
	"sync"

	"budget/internal/core"
	"budget/internal/ledger"
)

type Store struct {
	mu      sync.Mutex
	nextID  int64
	items   []core.Transaction
	goals   []core.SavingsGoal
	budgets []core.Budget
}

func New() *Store {
	return &Store{nextID: 1}
}

// AddTransaction validates and appends the transaction, assigning an id.
func (s *Store) AddTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.GoalID != 0 && !s.goalExists(t.GoalID) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	t.ID = s.nextID
	s.nextID++
	s.items = append(s.items, t)
	return t, nil
}

func (s *Store) goalExists(id int64) bool {
	for _, g := range s.goals {
		if g.ID == id {
			return true
		}
	}
	return false
}

// ListTransactions returns matching records in insertion order.
func (s *Store) ListTransactions(_ context.Context, f core.Filter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) Aggregate(ctx context.Context, f core.Filter, groupBy core.GroupBy) ([]core.GroupTotal, error) {
	if err := groupBy.Validate(); err != nil {
		return nil, err
	}
	items, err := s.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.AggregateTransactions(items, groupBy), nil
}

func (s *Store) MonthSummary(_ context.Context, year, month int) (core.MonthSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := core.MonthSummary{Year: year, Month: month}
	for _, t := range s.items {
		if t.Date.Year() != year || int(t.Date.Month()) != month {
			continue
		}
		switch t.Type {
		case core.Income:
			sum.Income.Cents += t.Amount.Cents
		case core.Expense:
			sum.Expense.Cents += t.Amount.Cents
		}
	}
	sum.Balance.Cents = sum.Income.Cents - sum.Expense.Cents
	return sum, nil
}

func (s *Store) AddGoal(_ context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.nextID
	s.nextID++
	s.goals = append(s.goals, g)
	return g, nil
}

func (s *Store) ListGoals(_ context.Context) ([]core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SavingsGoal(nil), s.goals...), nil
}

func (s *Store) GoalProgress(_ context.Context, id int64) (core.GoalProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.goals {
		if g.ID != id {
			continue
		}
		var current core.Money
		for _, t := range s.items {
			if t.GoalID == id {
				current.Cents += t.Amount.Cents
			}
		}
		return core.GoalProgress{
			Goal:     g,
			Current:  current,
			Fraction: core.ClampFraction(current, g.Target),
		}, nil
	}
	return core.GoalProgress{}, ledger.ErrNotFound
}

func (s *Store) DeleteGoal(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.goals {
		if g.ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

// SetBudget inserts or replaces the limit for a category.
func (s *Store) SetBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.budgets {
		if strings.EqualFold(existing.Category, b.Category) {
			s.budgets[i] = b
			return nil
		}
	}
	s.budgets = append(s.budgets, b)
	return nil
}

func (s *Store) BudgetStatus(_ context.Context, year, month int) ([]core.BudgetStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetStatus, 0, len(s.budgets))
	for _, b := range s.budgets {
		var spent core.Money
		for _, t := range s.items {
			if t.Type != core.Expense || t.Category != b.Category {
				continue
			}
			if t.Date.Year() != year || int(t.Date.Month()) != month {
				continue
			}
			spent.Cents += t.Amount.Cents
		}
		pct := 0.0
		if b.MonthlyLimit.Cents > 0 {
			pct = float64(spent.Cents) / float64(b.MonthlyLimit.Cents) * 100
		}
		out = append(out, core.BudgetStatus{
			Category: b.Category,
			Limit:    b.MonthlyLimit,
			Spent:    spent,
			Percent:  pct,
			State:    core.StateForPercent(pct),
		})
	}
	return out, nil
}

var _ ledger.Store = (*Store)(nil)
