package ledger

import (
	"context"

	"budget/internal/core"
)

// Ports for the ledger store. The HTTP layer depends only on these;
// concrete implementations live in storage (SQLite) and memory.
type (
	TransactionWriter interface {
		// AddTransaction validates and persists a transaction, returning
		// it with the assigned id.
		AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	TransactionLister interface {
		// ListTransactions returns matching transactions in insertion
		// order. An empty result is a nil or empty slice, not an error.
		ListTransactions(ctx context.Context, f core.Filter) ([]core.Transaction, error)
	}

	TransactionDeleter interface {
		// DeleteTransaction removes a transaction by id.
		// Returns ErrNotFound when the id is unknown.
		DeleteTransaction(ctx context.Context, id int64) error
	}

	// Aggregator provides grouped sums and the monthly overview.
	Aggregator interface {
		Aggregate(ctx context.Context, f core.Filter, groupBy core.GroupBy) ([]core.GroupTotal, error)
		MonthSummary(ctx context.Context, year, month int) (core.MonthSummary, error)
	}

	GoalStore interface {
		AddGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
		ListGoals(ctx context.Context) ([]core.SavingsGoal, error)
		// GoalProgress derives the current total and clamped fraction.
		// Returns ErrNotFound when the id is unknown.
		GoalProgress(ctx context.Context, id int64) (core.GoalProgress, error)
		DeleteGoal(ctx context.Context, id int64) error
	}

	BudgetStore interface {
		// SetBudget inserts or replaces the monthly limit for a category.
		SetBudget(ctx context.Context, b core.Budget) error
		// BudgetStatus reports limit vs. actual expense spending for the
		// given month, one row per configured budget.
		BudgetStatus(ctx context.Context, year, month int) ([]core.BudgetStatus, error)
	}
)

// Store is the full ledger surface used by the HTTP server.
type Store interface {
	TransactionWriter
	TransactionLister
	TransactionDeleter
	Aggregator
	GoalStore
	BudgetStore
}
