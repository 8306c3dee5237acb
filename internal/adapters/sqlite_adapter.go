package adapters

import (
	"context"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/services"
	"budget/internal/storage"
)

// SQLiteAdapter combines the repository and the ledger service into the
// ledger.Store surface used by the HTTP handlers. Writes go through the
// service so sync messages get published, reads hit storage directly.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.LedgerService
}

var _ ledger.Store = (*SQLiteAdapter)(nil)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.LedgerService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

func (a *SQLiteAdapter) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	return a.service.CreateTransaction(ctx, t)
}

func (a *SQLiteAdapter) ListTransactions(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	return a.storage.ListTransactions(ctx, f)
}

func (a *SQLiteAdapter) DeleteTransaction(ctx context.Context, id int64) error {
	return a.service.DeleteTransaction(ctx, id)
}

func (a *SQLiteAdapter) Aggregate(ctx context.Context, f core.Filter, groupBy core.GroupBy) ([]core.GroupTotal, error) {
	return a.storage.Aggregate(ctx, f, groupBy)
}

func (a *SQLiteAdapter) MonthSummary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	return a.storage.MonthSummary(ctx, year, month)
}

func (a *SQLiteAdapter) AddGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	return a.storage.AddGoal(ctx, g)
}

func (a *SQLiteAdapter) ListGoals(ctx context.Context) ([]core.SavingsGoal, error) {
	return a.storage.ListGoals(ctx)
}

func (a *SQLiteAdapter) GoalProgress(ctx context.Context, id int64) (core.GoalProgress, error) {
	return a.storage.GoalProgress(ctx, id)
}

func (a *SQLiteAdapter) DeleteGoal(ctx context.Context, id int64) error {
	return a.storage.DeleteGoal(ctx, id)
}

func (a *SQLiteAdapter) SetBudget(ctx context.Context, b core.Budget) error {
	return a.storage.SetBudget(ctx, b)
}

func (a *SQLiteAdapter) BudgetStatus(ctx context.Context, year, month int) ([]core.BudgetStatus, error) {
	return a.storage.BudgetStatus(ctx, year, month)
}
