package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"budget/internal/core"
	"budget/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewSQLiteRepository(db)
}

func addTransaction(t *testing.T, repo *SQLiteRepository, tx core.Transaction) core.Transaction {
	t.Helper()
	saved, err := repo.AddTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	return saved
}

func TestAddTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := core.Transaction{
		Date:     core.NewDate(2026, 3, 14),
		Type:     core.Expense,
		Category: "food",
		Amount:   core.Money{Cents: 1234},
		Note:     "lunch with Anna",
	}

	saved := addTransaction(t, repo, in)
	if saved.ID == 0 {
		t.Error("AddTransaction() did not assign an id")
	}

	items, err := repo.ListTransactions(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ListTransactions() returned %d items, want 1", len(items))
	}

	got := items[0]
	if got.Date.String() != "2026-03-14" {
		t.Errorf("date = %q, want %q", got.Date.String(), "2026-03-14")
	}
	if got.Type != core.Expense {
		t.Errorf("type = %q, want %q", got.Type, core.Expense)
	}
	if got.Category != "food" {
		t.Errorf("category = %q, want %q", got.Category, "food")
	}
	if got.Amount.Cents != 1234 {
		t.Errorf("amount = %d cents, want 1234", got.Amount.Cents)
	}
	if got.Note != "lunch with Anna" {
		t.Errorf("note = %q, want %q", got.Note, "lunch with Anna")
	}
}

func TestAddTransactionValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		tx      core.Transaction
		wantErr error
	}{
		{
			name: "negative amount",
			tx: core.Transaction{
				Date:     core.NewDate(2026, 1, 1),
				Type:     core.Expense,
				Category: "food",
				Amount:   core.Money{Cents: -100},
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "missing date",
			tx: core.Transaction{
				Type:     core.Expense,
				Category: "food",
				Amount:   core.Money{Cents: 100},
			},
			wantErr: core.ErrInvalidDate,
		},
		{
			name: "unknown type",
			tx: core.Transaction{
				Date:     core.NewDate(2026, 1, 1),
				Type:     "transfer",
				Category: "food",
				Amount:   core.Money{Cents: 100},
			},
			wantErr: core.ErrInvalidType,
		},
		{
			name: "empty category",
			tx: core.Transaction{
				Date:   core.NewDate(2026, 1, 1),
				Type:   core.Expense,
				Amount: core.Money{Cents: 100},
			},
			wantErr: core.ErrEmptyCategory,
		},
		{
			name: "unknown goal reference",
			tx: core.Transaction{
				Date:     core.NewDate(2026, 1, 1),
				Type:     core.Income,
				Category: "savings",
				Amount:   core.Money{Cents: 100},
				GoalID:   999,
			},
			wantErr: ledger.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.AddTransaction(ctx, tt.tx)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddTransaction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Nothing should have been persisted.
	items, err := repo.ListTransactions(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("ListTransactions() returned %d items after rejected inserts, want 0", len(items))
	}
}

func TestListTransactionsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 10), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 1500}, Note: "groceries at the market",
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 2, 1), Type: core.Expense, Category: "rent",
		Amount: core.Money{Cents: 80000}, Note: "february rent",
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 2, 15), Type: core.Income, Category: "salary",
		Amount: core.Money{Cents: 250000}, Note: "payday",
	})

	tests := []struct {
		name   string
		filter core.Filter
		want   int
	}{
		{"no filter", core.Filter{}, 3},
		{"by category", core.Filter{Category: "rent"}, 1},
		{"by type", core.Filter{Type: core.Income}, 1},
		{"from date", core.Filter{From: core.NewDate(2026, 2, 1)}, 2},
		{"to date", core.Filter{To: core.NewDate(2026, 1, 31)}, 1},
		{"date range", core.Filter{From: core.NewDate(2026, 2, 1), To: core.NewDate(2026, 2, 10)}, 1},
		{"note search case-insensitive", core.Filter{Query: "MARKET"}, 1},
		{"note search no match", core.Filter{Query: "taxi"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := repo.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions() error = %v", err)
			}
			if len(items) != tt.want {
				t.Errorf("ListTransactions() returned %d items, want %d", len(items), tt.want)
			}
		})
	}
}

func TestListTransactionsInsertionOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Later calendar date inserted first. Listing follows insertion
	// order, not date order.
	first := addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 6, 30), Type: core.Expense, Category: "travel",
		Amount: core.Money{Cents: 5000},
	})
	second := addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 1), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 900},
	})

	items, err := repo.ListTransactions(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListTransactions() returned %d items, want 2", len(items))
	}
	if items[0].ID != first.ID || items[1].ID != second.ID {
		t.Errorf("order = [%d, %d], want [%d, %d]", items[0].ID, items[1].ID, first.ID, second.ID)
	}
}

func TestAggregateByCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 3, 1), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 1000},
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 3, 2), Type: core.Expense, Category: "rent",
		Amount: core.Money{Cents: 2000},
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 3, 3), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 500},
	})

	totals, err := repo.Aggregate(ctx, core.Filter{}, core.GroupByCategory)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	want := []core.GroupTotal{
		{Key: "food", Total: core.Money{Cents: 1500}},
		{Key: "rent", Total: core.Money{Cents: 2000}},
	}
	if len(totals) != len(want) {
		t.Fatalf("Aggregate() returned %d groups, want %d", len(totals), len(want))
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("group[%d] = %+v, want %+v", i, totals[i], want[i])
		}
	}
}

func TestAggregateByType(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 3, 1), Type: core.Income, Category: "salary",
		Amount: core.Money{Cents: 10000},
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 3, 2), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 4000},
	})

	totals, err := repo.Aggregate(ctx, core.Filter{}, core.GroupByType)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("Aggregate() returned %d groups, want 2", len(totals))
	}
	if totals[0].Key != "income" || totals[0].Total.Cents != 10000 {
		t.Errorf("income group = %+v, want income/10000", totals[0])
	}
	if totals[1].Key != "expense" || totals[1].Total.Cents != 4000 {
		t.Errorf("expense group = %+v, want expense/4000", totals[1])
	}
}

func TestAggregateByMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 15), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 100},
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 2, 1), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 200},
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 31), Type: core.Expense, Category: "rent",
		Amount: core.Money{Cents: 300},
	})

	totals, err := repo.Aggregate(ctx, core.Filter{}, core.GroupByMonth)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	want := []core.GroupTotal{
		{Key: "2026-01", Total: core.Money{Cents: 400}},
		{Key: "2026-02", Total: core.Money{Cents: 200}},
	}
	if len(totals) != len(want) {
		t.Fatalf("Aggregate() returned %d groups, want %d", len(totals), len(want))
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("group[%d] = %+v, want %+v", i, totals[i], want[i])
		}
	}
}

func TestAggregateInvalidGroupBy(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Aggregate(context.Background(), core.Filter{}, "weekday")
	if !errors.Is(err, core.ErrInvalidGroupBy) {
		t.Errorf("Aggregate() error = %v, want %v", err, core.ErrInvalidGroupBy)
	}
}

func TestMonthSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 4, 1), Type: core.Income, Category: "salary",
		Amount: core.Money{Cents: 300000},
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 4, 12), Type: core.Expense, Category: "rent",
		Amount: core.Money{Cents: 90000},
	})
	// Different month, must not count.
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 5, 1), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 5000},
	})

	summary, err := repo.MonthSummary(ctx, 2026, 4)
	if err != nil {
		t.Fatalf("MonthSummary() error = %v", err)
	}
	if summary.Income.Cents != 300000 {
		t.Errorf("income = %d, want 300000", summary.Income.Cents)
	}
	if summary.Expense.Cents != 90000 {
		t.Errorf("expense = %d, want 90000", summary.Expense.Cents)
	}
	if summary.Balance.Cents != 210000 {
		t.Errorf("balance = %d, want 210000", summary.Balance.Cents)
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved := addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 3, 1), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 100},
	})

	if err := repo.DeleteTransaction(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}

	// Deleting the same id again reports not found.
	err := repo.DeleteTransaction(ctx, saved.ID)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("second DeleteTransaction() error = %v, want %v", err, ledger.ErrNotFound)
	}

	items, err := repo.ListTransactions(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("ListTransactions() returned %d items after delete, want 0", len(items))
	}
}

func TestGoalProgress(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	goal, err := repo.AddGoal(ctx, core.SavingsGoal{
		Name:   "vacation",
		Target: core.Money{Cents: 100000},
	})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}

	progress, err := repo.GoalProgress(ctx, goal.ID)
	if err != nil {
		t.Fatalf("GoalProgress() error = %v", err)
	}
	if progress.Current.Cents != 0 || progress.Fraction != 0 {
		t.Errorf("fresh goal progress = %d cents / %v, want 0 / 0", progress.Current.Cents, progress.Fraction)
	}

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 1), Type: core.Income, Category: "savings",
		Amount: core.Money{Cents: 40000}, GoalID: goal.ID,
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 2, 1), Type: core.Income, Category: "savings",
		Amount: core.Money{Cents: 20000}, GoalID: goal.ID,
	})

	progress, err = repo.GoalProgress(ctx, goal.ID)
	if err != nil {
		t.Fatalf("GoalProgress() error = %v", err)
	}
	if progress.Current.Cents != 60000 {
		t.Errorf("current = %d, want 60000", progress.Current.Cents)
	}
	if progress.Fraction != 0.6 {
		t.Errorf("fraction = %v, want 0.6", progress.Fraction)
	}
}

func TestGoalProgressClamped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	goal, err := repo.AddGoal(ctx, core.SavingsGoal{
		Name:   "emergency fund",
		Target: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 1), Type: core.Income, Category: "savings",
		Amount: core.Money{Cents: 75000}, GoalID: goal.ID,
	})

	progress, err := repo.GoalProgress(ctx, goal.ID)
	if err != nil {
		t.Fatalf("GoalProgress() error = %v", err)
	}
	if progress.Fraction != 1.0 {
		t.Errorf("fraction = %v, want 1.0 (clamped)", progress.Fraction)
	}
	if progress.Current.Cents != 75000 {
		t.Errorf("current = %d, want 75000 (raw total, not clamped)", progress.Current.Cents)
	}
}

func TestGoalValidationAndNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.AddGoal(ctx, core.SavingsGoal{Name: "", Target: core.Money{Cents: 100}}); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("AddGoal(empty name) error = %v, want %v", err, core.ErrEmptyName)
	}
	if _, err := repo.AddGoal(ctx, core.SavingsGoal{Name: "car", Target: core.Money{Cents: 0}}); !errors.Is(err, core.ErrInvalidTarget) {
		t.Errorf("AddGoal(zero target) error = %v, want %v", err, core.ErrInvalidTarget)
	}
	if _, err := repo.GoalProgress(ctx, 42); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("GoalProgress(unknown) error = %v, want %v", err, ledger.ErrNotFound)
	}
	if err := repo.DeleteGoal(ctx, 42); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("DeleteGoal(unknown) error = %v, want %v", err, ledger.ErrNotFound)
	}
}

func TestGoalRoundTripWithTargetDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	goal, err := repo.AddGoal(ctx, core.SavingsGoal{
		Name:       "house deposit",
		Target:     core.Money{Cents: 2000000},
		TargetDate: core.NewDate(2027, 12, 31),
	})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}

	goals, err := repo.ListGoals(ctx)
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	if len(goals) != 1 {
		t.Fatalf("ListGoals() returned %d goals, want 1", len(goals))
	}
	if goals[0].ID != goal.ID || goals[0].Name != "house deposit" {
		t.Errorf("goal = %+v, want id %d name %q", goals[0], goal.ID, "house deposit")
	}
	if goals[0].TargetDate.String() != "2027-12-31" {
		t.Errorf("target date = %q, want %q", goals[0].TargetDate.String(), "2027-12-31")
	}
}

func TestBudgetStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SetBudget(ctx, core.Budget{Category: "food", MonthlyLimit: core.Money{Cents: 10000}}); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if err := repo.SetBudget(ctx, core.Budget{Category: "transport", MonthlyLimit: core.Money{Cents: 5000}}); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}

	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 7, 5), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 9000},
	})
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 7, 8), Type: core.Expense, Category: "transport",
		Amount: core.Money{Cents: 6000},
	})
	// Income in the same category must not count toward spending.
	addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 7, 9), Type: core.Income, Category: "food",
		Amount: core.Money{Cents: 2000},
	})

	statuses, err := repo.BudgetStatus(ctx, 2026, 7)
	if err != nil {
		t.Fatalf("BudgetStatus() error = %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("BudgetStatus() returned %d rows, want 2", len(statuses))
	}

	byCategory := make(map[string]core.BudgetStatus)
	for _, s := range statuses {
		byCategory[s.Category] = s
	}

	food := byCategory["food"]
	if food.Spent.Cents != 9000 || food.State != core.BudgetWarning {
		t.Errorf("food status = %+v, want spent 9000 state warning", food)
	}
	transport := byCategory["transport"]
	if transport.Spent.Cents != 6000 || transport.State != core.BudgetOver {
		t.Errorf("transport status = %+v, want spent 6000 state over", transport)
	}
}

func TestSetBudgetUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SetBudget(ctx, core.Budget{Category: "food", MonthlyLimit: core.Money{Cents: 10000}}); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if err := repo.SetBudget(ctx, core.Budget{Category: "food", MonthlyLimit: core.Money{Cents: 20000}}); err != nil {
		t.Fatalf("SetBudget() update error = %v", err)
	}

	statuses, err := repo.BudgetStatus(ctx, 2026, 1)
	if err != nil {
		t.Fatalf("BudgetStatus() error = %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("BudgetStatus() returned %d rows, want 1", len(statuses))
	}
	if statuses[0].Limit.Cents != 20000 {
		t.Errorf("limit = %d, want 20000 after upsert", statuses[0].Limit.Cents)
	}
}

func TestPendingExportLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 1), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 100},
	})
	second := addTransaction(t, repo, core.Transaction{
		Date: core.NewDate(2026, 1, 2), Type: core.Expense, Category: "food",
		Amount: core.Money{Cents: 200},
	})

	pending, err := repo.PendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExports() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("PendingExports() returned %d items, want 2", len(pending))
	}

	if err := repo.MarkExported(ctx, first.ID); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}

	pending, err = repo.PendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExports() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("PendingExports() = %+v, want only id %d", pending, second.ID)
	}
}
