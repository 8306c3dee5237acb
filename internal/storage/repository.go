package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"budget/internal/core"
	"budget/internal/ledger"
)

// Sync statuses for the export pipeline.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// SQLiteRepository implements ledger.Store on top of a SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, queries: New(db)}
}

// OpenSQLiteRepository opens the database file and wraps it in a
// repository. The caller owns the handle via Close.
func OpenSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewSQLiteRepository(db), nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.GoalID != 0 {
		if _, err := r.queries.GetGoal(ctx, t.GoalID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.Transaction{}, fmt.Errorf("goal %d: %w", t.GoalID, ledger.ErrNotFound)
			}
			return core.Transaction{}, fmt.Errorf("check goal: %w", err)
		}
	}

	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		Date:        t.Date.String(),
		Type:        string(t.Type),
		Category:    t.Category,
		AmountCents: t.Amount.Cents,
		Note:        t.Note,
		GoalID:      nullableID(t.GoalID),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return transactionFromRow(row)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	query, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var items []core.Transaction
	for rows.Next() {
		var row TransactionRow
		if err := rows.Scan(&row.ID, &row.Date, &row.Type, &row.Category, &row.AmountCents, &row.Note, &row.GoalID, &row.SyncStatus); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}

// GetTransaction fetches a single transaction by id.
// Returns ledger.ErrNotFound when the id is unknown.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return transactionFromRow(row)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	affected, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Aggregate(ctx context.Context, f core.Filter, groupBy core.GroupBy) ([]core.GroupTotal, error) {
	if err := groupBy.Validate(); err != nil {
		return nil, err
	}

	keyExpr := "category"
	switch groupBy {
	case core.GroupByMonth:
		keyExpr = "substr(date, 1, 7)"
	case core.GroupByType:
		keyExpr = "type"
	}

	where, args := buildFilterClause(f)
	// MIN(id) keeps groups in the insertion order of their first member.
	query := fmt.Sprintf(
		"SELECT %s, SUM(amount_cents) FROM transactions%s GROUP BY %s ORDER BY MIN(id)",
		keyExpr, where, keyExpr)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate transactions: %w", err)
	}
	defer rows.Close()

	var totals []core.GroupTotal
	for rows.Next() {
		var g core.GroupTotal
		if err := rows.Scan(&g.Key, &g.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		totals = append(totals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate transactions: %w", err)
	}
	return totals, nil
}

func (r *SQLiteRepository) MonthSummary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	monthKey := fmt.Sprintf("%04d-%02d", year, month)

	income, err := r.queries.SumMonthByType(ctx, string(core.Income), monthKey)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("sum month income: %w", err)
	}
	expense, err := r.queries.SumMonthByType(ctx, string(core.Expense), monthKey)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("sum month expenses: %w", err)
	}

	return core.MonthSummary{
		Year:    year,
		Month:   month,
		Income:  core.Money{Cents: income},
		Expense: core.Money{Cents: expense},
		Balance: core.Money{Cents: income - expense},
	}, nil
}

func (r *SQLiteRepository) AddGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}

	var targetDate sql.NullString
	if !g.TargetDate.IsEmpty() {
		targetDate = sql.NullString{String: g.TargetDate.String(), Valid: true}
	}

	row, err := r.queries.CreateGoal(ctx, CreateGoalParams{
		Name:        g.Name,
		TargetCents: g.Target.Cents,
		TargetDate:  targetDate,
	})
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("insert goal: %w", err)
	}
	return goalFromRow(row)
}

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.SavingsGoal, error) {
	rows, err := r.queries.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	var goals []core.SavingsGoal
	for _, row := range rows {
		g, err := goalFromRow(row)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

func (r *SQLiteRepository) GoalProgress(ctx context.Context, id int64) (core.GoalProgress, error) {
	row, err := r.queries.GetGoal(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.GoalProgress{}, fmt.Errorf("goal %d: %w", id, ledger.ErrNotFound)
		}
		return core.GoalProgress{}, fmt.Errorf("get goal: %w", err)
	}

	total, err := r.queries.SumGoalContributions(ctx, id)
	if err != nil {
		return core.GoalProgress{}, fmt.Errorf("sum goal contributions: %w", err)
	}

	goal, err := goalFromRow(row)
	if err != nil {
		return core.GoalProgress{}, err
	}
	current := core.Money{Cents: total}
	return core.GoalProgress{
		Goal:     goal,
		Current:  current,
		Fraction: core.ClampFraction(current, goal.Target),
	}, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id int64) error {
	affected, err := r.queries.DeleteGoal(ctx, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("goal %d: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertBudget(ctx, UpsertBudgetParams{
		Category:          b.Category,
		MonthlyLimitCents: b.MonthlyLimit.Cents,
	})
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BudgetStatus(ctx context.Context, year, month int) ([]core.BudgetStatus, error) {
	budgets, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}

	monthKey := fmt.Sprintf("%04d-%02d", year, month)
	spends, err := r.queries.SumMonthExpensesByCategory(ctx, monthKey)
	if err != nil {
		return nil, fmt.Errorf("sum month expenses: %w", err)
	}
	spentByCategory := make(map[string]int64, len(spends))
	for _, s := range spends {
		spentByCategory[s.Category] = s.SpentCents
	}

	statuses := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent := spentByCategory[b.Category]
		pct := float64(spent) / float64(b.MonthlyLimitCents) * 100
		statuses = append(statuses, core.BudgetStatus{
			Category: b.Category,
			Limit:    core.Money{Cents: b.MonthlyLimitCents},
			Spent:    core.Money{Cents: spent},
			Percent:  pct,
			State:    core.StateForPercent(pct),
		})
	}
	return statuses, nil
}

// PendingExports returns transactions not yet pushed to the external
// backup, oldest first.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}

	var items []core.Transaction
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if err := r.queries.UpdateSyncStatus(ctx, id, SyncDone); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkExportFailed(ctx context.Context, id int64) error {
	if err := r.queries.UpdateSyncStatus(ctx, id, SyncError); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

func buildListQuery(f core.Filter) (string, []any) {
	where, args := buildFilterClause(f)
	query := "SELECT id, date, type, category, amount_cents, note, goal_id, sync_status FROM transactions" +
		where + " ORDER BY id"
	return query, args
}

func buildFilterClause(f core.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if !f.From.IsEmpty() {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsEmpty() {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.GoalID != 0 {
		clauses = append(clauses, "goal_id = ?")
		args = append(args, f.GoalID)
	}
	if f.Query != "" {
		clauses = append(clauses, "instr(lower(note), lower(?)) > 0")
		args = append(args, f.Query)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", row.Date, err)
	}
	t := core.Transaction{
		ID:       row.ID,
		Date:     date,
		Type:     core.TransactionType(row.Type),
		Category: row.Category,
		Amount:   core.Money{Cents: row.AmountCents},
		Note:     row.Note,
	}
	if row.GoalID.Valid {
		t.GoalID = row.GoalID.Int64
	}
	return t, nil
}

func goalFromRow(row GoalRow) (core.SavingsGoal, error) {
	g := core.SavingsGoal{
		ID:     row.ID,
		Name:   row.Name,
		Target: core.Money{Cents: row.TargetCents},
	}
	if row.TargetDate.Valid && row.TargetDate.String != "" {
		date, err := core.ParseDate(row.TargetDate.String)
		if err != nil {
			return core.SavingsGoal{}, fmt.Errorf("stored target date %q: %w", row.TargetDate.String, err)
		}
		g.TargetDate = date
	}
	return g, nil
}

func nullableID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
