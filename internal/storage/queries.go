package storage

import (
	"context"
	"database/sql"
)

// Queries wraps a database handle with typed accessors for the ledger
// tables.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

type TransactionRow struct {
	ID          int64
	Date        string
	Type        string
	Category    string
	AmountCents int64
	Note        string
	GoalID      sql.NullInt64
	SyncStatus  string
}

type GoalRow struct {
	ID          int64
	Name        string
	TargetCents int64
	TargetDate  sql.NullString
}

type BudgetRow struct {
	Category          string
	MonthlyLimitCents int64
}

type CreateTransactionParams struct {
	Date        string
	Type        string
	Category    string
	AmountCents int64
	Note        string
	GoalID      sql.NullInt64
}

const createTransaction = `
INSERT INTO transactions (date, type, category, amount_cents, note, goal_id)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, date, type, category, amount_cents, note, goal_id, sync_status
`

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Date, arg.Type, arg.Category, arg.AmountCents, arg.Note, arg.GoalID)
	var t TransactionRow
	err := row.Scan(&t.ID, &t.Date, &t.Type, &t.Category, &t.AmountCents, &t.Note, &t.GoalID, &t.SyncStatus)
	return t, err
}

const getTransaction = `
SELECT id, date, type, category, amount_cents, note, goal_id, sync_status
FROM transactions
WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var t TransactionRow
	err := row.Scan(&t.ID, &t.Date, &t.Type, &t.Category, &t.AmountCents, &t.Note, &t.GoalID, &t.SyncStatus)
	return t, err
}

const deleteTransaction = `
DELETE FROM transactions
WHERE id = ?
`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type CreateGoalParams struct {
	Name        string
	TargetCents int64
	TargetDate  sql.NullString
}

const createGoal = `
INSERT INTO goals (name, target_cents, target_date)
VALUES (?, ?, ?)
RETURNING id, name, target_cents, target_date
`

func (q *Queries) CreateGoal(ctx context.Context, arg CreateGoalParams) (GoalRow, error) {
	row := q.db.QueryRowContext(ctx, createGoal, arg.Name, arg.TargetCents, arg.TargetDate)
	var g GoalRow
	err := row.Scan(&g.ID, &g.Name, &g.TargetCents, &g.TargetDate)
	return g, err
}

const getGoal = `
SELECT id, name, target_cents, target_date
FROM goals
WHERE id = ?
`

func (q *Queries) GetGoal(ctx context.Context, id int64) (GoalRow, error) {
	row := q.db.QueryRowContext(ctx, getGoal, id)
	var g GoalRow
	err := row.Scan(&g.ID, &g.Name, &g.TargetCents, &g.TargetDate)
	return g, err
}

const listGoals = `
SELECT id, name, target_cents, target_date
FROM goals
ORDER BY id
`

func (q *Queries) ListGoals(ctx context.Context) ([]GoalRow, error) {
	rows, err := q.db.QueryContext(ctx, listGoals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []GoalRow
	for rows.Next() {
		var g GoalRow
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetCents, &g.TargetDate); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

const deleteGoal = `
DELETE FROM goals
WHERE id = ?
`

func (q *Queries) DeleteGoal(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteGoal, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const sumGoalContributions = `
SELECT COALESCE(SUM(amount_cents), 0)
FROM transactions
WHERE goal_id = ?
`

func (q *Queries) SumGoalContributions(ctx context.Context, goalID int64) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumGoalContributions, goalID).Scan(&total)
	return total, err
}

type UpsertBudgetParams struct {
	Category          string
	MonthlyLimitCents int64
}

const upsertBudget = `
INSERT INTO budgets (category, monthly_limit_cents)
VALUES (?, ?)
ON CONFLICT (category) DO UPDATE SET monthly_limit_cents = excluded.monthly_limit_cents
`

func (q *Queries) UpsertBudget(ctx context.Context, arg UpsertBudgetParams) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, arg.Category, arg.MonthlyLimitCents)
	return err
}

const listBudgets = `
SELECT category, monthly_limit_cents
FROM budgets
ORDER BY category
`

func (q *Queries) ListBudgets(ctx context.Context) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []BudgetRow
	for rows.Next() {
		var b BudgetRow
		if err := rows.Scan(&b.Category, &b.MonthlyLimitCents); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

type CategorySpendRow struct {
	Category   string
	SpentCents int64
}

const sumMonthExpensesByCategory = `
SELECT category, SUM(amount_cents)
FROM transactions
WHERE type = 'expense' AND substr(date, 1, 7) = ?
GROUP BY category
`

func (q *Queries) SumMonthExpensesByCategory(ctx context.Context, monthKey string) ([]CategorySpendRow, error) {
	rows, err := q.db.QueryContext(ctx, sumMonthExpensesByCategory, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spends []CategorySpendRow
	for rows.Next() {
		var s CategorySpendRow
		if err := rows.Scan(&s.Category, &s.SpentCents); err != nil {
			return nil, err
		}
		spends = append(spends, s)
	}
	return spends, rows.Err()
}

const sumMonthByType = `
SELECT COALESCE(SUM(amount_cents), 0)
FROM transactions
WHERE type = ? AND substr(date, 1, 7) = ?
`

func (q *Queries) SumMonthByType(ctx context.Context, txType, monthKey string) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumMonthByType, txType, monthKey).Scan(&total)
	return total, err
}

const listPendingSync = `
SELECT id, date, type, category, amount_cents, note, goal_id, sync_status
FROM transactions
WHERE sync_status = 'pending'
ORDER BY id
LIMIT ?
`

func (q *Queries) ListPendingSync(ctx context.Context, limit int64) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TransactionRow
	for rows.Next() {
		var t TransactionRow
		if err := rows.Scan(&t.ID, &t.Date, &t.Type, &t.Category, &t.AmountCents, &t.Note, &t.GoalID, &t.SyncStatus); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const updateSyncStatus = `
UPDATE transactions
SET sync_status = ?
WHERE id = ?
`

func (q *Queries) UpdateSyncStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, updateSyncStatus, status, id)
	return err
}
