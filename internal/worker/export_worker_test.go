package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

type fakeExporter struct {
	appended []int64
	removed  []int64
	failNext error
}

func (f *fakeExporter) AppendTransaction(_ context.Context, t core.Transaction) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.appended = append(f.appended, t.ID)
	return nil
}

func (f *fakeExporter) RemoveTransaction(_ context.Context, id int64) error {
	f.removed = append(f.removed, id)
	return nil
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "worker_test.db")
	if err := storage.RunMigrations(dbPath); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return storage.NewSQLiteRepository(db)
}

func addTx(t *testing.T, repo *storage.SQLiteRepository) core.Transaction {
	t.Helper()
	tx, err := repo.AddTransaction(context.Background(), core.Transaction{
		Date:     core.NewDate(2024, 5, 1),
		Type:     core.Expense,
		Category: "food",
		Amount:   core.Money{Cents: 1500},
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	return tx
}

func TestHandleMessageUpsert(t *testing.T) {
	repo := newTestRepo(t)
	exp := &fakeExporter{}
	w := NewExportWorker(repo, exp, 10)
	ctx := context.Background()

	tx := addTx(t, repo)

	msg := amqp.NewTransactionSyncMessage(tx.ID, amqp.ActionUpsert)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(exp.appended) != 1 || exp.appended[0] != tx.ID {
		t.Errorf("appended = %v", exp.appended)
	}

	pending, err := repo.PendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("still %d pending after export", len(pending))
	}
}

func TestHandleMessageDelete(t *testing.T) {
	repo := newTestRepo(t)
	exp := &fakeExporter{}
	w := NewExportWorker(repo, exp, 10)

	msg := amqp.NewTransactionSyncMessage(42, amqp.ActionDelete)
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(exp.removed) != 1 || exp.removed[0] != 42 {
		t.Errorf("removed = %v", exp.removed)
	}
}

func TestHandleMessageGoneTransaction(t *testing.T) {
	repo := newTestRepo(t)
	exp := &fakeExporter{}
	w := NewExportWorker(repo, exp, 10)

	// Upsert for a transaction deleted before the worker saw it: skip, no error.
	msg := amqp.NewTransactionSyncMessage(999, amqp.ActionUpsert)
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(exp.appended) != 0 {
		t.Errorf("appended = %v, want none", exp.appended)
	}
}

func TestHandleMessageUnknownActionDropped(t *testing.T) {
	repo := newTestRepo(t)
	exp := &fakeExporter{}
	w := NewExportWorker(repo, exp, 10)

	msg := amqp.NewTransactionSyncMessage(1, "rename")
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("unknown action should be dropped, got %v", err)
	}
}

func TestExportFailureMarksError(t *testing.T) {
	repo := newTestRepo(t)
	exp := &fakeExporter{failNext: errors.New("sheets unavailable")}
	w := NewExportWorker(repo, exp, 10)
	ctx := context.Background()

	tx := addTx(t, repo)

	msg := amqp.NewTransactionSyncMessage(tx.ID, amqp.ActionUpsert)
	if err := w.HandleMessage(ctx, msg); err == nil {
		t.Fatal("expected error from failed append")
	}

	// Errored rows leave the pending queue until retried explicitly.
	pending, err := repo.PendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExports: %v", err)
	}
	for _, p := range pending {
		if p.ID == tx.ID {
			t.Errorf("transaction %d still pending after marked error", tx.ID)
		}
	}
}

func TestProcessPending(t *testing.T) {
	repo := newTestRepo(t)
	exp := &fakeExporter{}
	w := NewExportWorker(repo, exp, 10)
	ctx := context.Background()

	first := addTx(t, repo)
	second := addTx(t, repo)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(exp.appended) != 2 {
		t.Fatalf("appended = %v, want both", exp.appended)
	}
	if exp.appended[0] != first.ID || exp.appended[1] != second.ID {
		t.Errorf("append order = %v", exp.appended)
	}

	// Second sweep finds nothing.
	exp.appended = nil
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("second ProcessPending: %v", err)
	}
	if len(exp.appended) != 0 {
		t.Errorf("re-exported already synced rows: %v", exp.appended)
	}
}
