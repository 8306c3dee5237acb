// Package worker runs the background export pipeline, consuming sync
// messages from AMQP and pushing transactions to the backup exporter.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"budget/internal/amqp"
	"budget/internal/export"
	"budget/internal/ledger"
	"budget/internal/storage"
)

// ExportWorker synchronizes transactions from SQLite to the exporter.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	exporter  export.Exporter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, exporter export.Exporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExportWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleMessage processes a single sync message from AMQP.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"action", msg.Action)

	switch msg.Action {
	case amqp.ActionDelete:
		if err := w.exporter.RemoveTransaction(ctx, msg.ID); err != nil {
			return fmt.Errorf("remove transaction from export: %w", err)
		}
		return nil
	case amqp.ActionUpsert:
		return w.exportByID(ctx, msg.ID)
	default:
		slog.WarnContext(ctx, "Unknown sync action, dropping message",
			"id", msg.ID,
			"action", msg.Action)
		return nil
	}
}

func (w *ExportWorker) exportByID(ctx context.Context, id int64) error {
	t, err := w.storage.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// Deleted before the worker got to it. Nothing to export.
			slog.WarnContext(ctx, "Transaction gone, skipping export", "id", id)
			return nil
		}
		return fmt.Errorf("get transaction: %w", err)
	}

	if err := w.exporter.AppendTransaction(ctx, t); err != nil {
		if markErr := w.storage.MarkExportFailed(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append transaction to export: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	return nil
}

// ProcessPending exports transactions that have not been pushed yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.PendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, t := range pending {
		if err := w.exportByID(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending transaction",
				"id", t.ID, "error", err)
		}
	}

	return nil
}

// Run consumes sync messages until the context is cancelled. A cron
// schedule periodically sweeps pending transactions alongside the
// message stream.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client, sweepSchedule string) error {
	if err := w.ProcessPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup pending sweep failed", "error", err)
	}

	c := cron.New()
	if sweepSchedule != "" {
		_, err := c.AddFunc(sweepSchedule, func() {
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Scheduled pending sweep failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule pending sweep: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	return client.ConsumeTransactionSync(ctx, func(msg *amqp.TransactionSyncMessage) error {
		return w.HandleMessage(ctx, msg)
	})
}
