package services

import (
	"context"
	"fmt"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/storage"
)

// LedgerService orchestrates write operations across SQLite and AMQP.
// The AMQP client is optional, without it writes stay local only.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	logger     *applog.Logger
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
		logger:     applog.New(applog.Config{Component: applog.ComponentLedger}),
	}
}

// CreateTransaction saves a transaction locally and publishes a sync
// message for the export worker.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	saved, err := s.storage.AddTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	// Publish async, the transaction is already saved locally so a
	// publish failure must not fail the request.
	if err := s.publishSync(ctx, saved.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldTxID, saved.ID,
			applog.FieldError, err)
	}

	return saved, nil
}

// DeleteTransaction removes a transaction locally and publishes a
// delete message.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	if err := s.publishDelete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish delete message",
			applog.FieldTxID, id,
			applog.FieldError, err)
	}

	return nil
}

func (s *LedgerService) publishSync(ctx context.Context, id int64) error {
	if s.amqpClient == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping sync message",
			applog.FieldOperation, applog.OpCreate)
		return nil
	}
	return s.amqpClient.PublishTransactionSync(ctx, id)
}

func (s *LedgerService) publishDelete(ctx context.Context, id int64) error {
	if s.amqpClient == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping delete message",
			applog.FieldOperation, applog.OpDelete)
		return nil
	}
	return s.amqpClient.PublishTransactionDelete(ctx, id)
}

// Close closes both storage and AMQP connections.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
