// Package services orchestrates ledger mutations and queries. Each
// mutation validates its input, resolves category visibility, and hands
// the storage layer the row change together with its audit entry so both
// commit as one unit.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"incomeledger/internal/amqp"
	"incomeledger/internal/core"
	"incomeledger/internal/storage"

	"github.com/google/uuid"
)

// CreateTransactionInput holds the fields of a new income entry. The
// amount arrives already parsed into Money, so no float representation
// exists on this path.
type CreateTransactionInput struct {
	Amount          core.Money
	Source          string
	CategoryID      string
	TransactionDate time.Time
	Notes           string
}

// LedgerService coordinates transaction mutations and reads.
//
// Concurrent updates to the same transaction are last-committed-wins: each
// commit writes an audit entry reflecting the pre-image that call read, so
// overlapping writers can produce an audit sequence that matches no serial
// history. There is no version column to detect this.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	categories *CategoryService
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, categories *CategoryService, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		categories: categories,
		amqpClient: amqpClient,
	}
}

// Create records a new income entry and its CREATE audit entry atomically,
// returning the transaction joined with its category.
func (s *LedgerService) Create(ctx context.Context, actorID string, input CreateTransactionInput, actx core.AuditContext) (core.Transaction, error) {
	now := time.Now().UTC()
	t := core.Transaction{
		ID:              uuid.NewString(),
		OwnerID:         actorID,
		CategoryID:      input.CategoryID,
		Amount:          input.Amount,
		Source:          input.Source,
		TransactionDate: input.TransactionDate,
		Notes:           input.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	category, err := s.categories.Resolve(ctx, t.CategoryID, actorID)
	if err != nil {
		return core.Transaction{}, err
	}

	audit := core.NewCreateAudit(actorID, t, actx)
	if err := s.storage.CreateTransaction(ctx, t, audit); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.Category = &category

	s.publishEvent(ctx, t, core.AuditCreate)
	return t, nil
}

// Update applies a partial update to a live transaction owned by the
// actor. Only the fields the patch sets are touched; the UPDATE audit
// entry snapshots just the fields that actually changed.
func (s *LedgerService) Update(ctx context.Context, actorID, id string, patch core.TransactionPatch, actx core.AuditContext) (core.Transaction, error) {
	if patch.IsZero() {
		return core.Transaction{}, &core.ValidationError{Field: "body", Message: "no fields to update"}
	}
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}

	existing, err := s.storage.GetTransaction(ctx, id, actorID)
	if err != nil {
		return core.Transaction{}, err
	}

	category := *existing.Category
	if patch.CategoryID != nil {
		category, err = s.categories.Resolve(ctx, *patch.CategoryID, actorID)
		if err != nil {
			return core.Transaction{}, err
		}
	}

	updated := patch.Apply(existing)
	updated.UpdatedAt = time.Now().UTC()
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}

	audit := core.NewUpdateAudit(actorID, existing, updated, actx)
	if err := s.storage.UpdateTransaction(ctx, updated, audit); err != nil {
		return core.Transaction{}, err
	}
	updated.Category = &category

	s.publishEvent(ctx, updated, core.AuditUpdate)
	return updated, nil
}

// Delete soft-deletes a live transaction owned by the actor, recording
// the DELETE audit entry with the full pre-image atomically. Deletion is
// terminal: the row stays in storage forever but leaves every read path.
func (s *LedgerService) Delete(ctx context.Context, actorID, id string, actx core.AuditContext) error {
	existing, err := s.storage.GetTransaction(ctx, id, actorID)
	if err != nil {
		return err
	}

	audit := core.NewDeleteAudit(actorID, existing, actx)
	if err := s.storage.SoftDeleteTransaction(ctx, id, actorID, time.Now().UTC(), audit); err != nil {
		return err
	}

	s.publishEvent(ctx, existing, core.AuditDelete)
	return nil
}

// List returns one page of the actor's live transactions.
func (s *LedgerService) List(ctx context.Context, actorID string, f core.TransactionFilters) ([]core.Transaction, core.Pagination, error) {
	f = f.Normalize()
	items, total, err := s.storage.ListTransactions(ctx, actorID, f)
	if err != nil {
		return nil, core.Pagination{}, fmt.Errorf("list transactions: %w", err)
	}
	return items, core.NewPagination(f.Page, f.Limit, total), nil
}

// Get returns a single live transaction owned by the actor.
func (s *LedgerService) Get(ctx context.Context, actorID, id string) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id, actorID)
}

// publishEvent emits a statement event after a successful commit. Publish
// failures are logged, never surfaced: the ledger write already happened
// and the worker reconciles from the queue on its own schedule.
func (s *LedgerService) publishEvent(ctx context.Context, t core.Transaction, action core.AuditAction) {
	if s.amqpClient == nil {
		return
	}

	categoryName := ""
	if t.Category != nil {
		categoryName = t.Category.Name
	}
	msg := &amqp.TransactionEventMessage{
		ID:          t.ID,
		Action:      string(action),
		OwnerID:     t.OwnerID,
		AmountCents: t.Amount.Cents,
		Source:      t.Source,
		Category:    categoryName,
		Date:        t.TransactionDate.Format("2006-01-02"),
		Timestamp:   time.Now().UTC(),
	}
	if err := s.amqpClient.PublishTransactionEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", t.ID, "action", action, "error", err)
	}
}

// Close releases the service's storage and messaging resources.
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
