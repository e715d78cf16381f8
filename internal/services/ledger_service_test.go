package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"incomeledger/internal/core"
	"incomeledger/internal/storage"
)

// salaryCategoryID is one of the categories seeded by migration.
const salaryCategoryID = "1d3e0df6-8e5c-4a53-9f5e-2a6f9c1b0a01"

func newTestServices(t *testing.T) (*LedgerService, *CategoryService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	categories := NewCategoryService(repo)
	// nil AMQP client: publishing is skipped, mutations still work
	ledger := NewLedgerService(repo, categories, nil)
	return ledger, categories, repo
}

func createInput(cents int64, source, date string) CreateTransactionInput {
	day, _ := time.Parse("2006-01-02", date)
	return CreateTransactionInput{
		Amount:          core.FromCents(cents),
		Source:          source,
		CategoryID:      salaryCategoryID,
		TransactionDate: day,
	}
}

func TestLedgerServiceCreate(t *testing.T) {
	ledger, _, repo := newTestServices(t)
	ctx := context.Background()
	actx := core.AuditContext{IPAddress: "10.0.0.1", UserAgent: "test"}

	tx, err := ledger.Create(ctx, "user-1", createInput(10050, "Acme Corp", "2025-06-01"), actx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.ID == "" {
		t.Fatal("expected generated id")
	}
	if tx.Amount.String() != "100.50" {
		t.Fatalf("expected 100.50, got %s", tx.Amount.String())
	}
	if tx.Category == nil || tx.Category.Name != "Salary" {
		t.Fatalf("expected resolved category, got %+v", tx.Category)
	}

	entries, err := repo.ListAuditEntries(ctx, tx.ID)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != core.AuditCreate {
		t.Fatalf("expected one CREATE audit entry, got %d", len(entries))
	}
	if entries[0].ActorID != "user-1" || entries[0].IPAddress != "10.0.0.1" {
		t.Fatalf("audit entry missing actor context: %+v", entries[0])
	}
}

func TestLedgerServiceCreateValidation(t *testing.T) {
	ledger, _, _ := newTestServices(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateTransactionInput)
	}{
		{"zero amount", func(in *CreateTransactionInput) { in.Amount = core.Money{} }},
		{"empty source", func(in *CreateTransactionInput) { in.Source = "" }},
		{"missing category", func(in *CreateTransactionInput) { in.CategoryID = "" }},
		{"zero date", func(in *CreateTransactionInput) { in.TransactionDate = time.Time{} }},
		{"future date", func(in *CreateTransactionInput) { in.TransactionDate = time.Now().AddDate(0, 0, 5) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := createInput(10050, "Acme Corp", "2025-06-01")
			tc.mutate(&in)
			if _, err := ledger.Create(ctx, "user-1", in, core.AuditContext{}); !core.IsValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLedgerServiceCreateRejectsForeignCategory(t *testing.T) {
	ledger, categories, repo := newTestServices(t)
	ctx := context.Background()

	foreign, err := categories.Create(ctx, "user-2", "Consulting", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	in := createInput(10050, "Acme Corp", "2025-06-01")
	in.CategoryID = foreign.ID
	_, err = ledger.Create(ctx, "user-1", in, core.AuditContext{})
	if !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	// The rejected mutation must leave no trace
	items, total, err := repo.ListTransactions(ctx, "user-1", core.TransactionFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatal("rejected create left a row behind")
	}
}

func TestLedgerServiceUpdate(t *testing.T) {
	ledger, _, repo := newTestServices(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, "user-1", createInput(10050, "Acme Corp", "2025-06-01"), core.AuditContext{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amount := core.FromCents(20000)
	updated, err := ledger.Update(ctx, "user-1", tx.ID, core.TransactionPatch{Amount: &amount}, core.AuditContext{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 20000 {
		t.Fatalf("expected amount updated, got %d", updated.Amount.Cents)
	}
	if updated.Source != "Acme Corp" {
		t.Fatal("unpatched field changed")
	}

	entries, err := repo.ListAuditEntries(ctx, tx.ID)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 2 || entries[1].Action != core.AuditUpdate {
		t.Fatalf("expected CREATE then UPDATE trail, got %d entries", len(entries))
	}
}

func TestLedgerServiceUpdateEmptyPatch(t *testing.T) {
	ledger, _, repo := newTestServices(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, "user-1", createInput(10050, "Acme Corp", "2025-06-01"), core.AuditContext{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ledger.Update(ctx, "user-1", tx.ID, core.TransactionPatch{}, core.AuditContext{}); !core.IsValidationError(err) {
		t.Fatalf("expected validation error for empty patch, got %v", err)
	}

	entries, err := repo.ListAuditEntries(ctx, tx.ID)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("empty patch must not write an audit entry, got %d", len(entries))
	}
}

func TestLedgerServiceUpdateToForeignCategory(t *testing.T) {
	ledger, categories, repo := newTestServices(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, "user-1", createInput(10050, "Acme Corp", "2025-06-01"), core.AuditContext{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	foreign, err := categories.Create(ctx, "user-2", "Consulting", "")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	_, err = ledger.Update(ctx, "user-1", tx.ID, core.TransactionPatch{CategoryID: &foreign.ID}, core.AuditContext{})
	if !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	// The transaction and its trail are untouched by the rejected update
	got, err := ledger.Get(ctx, "user-1", tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategoryID != salaryCategoryID {
		t.Fatalf("category changed by rejected update: %s", got.CategoryID)
	}
	entries, err := repo.ListAuditEntries(ctx, tx.ID)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("rejected update wrote an audit entry: %d entries", len(entries))
	}
}

func TestLedgerServiceDelete(t *testing.T) {
	ledger, _, repo := newTestServices(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, "user-1", createInput(10050, "Acme Corp", "2025-06-01"), core.AuditContext{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := ledger.Delete(ctx, "user-1", tx.ID, core.AuditContext{}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := ledger.Get(ctx, "user-1", tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := ledger.Delete(ctx, "user-1", tx.ID, core.AuditContext{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	// Updating a deleted transaction also fails
	source := "Too late"
	if _, err := ledger.Update(ctx, "user-1", tx.ID, core.TransactionPatch{Source: &source}, core.AuditContext{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating deleted row, got %v", err)
	}

	entries, err := repo.ListAuditEntries(ctx, tx.ID)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 2 || entries[1].Action != core.AuditDelete {
		t.Fatalf("expected CREATE then DELETE trail, got %d entries", len(entries))
	}
}

func TestLedgerServiceActorScoping(t *testing.T) {
	ledger, _, _ := newTestServices(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, "user-1", createInput(10050, "Acme Corp", "2025-06-01"), core.AuditContext{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another actor cannot see, update, or delete the row
	if _, err := ledger.Get(ctx, "user-2", tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign actor, got %v", err)
	}
	source := "hijack"
	if _, err := ledger.Update(ctx, "user-2", tx.ID, core.TransactionPatch{Source: &source}, core.AuditContext{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign update, got %v", err)
	}
	if err := ledger.Delete(ctx, "user-2", tx.ID, core.AuditContext{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign delete, got %v", err)
	}
}

func TestLedgerServiceListPagination(t *testing.T) {
	ledger, _, _ := newTestServices(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := ledger.Create(ctx, "user-1", createInput(int64(1000+i), "Source", "2025-06-01"), core.AuditContext{}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	items, p, err := ledger.List(ctx, "user-1", core.TransactionFilters{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items on page 2, got %d", len(items))
	}
	if p.Total != 15 || p.TotalPages != 2 || p.Page != 2 || p.Limit != 10 {
		t.Fatalf("unexpected pagination: %+v", p)
	}

	// Listing is read-only: a second identical call returns the same page
	again, p2, err := ledger.List(ctx, "user-1", core.TransactionFilters{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(again) != len(items) || p2 != p {
		t.Fatal("repeated list changed its result")
	}
	for i := range items {
		if items[i].ID != again[i].ID {
			t.Fatalf("order changed between identical lists at %d", i)
		}
	}

	// A limit supplied below 1 clamps to 1; it never falls back to the
	// absent-value default page size.
	items, p, err = ledger.List(ctx, "user-1", core.TransactionFilters{Page: 1, Limit: 0})
	if err != nil {
		t.Fatalf("list with zero limit: %v", err)
	}
	if len(items) != 1 || p.Limit != 1 || p.TotalPages != 15 {
		t.Fatalf("zero limit should clamp to 1: items=%d pagination=%+v", len(items), p)
	}

	items, p, err = ledger.List(ctx, "user-1", core.TransactionFilters{Page: -4, Limit: -3})
	if err != nil {
		t.Fatalf("list with negative pagination: %v", err)
	}
	if len(items) != 1 || p.Page != 1 || p.Limit != 1 {
		t.Fatalf("negative pagination should clamp to 1: items=%d pagination=%+v", len(items), p)
	}
}

func TestLedgerServiceRepeatedUpdatesKeepAmountExact(t *testing.T) {
	ledger, _, _ := newTestServices(t)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, "user-1", createInput(1999, "Acme Corp", "2025-06-01"), core.AuditContext{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amount := core.FromCents(1999)
	for i := 0; i < 50; i++ {
		if _, err := ledger.Update(ctx, "user-1", tx.ID, core.TransactionPatch{Amount: &amount}, core.AuditContext{}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	got, err := ledger.Get(ctx, "user-1", tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.String() != "19.99" {
		t.Fatalf("amount drifted to %s", got.Amount.String())
	}
}

func TestLedgerServiceClose(t *testing.T) {
	service := &LedgerService{}
	if err := service.Close(); err != nil {
		t.Fatalf("Close with nil components should not error: %v", err)
	}
}

func TestLedgerServiceCloseReleasesStorage(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	ledger := NewLedgerService(repo, NewCategoryService(repo), nil)
	if err := ledger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The service owns its resources: after Close the repository is gone
	if _, err := repo.GetTransaction(context.Background(), "tx-1", "user-1"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected closed-database error, got %v", err)
	}
}
