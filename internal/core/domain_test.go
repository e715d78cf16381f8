package core

import (
	"strings"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		ID:              "tx-1",
		OwnerID:         "user-1",
		CategoryID:      "cat-1",
		Amount:          Money{Cents: 10050},
		Source:          "Acme Corp",
		TransactionDate: time.Now().AddDate(0, 0, -1),
	}
}

func TestTransactionValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Transaction)
		field  string
	}{
		{"valid", func(t *Transaction) {}, ""},
		{"zero amount", func(t *Transaction) { t.Amount = Money{} }, "amount"},
		{"amount above cap", func(t *Transaction) { t.Amount = Money{Cents: MaxAmountCents + 1} }, "amount"},
		{"empty source", func(t *Transaction) { t.Source = "  " }, "source"},
		{"source too long", func(t *Transaction) { t.Source = strings.Repeat("x", MaxSourceLength+1) }, "source"},
		{"empty category", func(t *Transaction) { t.CategoryID = "" }, "categoryId"},
		{"zero date", func(t *Transaction) { t.TransactionDate = time.Time{} }, "transactionDate"},
		{"future date", func(t *Transaction) { t.TransactionDate = time.Now().AddDate(0, 0, 2) }, "transactionDate"},
		{"notes too long", func(t *Transaction) { t.Notes = strings.Repeat("x", MaxNotesLength+1) }, "notes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTransaction()
			tc.mutate(&tx)
			err := tx.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, ve.Field)
			}
		})
	}
}

func TestTransactionPatchApply(t *testing.T) {
	tx := validTransaction()
	tx.Notes = "original"

	amount := Money{Cents: 500}
	empty := ""
	patch := TransactionPatch{Amount: &amount, Notes: &empty}

	got := patch.Apply(tx)
	if got.Amount.Cents != 500 {
		t.Fatalf("expected amount applied, got %d", got.Amount.Cents)
	}
	if got.Notes != "" {
		t.Fatalf("expected notes cleared, got %q", got.Notes)
	}
	// Unset fields stay untouched
	if got.Source != tx.Source || got.CategoryID != tx.CategoryID {
		t.Fatal("patch touched unset fields")
	}
	// Apply works on a copy
	if tx.Amount.Cents != 10050 || tx.Notes != "original" {
		t.Fatal("patch mutated the input transaction")
	}
}

func TestTransactionPatchValidate(t *testing.T) {
	empty := ""
	bad := Money{Cents: -1}
	future := time.Now().AddDate(0, 0, 2)

	if err := (TransactionPatch{}).Validate(); err != nil {
		t.Fatalf("empty patch should validate, got %v", err)
	}
	if err := (TransactionPatch{Source: &empty}).Validate(); err == nil {
		t.Fatal("expected error for empty source")
	}
	if err := (TransactionPatch{Amount: &bad}).Validate(); err == nil {
		t.Fatal("expected error for invalid amount")
	}
	if err := (TransactionPatch{TransactionDate: &future}).Validate(); err == nil {
		t.Fatal("expected error for future date")
	}

	if !(TransactionPatch{}).IsZero() {
		t.Fatal("empty patch should be zero")
	}
	if (TransactionPatch{Notes: &empty}).IsZero() {
		t.Fatal("patch with notes set should not be zero")
	}
}

func TestCategoryVisibleTo(t *testing.T) {
	owner := "user-1"

	def := Category{ID: "c1", IsDefault: true}
	if !def.VisibleTo("anyone") {
		t.Fatal("default category should be visible to everyone")
	}

	custom := Category{ID: "c2", OwnerID: &owner}
	if !custom.VisibleTo("user-1") {
		t.Fatal("custom category should be visible to its owner")
	}
	if custom.VisibleTo("user-2") {
		t.Fatal("custom category should not be visible to other actors")
	}
}

func TestFiltersNormalize(t *testing.T) {
	// Values below 1 clamp to 1; the clamp never substitutes the absent
	// default page size.
	f := TransactionFilters{Page: 0, Limit: 0}.Normalize()
	if f.Page != 1 || f.Limit != 1 {
		t.Fatalf("expected page=1 limit=1, got page=%d limit=%d", f.Page, f.Limit)
	}

	f = TransactionFilters{Page: -2, Limit: -3}.Normalize()
	if f.Page != 1 || f.Limit != 1 {
		t.Fatalf("expected page=1 limit=1, got page=%d limit=%d", f.Page, f.Limit)
	}

	f = TransactionFilters{Page: 2, Limit: 25}.Normalize()
	if f.Page != 2 || f.Limit != 25 {
		t.Fatalf("valid values should pass through, got page=%d limit=%d", f.Page, f.Limit)
	}
}

func TestNewPagination(t *testing.T) {
	cases := []struct {
		total      int64
		limit      int
		totalPages int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{15, 10, 2},
		{21, 10, 3},
	}
	for _, tc := range cases {
		p := NewPagination(1, tc.limit, tc.total)
		if p.TotalPages != tc.totalPages {
			t.Fatalf("total=%d limit=%d expected %d pages, got %d",
				tc.total, tc.limit, tc.totalPages, p.TotalPages)
		}
	}
}
