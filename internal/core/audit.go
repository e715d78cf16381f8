package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction labels the mutation an audit entry records.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditContext carries request metadata captured alongside a mutation.
type AuditContext struct {
	IPAddress string
	UserAgent string
}

// AuditEntry is the immutable record of one mutation. Entries are
// append-only: written in the same storage transaction as the mutation
// they describe and never updated or removed afterwards.
type AuditEntry struct {
	ID            string
	ActorID       string
	TransactionID string
	Action        AuditAction
	OldValue      []byte // JSON snapshot, nil for CREATE
	NewValue      []byte // JSON snapshot, nil for DELETE
	IPAddress     string
	UserAgent     string
	CreatedAt     time.Time
}

// snapshot renders the auditable fields of a transaction. Amounts are
// decimal strings and dates plain ISO days, so snapshots stay readable
// and never carry binary floats.
func snapshot(t Transaction) map[string]any {
	return map[string]any{
		"amount":          t.Amount.String(),
		"source":          t.Source,
		"categoryId":      t.CategoryID,
		"transactionDate": t.TransactionDate.Format("2006-01-02"),
		"notes":           t.Notes,
	}
}

func mustJSON(v map[string]any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Maps of strings cannot fail to marshal.
		panic(err)
	}
	return b
}

// NewCreateAudit records a creation: new value is the full created row.
func NewCreateAudit(actorID string, created Transaction, actx AuditContext) AuditEntry {
	return AuditEntry{
		ID:            uuid.NewString(),
		ActorID:       actorID,
		TransactionID: created.ID,
		Action:        AuditCreate,
		NewValue:      mustJSON(snapshot(created)),
		IPAddress:     actx.IPAddress,
		UserAgent:     actx.UserAgent,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewUpdateAudit records an update: old and new values hold only the
// fields the patch actually changed.
func NewUpdateAudit(actorID string, before, after Transaction, actx AuditContext) AuditEntry {
	oldSnap := snapshot(before)
	newSnap := snapshot(after)
	oldChanged := map[string]any{}
	newChanged := map[string]any{}
	for k, ov := range oldSnap {
		if nv := newSnap[k]; nv != ov {
			oldChanged[k] = ov
			newChanged[k] = nv
		}
	}
	return AuditEntry{
		ID:            uuid.NewString(),
		ActorID:       actorID,
		TransactionID: before.ID,
		Action:        AuditUpdate,
		OldValue:      mustJSON(oldChanged),
		NewValue:      mustJSON(newChanged),
		IPAddress:     actx.IPAddress,
		UserAgent:     actx.UserAgent,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewDeleteAudit records a soft delete: old value is the full pre-image.
func NewDeleteAudit(actorID string, before Transaction, actx AuditContext) AuditEntry {
	return AuditEntry{
		ID:            uuid.NewString(),
		ActorID:       actorID,
		TransactionID: before.ID,
		Action:        AuditDelete,
		OldValue:      mustJSON(snapshot(before)),
		IPAddress:     actx.IPAddress,
		UserAgent:     actx.UserAgent,
		CreatedAt:     time.Now().UTC(),
	}
}
