package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"incomeledger/internal/amqp"
	"incomeledger/internal/sheets"
)

type fakeAppender struct {
	rows []sheets.StatementRow
	err  error
}

func (f *fakeAppender) AppendStatementRow(ctx context.Context, row sheets.StatementRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func testMessage() *amqp.TransactionEventMessage {
	return &amqp.TransactionEventMessage{
		ID:          "tx-1",
		Action:      "CREATE",
		OwnerID:     "user-1",
		AmountCents: 10050,
		Source:      "Acme Corp",
		Category:    "Salary",
		Date:        "2025-06-01",
		Timestamp:   time.Now().UTC(),
	}
}

func TestHandleTransactionEvent(t *testing.T) {
	appender := &fakeAppender{}
	w := NewStatementWorker(appender)

	if err := w.HandleTransactionEvent(context.Background(), testMessage()); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(appender.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(appender.rows))
	}

	row := appender.rows[0]
	if row.Amount != "100.50" {
		t.Fatalf("expected decimal amount, got %q", row.Amount)
	}
	if row.Action != "CREATE" || row.Source != "Acme Corp" || row.Category != "Salary" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Reference != "tx-1" || row.Date != "2025-06-01" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestHandleTransactionEventAppendFailure(t *testing.T) {
	appender := &fakeAppender{err: errors.New("sheets unavailable")}
	w := NewStatementWorker(appender)

	// Errors must propagate so the consumer requeues the message
	if err := w.HandleTransactionEvent(context.Background(), testMessage()); err == nil {
		t.Fatal("expected append error to propagate")
	}
}

func TestHandleTransactionEventNoAppender(t *testing.T) {
	w := NewStatementWorker(nil)

	// Without a configured journal the event is dropped, not retried
	if err := w.HandleTransactionEvent(context.Background(), testMessage()); err != nil {
		t.Fatalf("expected nil error without appender, got %v", err)
	}
}
