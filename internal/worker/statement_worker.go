// Package worker exports committed ledger mutations to the statement
// journal. It only consumes events emitted after commit, so it can never
// observe a mutation that was rolled back.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"incomeledger/internal/amqp"
	"incomeledger/internal/core"
	"incomeledger/internal/sheets"
)

type StatementWorker struct {
	appender sheets.StatementAppender
}

func NewStatementWorker(appender sheets.StatementAppender) *StatementWorker {
	return &StatementWorker{appender: appender}
}

// HandleTransactionEvent appends one journal line for a mutation event.
// Errors propagate to the consumer, which nacks and requeues the message.
func (w *StatementWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	if w.appender == nil {
		slog.WarnContext(ctx, "No statement appender configured, dropping event",
			"id", msg.ID, "action", msg.Action)
		return nil
	}

	row := sheets.StatementRow{
		Date:      msg.Date,
		Action:    msg.Action,
		Source:    msg.Source,
		Category:  msg.Category,
		Amount:    core.FromCents(msg.AmountCents).String(),
		Reference: msg.ID,
	}

	if err := w.appender.AppendStatementRow(ctx, row); err != nil {
		return fmt.Errorf("append statement row: %w", err)
	}

	slog.InfoContext(ctx, "Statement row written",
		"id", msg.ID,
		"action", msg.Action,
		"owner_id", msg.OwnerID,
		"amount_cents", msg.AmountCents)
	return nil
}
