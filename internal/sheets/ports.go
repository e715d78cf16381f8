// Package sheets defines the statement journal port. The journal is a
// human-readable export of committed ledger mutations; it lives entirely
// outside the atomic storage boundary.
package sheets

import "context"

// StatementRow is one journal line. All values are pre-formatted strings
// so the appender stays a dumb transport.
type StatementRow struct {
	Date      string
	Action    string
	Source    string
	Category  string
	Amount    string
	Reference string
}

// StatementAppender appends journal lines to an external statement.
type StatementAppender interface {
	AppendStatementRow(ctx context.Context, row StatementRow) error
}
