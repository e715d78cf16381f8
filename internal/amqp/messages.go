package amqp

import (
	"encoding/json"
	"time"
)

// TransactionEventMessage announces a committed ledger mutation to the
// statement worker. It carries the row data the worker needs to append a
// journal line, so the worker never has to read back a row that may since
// have been soft-deleted.
type TransactionEventMessage struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	OwnerID     string    `json:"ownerId"`
	AmountCents int64     `json:"amountCents"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Date        string    `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
