package amqp

import (
	"encoding/json"
	"time"
)

// Message actions understood by the export worker.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// TransactionSyncMessage is a lightweight notification for the export
// worker. It carries only the id and action, the worker fetches the
// full transaction from the database.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id int64, action string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
