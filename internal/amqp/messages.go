package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionRecordedMessage announces a stored transaction. It carries only
// identifiers; consumers load the record from the database.
type TransactionRecordedMessage struct {
	OwnerID       string    `json:"owner_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(ownerID, transactionID string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		OwnerID:       ownerID,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionRecordedMessage) Validate() error {
	if m.OwnerID == "" {
		return errors.New("message without owner_id")
	}
	if m.TransactionID == "" {
		return errors.New("message without transaction_id")
	}
	return nil
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON decodes and validates a message body.
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
