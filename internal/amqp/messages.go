package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"ledger/internal/core"
)

// EventType names a ledger change.
type EventType string

const (
	EntryCreated        EventType = "entry.created"
	EntryUpdated        EventType = "entry.updated"
	EntryDeleted        EventType = "entry.deleted"
	InstallmentRecorded EventType = "installment.recorded"
	PaydownRecorded     EventType = "paydown.recorded"
)

// LedgerEvent is a lightweight notification of a committed write. Consumers
// load the record by ID; deletions carry a snapshot since the row is gone.
type LedgerEvent struct {
	Type      EventType       `json:"type"`
	AccountID int64           `json:"account_id"`
	ID        int64           `json:"id"`
	LoanID    int64           `json:"loan_id,omitempty"`
	Snapshot  *core.CashEntry `json:"snapshot,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewLedgerEvent(typ EventType, accountID, id int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      typ,
		AccountID: accountID,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event and rejects ones missing a type or id.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" || msg.ID == 0 {
		return nil, fmt.Errorf("ledger event missing type or id")
	}
	return &msg, nil
}
