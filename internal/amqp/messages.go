package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record kinds carried by RecordEvent.
const (
	KindExpense     = "expense"
	KindIncome      = "income"
	KindBudget      = "budget"
	KindSavingsGoal = "savings_goal"
)

// Record actions carried by RecordEvent.
const (
	ActionCreated     = "created"
	ActionUpdated     = "updated"
	ActionDeleted     = "deleted"
	ActionContributed = "contributed"
)

// RecordEvent announces a change to one user's record. It carries ids only;
// consumers read the current state from the store.
type RecordEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Action    string    `json:"action"`
	UserID    int64     `json:"user_id"`
	RecordID  int64     `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordEvent creates an event with a fresh message id.
func NewRecordEvent(kind, action string, userID, recordID int64) *RecordEvent {
	return &RecordEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Action:    action,
		UserID:    userID,
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON creates a message from JSON bytes
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
