package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity names carried by change events.
const (
	EntityCategory = "category"
	EntityExpense  = "expense"
)

// Operations carried by change events.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeEvent announces a committed write. It carries only the record id;
// consumers reload whatever they need from the store.
type ChangeEvent struct {
	ID        uuid.UUID `json:"id"`
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	RecordID  int64     `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeEvent stamps a fresh event id and time.
func NewChangeEvent(entity, op string, recordID int64) ChangeEvent {
	return ChangeEvent{
		ID:        uuid.New(),
		Entity:    entity,
		Op:        op,
		RecordID:  recordID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Validate rejects events a consumer cannot act on.
func (e ChangeEvent) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("missing event id")
	}
	switch e.Entity {
	case EntityCategory, EntityExpense:
	default:
		return fmt.Errorf("unknown entity %q", e.Entity)
	}
	switch e.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("unknown op %q", e.Op)
	}
	if e.RecordID <= 0 {
		return fmt.Errorf("invalid record id %d", e.RecordID)
	}
	return nil
}

// ChangeEventFromJSON decodes and validates an event body.
func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return ChangeEvent{}, fmt.Errorf("invalid change event: %w", err)
	}
	return e, nil
}
