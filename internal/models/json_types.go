package models

import (
	"database/sql/driver"
	"time"

	"github.com/bytedance/sonic"
)

// SlotMap collected slot values, stored as a JSON column
type SlotMap map[string]string

// Value implements driver.Valuer
func (sm SlotMap) Value() (driver.Value, error) {
	if len(sm) == 0 {
		return nil, nil
	}
	return sonic.Marshal(sm)
}

// Scan implements sql.Scanner
func (sm *SlotMap) Scan(value interface{}) error {
	if value == nil {
		*sm = make(SlotMap)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok || len(bytes) == 0 {
		*sm = make(SlotMap)
		return nil
	}
	return sonic.Unmarshal(bytes, sm)
}

// TurnHistory ordered turn records for one call, stored as a JSON column
type TurnHistory []TurnMessage

// TurnMessage one side of one dialogue turn
type TurnMessage struct {
	Role       string    `json:"role"` // "caller" or "assistant"
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence,omitempty"`
	State      string    `json:"state,omitempty"` // machine state when the message was handled
	Timestamp  time.Time `json:"timestamp"`
}

// Value implements driver.Valuer
func (th TurnHistory) Value() (driver.Value, error) {
	if len(th) == 0 {
		return nil, nil
	}
	return sonic.Marshal(th)
}

// Scan implements sql.Scanner
func (th *TurnHistory) Scan(value interface{}) error {
	if value == nil {
		*th = make(TurnHistory, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok || len(bytes) == 0 {
		*th = make(TurnHistory, 0)
		return nil
	}
	return sonic.Unmarshal(bytes, th)
}
