package models

import (
	"time"

	"github.com/CliniqAI/voicecore/pkg/constants"
	"gorm.io/gorm"
)

// SessionState dialogue machine state, persisted with the session snapshot
type SessionState string

const (
	SessionStateGreeting        SessionState = "GREETING"
	SessionStateIntentSelection SessionState = "INTENT_SELECTION"
	SessionStateSlotCollection  SessionState = "SLOT_COLLECTION"
	SessionStateConfirmation    SessionState = "CONFIRMATION"
	SessionStateCompleted       SessionState = "COMPLETED"
	SessionStateEscalated       SessionState = "ESCALATED"
	SessionStateFailed          SessionState = "FAILED"
)

// CallSession a persisted snapshot of one in-memory dialogue session.
// The in-memory session is the source of truth while the call is live; the
// row exists so a restart does not silently lose escalations in flight.
type CallSession struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt *time.Time `json:"-" gorm:"index"`

	SessionID string       `json:"sessionId" gorm:"type:varchar(64);uniqueIndex;not null"`
	CallRef   string       `json:"callRef" gorm:"size:64;index;not null"`
	State     SessionState `json:"state" gorm:"size:24;default:'GREETING';index"`
	Flow      string       `json:"flow,omitempty" gorm:"size:24"` // locked flow kind, empty before intent selection

	CallerNumber string `json:"callerNumber,omitempty" gorm:"size:32"`

	TurnCount         int `json:"turnCount" gorm:"default:0"`
	UnrecognizedTurns int `json:"unrecognizedTurns" gorm:"default:0"`

	Slots        SlotMap     `json:"slots" gorm:"type:json"`
	Conversation TurnHistory `json:"conversation" gorm:"type:json"`

	EscalationReason   string `json:"escalationReason,omitempty" gorm:"size:64"`
	EscalationSeverity string `json:"escalationSeverity,omitempty" gorm:"size:16"`

	StartTime    time.Time  `json:"startTime"`
	LastActivity time.Time  `json:"lastActivity"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Duration     int        `json:"duration" gorm:"default:0"` // seconds
}

// TableName get tables
func (CallSession) TableName() string {
	return constants.TABLE_CALL_SESSIONS
}

// CreateCallSession creates a session snapshot
func CreateCallSession(db *gorm.DB, session *CallSession) error {
	return db.Create(session).Error
}

// GetCallSessionByCallRef fetches a session snapshot by call reference
func GetCallSessionByCallRef(db *gorm.DB, callRef string) (*CallSession, error) {
	var session CallSession
	err := db.Where("call_ref = ?", callRef).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateCallSession updates a session snapshot
func UpdateCallSession(db *gorm.DB, session *CallSession) error {
	return db.Save(session).Error
}

// IsTerminal reports whether the session reached a terminal state.
func (s *CallSession) IsTerminal() bool {
	return s.State == SessionStateCompleted || s.State == SessionStateEscalated || s.State == SessionStateFailed
}

// MarkTerminal stamps a terminal state and the end time.
func (s *CallSession) MarkTerminal(db *gorm.DB, state SessionState) error {
	now := time.Now()
	s.State = state
	s.EndTime = &now
	s.Duration = int(now.Sub(s.StartTime).Seconds())
	return db.Save(s).Error
}
