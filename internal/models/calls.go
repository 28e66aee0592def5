package models

import (
	"time"

	"github.com/CliniqAI/voicecore/pkg/constants"
	"gorm.io/gorm"
)

// CallStatus call record status
type CallStatus string

const (
	CallStatusConnected CallStatus = "connected"
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
	CallStatusEscalated CallStatus = "escalated"
	CallStatusFailed    CallStatus = "failed"
)

// Call one telephone call as reported by the transport collaborator
type Call struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt  *time.Time `json:"-" gorm:"index"`
	CallRef    string     `json:"callRef" gorm:"size:64;uniqueIndex;not null"` // transport call reference (Twilio CallSid)
	FromNumber string     `json:"fromNumber,omitempty" gorm:"size:32"`
	ToNumber   string     `json:"toNumber,omitempty" gorm:"size:32"`
	Status     CallStatus `json:"status" gorm:"size:32;index"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Duration   int        `json:"duration" gorm:"default:0"` // seconds
}

// TableName get tables
func (Call) TableName() string {
	return constants.TABLE_CALLS
}

// Transcript one recognized utterance within a call
type Transcript struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"createdAt" gorm:"autoCreateTime"`
	CallRef    string    `json:"callRef" gorm:"size:64;index;not null"`
	Text       string    `json:"text" gorm:"type:text"`
	Confidence float32   `json:"confidence" gorm:"default:0"` // 0-1
}

// TableName get tables
func (Transcript) TableName() string {
	return constants.TABLE_TRANSCRIPTS
}

// CreateCall creates a call record
func CreateCall(db *gorm.DB, call *Call) error {
	return db.Create(call).Error
}

// GetCallByRef fetches a call record by its transport reference
func GetCallByRef(db *gorm.DB, callRef string) (*Call, error) {
	var call Call
	err := db.Where("call_ref = ?", callRef).First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// UpdateCall updates a call record
func UpdateCall(db *gorm.DB, call *Call) error {
	return db.Save(call).Error
}

// MarkEnded closes the call record with a final status.
func (c *Call) MarkEnded(db *gorm.DB, status CallStatus) error {
	now := time.Now()
	c.Status = status
	c.EndTime = &now
	c.Duration = int(now.Sub(c.StartTime).Seconds())
	return db.Save(c).Error
}

// CreateTranscript creates a transcript record
func CreateTranscript(db *gorm.DB, transcript *Transcript) error {
	return db.Create(transcript).Error
}

// GetTranscriptsByCallRef returns all transcripts for one call
func GetTranscriptsByCallRef(db *gorm.DB, callRef string) ([]Transcript, error) {
	var transcripts []Transcript
	err := db.Where("call_ref = ?", callRef).Order("created_at ASC").Find(&transcripts).Error
	return transcripts, err
}
