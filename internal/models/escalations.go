package models

import (
	"time"

	"github.com/CliniqAI/voicecore/pkg/constants"
	"gorm.io/gorm"
)

// Escalation a record of a call handed off to a human
type Escalation struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt *time.Time `json:"-" gorm:"index"`

	CallRef    string      `json:"callRef" gorm:"size:64;index;not null"`
	Reason     string      `json:"reason" gorm:"size:64;not null"` // closed reason-code set
	Severity   string      `json:"severity" gorm:"size:16;default:'standard'"`
	Transcript TurnHistory `json:"transcript" gorm:"type:json"` // full turn history at escalation time
	Details    string      `json:"details,omitempty" gorm:"type:text"`
}

// TableName get tables
func (Escalation) TableName() string {
	return constants.TABLE_ESCALATIONS
}

// CreateEscalation creates an escalation record
func CreateEscalation(db *gorm.DB, escalation *Escalation) error {
	return db.Create(escalation).Error
}

// GetEscalationByCallRef fetches the escalation produced by one call, if any
func GetEscalationByCallRef(db *gorm.DB, callRef string) (*Escalation, error) {
	var escalation Escalation
	err := db.Where("call_ref = ?", callRef).First(&escalation).Error
	if err != nil {
		return nil, err
	}
	return &escalation, nil
}

// GetRecentEscalations lists the most recent escalation records
func GetRecentEscalations(db *gorm.DB, limit int) ([]Escalation, error) {
	var escalations []Escalation
	query := db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&escalations).Error
	return escalations, err
}
