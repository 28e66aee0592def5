package models

import (
	"time"

	"github.com/CliniqAI/voicecore/pkg/constants"
	"gorm.io/gorm"
)

// Notification an in-app alert row shown on the staff/doctor dashboard
type Notification struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`

	Role         string `json:"role" gorm:"size:16;index;not null"` // staff or doctor
	Title        string `json:"title" gorm:"size:128;not null"`
	Message      string `json:"message" gorm:"type:text"`
	Kind         string `json:"kind" gorm:"size:16;default:'info'"` // info, task, escalation
	IsUrgent     bool   `json:"isUrgent" gorm:"default:false"`
	CallRef      string `json:"callRef,omitempty" gorm:"size:64;index"`
	TaskID       *uint  `json:"taskId,omitempty"`
	EscalationID *uint  `json:"escalationId,omitempty"`
	ReadAt       *time.Time `json:"readAt,omitempty"`
}

// TableName get tables
func (Notification) TableName() string {
	return constants.TABLE_NOTIFICATIONS
}

// CreateNotification creates a notification record
func CreateNotification(db *gorm.DB, notification *Notification) error {
	return db.Create(notification).Error
}

// GetUnreadNotificationsByRole lists unread notifications for a role
func GetUnreadNotificationsByRole(db *gorm.DB, role string, limit int) ([]Notification, error) {
	var notifications []Notification
	query := db.Where("role = ? AND read_at IS NULL", role).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&notifications).Error
	return notifications, err
}
