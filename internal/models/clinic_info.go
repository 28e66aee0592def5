package models

import (
	"time"

	"github.com/CliniqAI/voicecore/pkg/constants"
	"gorm.io/gorm"
)

// ClinicInfo one topic the assistant can answer directly (hours, address,
// insurance...), editable by staff without a deploy
type ClinicInfo struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	Topic    string `json:"topic" gorm:"size:64;uniqueIndex;not null"` // hours, location, insurance...
	Keywords string `json:"keywords" gorm:"size:256"`                  // comma separated match terms
	Answer   string `json:"answer" gorm:"type:text;not null"`
	Enabled  bool   `json:"enabled" gorm:"default:true"`
}

// TableName get tables
func (ClinicInfo) TableName() string {
	return constants.TABLE_CLINIC_INFO
}

// CreateClinicInfo creates an answer entry
func CreateClinicInfo(db *gorm.DB, info *ClinicInfo) error {
	return db.Create(info).Error
}

// GetEnabledClinicInfo lists all enabled answer entries
func GetEnabledClinicInfo(db *gorm.DB) ([]ClinicInfo, error) {
	var entries []ClinicInfo
	err := db.Where("enabled = ?", true).Find(&entries).Error
	return entries, err
}

// GetClinicInfoByTopic fetches one answer entry by topic
func GetClinicInfoByTopic(db *gorm.DB, topic string) (*ClinicInfo, error) {
	var info ClinicInfo
	err := db.Where("topic = ?", topic).First(&info).Error
	if err != nil {
		return nil, err
	}
	return &info, nil
}
