package models

import (
	"time"

	"github.com/CliniqAI/voicecore/pkg/constants"
	"gorm.io/gorm"
)

// TaskStatus task lifecycle status
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusDone      TaskStatus = "done"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskPriority task priority
type TaskPriority string

const (
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Task a staff/doctor work item produced by a completed call flow
type Task struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt *time.Time `json:"-" gorm:"index"`

	CallRef        string       `json:"callRef" gorm:"size:64;index"`
	PatientName    string       `json:"patientName,omitempty" gorm:"size:128"`
	CallbackNumber string       `json:"callbackNumber,omitempty" gorm:"size:32"`
	RequestType    string       `json:"requestType" gorm:"size:64;not null"` // appointment, refill, callback, general
	AssignedRole   string       `json:"assignedRole" gorm:"size:16;default:'staff';index"`
	Priority       TaskPriority `json:"priority" gorm:"size:16;default:'normal'"`
	Slots          SlotMap      `json:"slots" gorm:"type:json"` // collected flow slots
	Details        string       `json:"details,omitempty" gorm:"type:text"`
	Status         TaskStatus   `json:"status" gorm:"size:16;default:'pending';index"`
}

// TableName get tables
func (Task) TableName() string {
	return constants.TABLE_TASKS
}

// CreateTask creates a task record
func CreateTask(db *gorm.DB, task *Task) error {
	return db.Create(task).Error
}

// GetTaskByCallRef fetches the task produced by one call, if any
func GetTaskByCallRef(db *gorm.DB, callRef string) (*Task, error) {
	var task Task
	err := db.Where("call_ref = ?", callRef).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetPendingTasksByRole lists pending tasks for a role
func GetPendingTasksByRole(db *gorm.DB, role string, limit int) ([]Task, error) {
	var tasks []Task
	query := db.Where("assigned_role = ? AND status = ?", role, TaskStatusPending).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&tasks).Error
	return tasks, err
}

// UpdateTask updates a task record
func UpdateTask(db *gorm.DB, task *Task) error {
	return db.Save(task).Error
}
