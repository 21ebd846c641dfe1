package database

import (
	"time"

	"github.com/andi/docconvert/backend/models"
)

// TaskModel is the persistence shape of a conversion task.
type TaskModel struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index"`
	Progress         int        `gorm:"not null;default:0"`
	OutputFormat     string     `gorm:"type:varchar(20);not null"`
	OriginalFilename string     `gorm:"type:varchar(255)"`
	ResultFilePath   string     `gorm:"type:varchar(1024)"`
	ErrorMessage     string     `gorm:"type:text"`
	StartedAt        *time.Time `gorm:""`
	CompletedAt      *time.Time `gorm:""`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime;index"`
}

// TableName sets the table name for TaskModel
func (TaskModel) TableName() string {
	return "conversion_tasks"
}

// ToTask converts TaskModel to models.ConversionTask
func (m *TaskModel) ToTask() *models.ConversionTask {
	return &models.ConversionTask{
		ID:               m.ID,
		Status:           m.Status,
		Progress:         m.Progress,
		OutputFormat:     m.OutputFormat,
		OriginalFilename: m.OriginalFilename,
		ResultFilePath:   m.ResultFilePath,
		ErrorMessage:     m.ErrorMessage,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromTask converts models.ConversionTask to TaskModel
func FromTask(t *models.ConversionTask) *TaskModel {
	return &TaskModel{
		ID:               t.ID,
		Status:           t.Status,
		Progress:         t.Progress,
		OutputFormat:     t.OutputFormat,
		OriginalFilename: t.OriginalFilename,
		ResultFilePath:   t.ResultFilePath,
		ErrorMessage:     t.ErrorMessage,
		StartedAt:        t.StartedAt,
		CompletedAt:      t.CompletedAt,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}
