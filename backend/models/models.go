package models

import (
	"time"
)

// ConversionTask represents one document conversion request and its lifecycle.
type ConversionTask struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"` // pending, processing, done, failed
	Progress         int        `json:"progress"`
	OutputFormat     string     `json:"output_format"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	ResultFilePath   string     `json:"result_file_path,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TaskStatus constants. Transitions are forward-only:
// pending -> processing -> done|failed. A task never re-enters pending.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusDone       = "done"
	TaskStatusFailed     = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == TaskStatusDone || status == TaskStatusFailed
}
