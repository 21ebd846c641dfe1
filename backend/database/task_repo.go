package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andi/docconvert/backend/models"
)

// TaskRepo handles conversion task database operations
type TaskRepo struct {
	db *DB
}

// NewTaskRepo creates a new task repository
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// Create creates a new task
func (r *TaskRepo) Create(task *models.ConversionTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	model := FromTask(task)
	if err := r.db.conn.Create(model).Error; err != nil {
		return err
	}

	*task = *model.ToTask()
	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepo) GetByID(id string) (*models.ConversionTask, error) {
	var model TaskModel
	if err := r.db.conn.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, fmt.Errorf("task not found")
	}
	return model.ToTask(), nil
}

// Update updates a task
func (r *TaskRepo) Update(task *models.ConversionTask) error {
	model := FromTask(task)
	result := r.db.conn.Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task not found")
	}
	*task = *model.ToTask()
	return nil
}

// Delete deletes a task. Deleting an unknown id is a no-op.
func (r *TaskRepo) Delete(id string) error {
	return r.db.conn.Delete(&TaskModel{}, "id = ?", id).Error
}

// GetPendingTasks retrieves pending tasks, oldest first
func (r *TaskRepo) GetPendingTasks(limit int) ([]*models.ConversionTask, error) {
	var modelList []TaskModel
	err := r.db.conn.Where("status = ?", models.TaskStatusPending).
		Order("created_at").
		Limit(limit).
		Find(&modelList).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.ConversionTask, len(modelList))
	for i, model := range modelList {
		tasks[i] = model.ToTask()
	}
	return tasks, nil
}

// Claim atomically transitions a pending task to processing and records the
// initial progress checkpoint. The conditional update doubles as the
// concurrency guard: of two dispatchers racing on the same task, only one
// sees RowsAffected == 1. Returns false when the task was already claimed,
// terminal, or unknown.
func (r *TaskRepo) Claim(id string, progress int) (bool, error) {
	now := time.Now()
	result := r.db.conn.Model(&TaskModel{}).
		Where("id = ? AND status = ?", id, models.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":     models.TaskStatusProcessing,
			"progress":   progress,
			"started_at": &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateProgress bumps the progress of a running task
func (r *TaskRepo) UpdateProgress(id string, progress int) error {
	result := r.db.conn.Model(&TaskModel{}).
		Where("id = ?", id).
		Update("progress", progress)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task not found")
	}
	return nil
}

// MarkDone records a successful conversion: result path set, progress 100,
// error cleared.
func (r *TaskRepo) MarkDone(id, resultFilePath string) error {
	now := time.Now()
	return r.db.conn.Model(&TaskModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.TaskStatusDone,
			"progress":         100,
			"result_file_path": resultFilePath,
			"error_message":    "",
			"completed_at":     &now,
		}).Error
}

// MarkFailed records a failed conversion attempt with its diagnostic message.
func (r *TaskRepo) MarkFailed(id, errorMessage string) error {
	now := time.Now()
	return r.db.conn.Model(&TaskModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.TaskStatusFailed,
			"progress":      0,
			"error_message": errorMessage,
			"completed_at":  &now,
		}).Error
}

// ListDone retrieves finished tasks ordered by most recently updated
func (r *TaskRepo) ListDone(limit, offset int) ([]*models.ConversionTask, error) {
	var modelList []TaskModel
	err := r.db.conn.Where("status = ?", models.TaskStatusDone).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&modelList).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.ConversionTask, len(modelList))
	for i, model := range modelList {
		tasks[i] = model.ToTask()
	}
	return tasks, nil
}

// CountDone counts finished tasks
func (r *TaskRepo) CountDone() (int, error) {
	var count int64
	err := r.db.conn.Model(&TaskModel{}).
		Where("status = ?", models.TaskStatusDone).
		Count(&count).Error
	return int(count), err
}

// FailStale marks tasks left in processing by a previous run as failed.
// They are not returned to pending: status transitions are forward-only,
// and the interrupted attempt already consumed the single allowed try.
func (r *TaskRepo) FailStale() (int, error) {
	now := time.Now()
	result := r.db.conn.Model(&TaskModel{}).
		Where("status = ?", models.TaskStatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.TaskStatusFailed,
			"progress":      0,
			"error_message": "conversion interrupted by restart",
			"completed_at":  &now,
		})
	return int(result.RowsAffected), result.Error
}
