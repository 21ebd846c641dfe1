package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/andi/docconvert/backend/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_docconvert.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createPending(t *testing.T, repo *TaskRepo) *models.ConversionTask {
	t.Helper()

	task := &models.ConversionTask{
		Status:           models.TaskStatusPending,
		OutputFormat:     "docx",
		OriginalFilename: "report.md",
	}
	if err := repo.Create(task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	return task
}

func TestTaskCRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)

	task := createPending(t, repo)

	if task.ID == "" {
		t.Error("Task ID should be set after creation")
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected status 'pending', got '%s'", task.Status)
	}

	// Read
	retrieved, err := repo.GetByID(task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if retrieved.OutputFormat != "docx" {
		t.Errorf("Expected output format 'docx', got '%s'", retrieved.OutputFormat)
	}
	if retrieved.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", retrieved.Progress)
	}

	// Update
	retrieved.OriginalFilename = "renamed.md"
	if err := repo.Update(retrieved); err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}
	updated, err := repo.GetByID(task.ID)
	if err != nil {
		t.Fatalf("Failed to get updated task: %v", err)
	}
	if updated.OriginalFilename != "renamed.md" {
		t.Errorf("Expected filename 'renamed.md', got '%s'", updated.OriginalFilename)
	}

	// Delete
	if err := repo.Delete(task.ID); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}
	if _, err := repo.GetByID(task.ID); err == nil {
		t.Error("Expected error when getting deleted task")
	}

	// Deleting an unknown id is a no-op
	if err := repo.Delete("no-such-task"); err != nil {
		t.Errorf("Deleting unknown task should not error: %v", err)
	}
}

func TestClaim(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)

	task := createPending(t, repo)

	claimed, err := repo.Claim(task.ID, 20)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("Expected first claim to succeed")
	}

	after, err := repo.GetByID(task.ID)
	if err != nil {
		t.Fatalf("Failed to get claimed task: %v", err)
	}
	if after.Status != models.TaskStatusProcessing {
		t.Errorf("Expected status 'processing', got '%s'", after.Status)
	}
	if after.Progress != 20 {
		t.Errorf("Expected progress 20, got %d", after.Progress)
	}
	if after.StartedAt == nil {
		t.Error("Expected StartedAt to be set on claim")
	}

	// Second claim must lose
	claimed, err = repo.Claim(task.ID, 20)
	if err != nil {
		t.Fatalf("Second claim errored: %v", err)
	}
	if claimed {
		t.Error("Expected second claim to be rejected")
	}

	// Claiming an unknown task fails quietly
	claimed, err = repo.Claim("no-such-task", 20)
	if err != nil {
		t.Fatalf("Claim on unknown task errored: %v", err)
	}
	if claimed {
		t.Error("Expected claim on unknown task to be rejected")
	}
}

func TestClaimTerminalTask(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)

	task := createPending(t, repo)
	if _, err := repo.Claim(task.ID, 20); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := repo.MarkDone(task.ID, "exports/report.docx"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	claimed, err := repo.Claim(task.ID, 20)
	if err != nil {
		t.Fatalf("Claim errored: %v", err)
	}
	if claimed {
		t.Error("Terminal tasks must not be claimable")
	}
}

func TestMarkDoneAndFailedInvariants(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)

	broken := createPending(t, repo)
	if _, err := repo.Claim(broken.ID, 20); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := repo.MarkFailed(broken.ID, "pandoc: parse failure"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	task := createPending(t, repo)
	if _, err := repo.Claim(task.ID, 20); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := repo.MarkDone(task.ID, "exports/report.docx"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	got, err := repo.GetByID(task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if got.Status != models.TaskStatusDone {
		t.Errorf("Expected status 'done', got '%s'", got.Status)
	}
	if got.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", got.Progress)
	}
	if got.ResultFilePath != "exports/report.docx" {
		t.Errorf("Expected result path set, got '%s'", got.ResultFilePath)
	}
	if got.ErrorMessage != "" {
		t.Errorf("Done task must have no error message, got '%s'", got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}

	failed, err := repo.GetByID(broken.ID)
	if err != nil {
		t.Fatalf("Failed to get failed task: %v", err)
	}
	if failed.Status != models.TaskStatusFailed {
		t.Errorf("Expected status 'failed', got '%s'", failed.Status)
	}
	if failed.Progress != 0 {
		t.Errorf("Failed task progress must reset to 0, got %d", failed.Progress)
	}
	if failed.ErrorMessage == "" {
		t.Error("Failed task must carry an error message")
	}
	if failed.ResultFilePath != "" {
		t.Errorf("Failed task must have no result path, got '%s'", failed.ResultFilePath)
	}
}

func TestGetPendingTasksOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)

	first := createPending(t, repo)
	time.Sleep(10 * time.Millisecond)
	second := createPending(t, repo)

	pending, err := repo.GetPendingTasks(10)
	if err != nil {
		t.Fatalf("Failed to get pending tasks: %v", err)
	}

	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending tasks, got %d", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Error("Pending tasks must be ordered oldest first")
	}

	// Claimed tasks drop out of the pending scan
	if _, err := repo.Claim(first.ID, 20); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	pending, err = repo.GetPendingTasks(10)
	if err != nil {
		t.Fatalf("Failed to get pending tasks: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Error("Claimed task must not appear in pending scan")
	}
}

func TestListDone(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)

	var ids []string
	for i := 0; i < 3; i++ {
		task := createPending(t, repo)
		if _, err := repo.Claim(task.ID, 20); err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if err := repo.MarkDone(task.ID, "exports/out.docx"); err != nil {
			t.Fatalf("MarkDone failed: %v", err)
		}
		ids = append(ids, task.ID)
		time.Sleep(10 * time.Millisecond)
	}
	// One pending task that must not be listed
	createPending(t, repo)

	done, err := repo.ListDone(10, 0)
	if err != nil {
		t.Fatalf("ListDone failed: %v", err)
	}
	if len(done) != 3 {
		t.Fatalf("Expected 3 done tasks, got %d", len(done))
	}
	// Most recently updated first
	if done[0].ID != ids[2] {
		t.Errorf("Expected most recently updated task first, got %s", done[0].ID)
	}

	count, err := repo.CountDone()
	if err != nil {
		t.Fatalf("CountDone failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}

	// Pagination
	page, err := repo.ListDone(2, 2)
	if err != nil {
		t.Fatalf("ListDone with offset failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("Expected 1 task on second page, got %d", len(page))
	}
}

func TestFailStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)

	stale := createPending(t, repo)
	if _, err := repo.Claim(stale.ID, 20); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	untouched := createPending(t, repo)

	count, err := repo.FailStale()
	if err != nil {
		t.Fatalf("FailStale failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stale task, got %d", count)
	}

	got, err := repo.GetByID(stale.ID)
	if err != nil {
		t.Fatalf("Failed to get stale task: %v", err)
	}
	if got.Status != models.TaskStatusFailed {
		t.Errorf("Expected stale task failed, got '%s'", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("Stale task must carry an error message")
	}

	still, err := repo.GetByID(untouched.ID)
	if err != nil {
		t.Fatalf("Failed to get pending task: %v", err)
	}
	if still.Status != models.TaskStatusPending {
		t.Errorf("Pending task must be untouched, got '%s'", still.Status)
	}
}
