package executor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/andi/docconvert/backend/converter"
	"github.com/andi/docconvert/backend/database"
	"github.com/andi/docconvert/backend/formats"
	"github.com/andi/docconvert/backend/storage"
)

// Progress checkpoints persisted during an attempt. The converter reports
// no progress of its own, so these two waypoints are all a poller sees
// between accepted and terminal.
const (
	progressClaimed  = 20 // task claimed, attempt started
	progressResolved = 40 // input located, pandoc about to run
)

// Executor runs a single conversion attempt per task: claim, resolve the
// input, invoke pandoc, record the terminal state. Every failure mode ends
// in a failed task record, never in an error escaping to the dispatcher.
type Executor struct {
	taskRepo *database.TaskRepo
	store    *storage.Storage
	conv     *converter.Converter
}

// New creates a new executor
func New(db *database.DB, store *storage.Storage, conv *converter.Converter) *Executor {
	return &Executor{
		taskRepo: database.NewTaskRepo(db),
		store:    store,
		conv:     conv,
	}
}

// Execute performs one conversion attempt for the given task. It is safe to
// call from concurrent dispatchers: the claim step admits exactly one
// caller, all others return immediately.
func (e *Executor) Execute(ctx context.Context, taskID string) {
	claimed, err := e.taskRepo.Claim(taskID, progressClaimed)
	if err != nil {
		log.Printf("Error claiming task %s: %v", taskID, err)
		return
	}
	if !claimed {
		log.Printf("Task %s already claimed or terminal, skipping", taskID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic while executing task %s: %v", taskID, r)
			e.fail(taskID, fmt.Sprintf("unexpected fault: %v", r))
		}
	}()

	if err := e.run(ctx, taskID); err != nil {
		e.fail(taskID, err.Error())
	}
}

// run performs the claimed attempt; any returned error becomes the task's
// failure diagnostic.
func (e *Executor) run(ctx context.Context, taskID string) error {
	task, err := e.taskRepo.GetByID(taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %v", err)
	}

	inputPath := e.store.FindInput(task.ID)
	inputExt := strings.TrimPrefix(filepath.Ext(inputPath), ".")
	reader := formats.ReaderFor(inputExt)

	outputFormat := strings.ToLower(strings.TrimPrefix(task.OutputFormat, "."))
	if outputFormat == "" {
		outputFormat = formats.DefaultOutput
	}
	outputPath := e.store.OutputPath(task)

	if err := e.taskRepo.UpdateProgress(task.ID, progressResolved); err != nil {
		return fmt.Errorf("failed to update progress: %v", err)
	}

	log.Printf("Converting task %s: %s -> %s (%s -> %s)", task.ID, inputPath, outputPath, reader, outputFormat)

	res, err := e.conv.Convert(ctx, inputPath, outputPath, reader, outputFormat)
	if err != nil {
		return err
	}

	// Success requires both a zero exit and a physically present output:
	// pandoc can exit zero without producing a file on some malformed
	// inputs.
	if res.ExitCode == 0 && fileExists(outputPath) {
		if err := e.taskRepo.MarkDone(task.ID, e.store.RelPath(outputPath)); err != nil {
			return fmt.Errorf("failed to record result: %v", err)
		}
		log.Printf("Task %s done: %s", task.ID, outputPath)
		return nil
	}

	return fmt.Errorf("%s", res.Diagnostic())
}

func (e *Executor) fail(taskID, message string) {
	if err := e.taskRepo.MarkFailed(taskID, message); err != nil {
		log.Printf("Error marking task %s failed: %v", taskID, err)
		return
	}
	log.Printf("Task %s failed: %s", taskID, message)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
