package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/andi/docconvert/backend/database"
	"github.com/andi/docconvert/backend/executor"
)

// Scheduler dispatches pending conversion tasks to the executor. It offers
// two triggers over the same claim contract: Dispatch fires one task
// immediately after submission, and the polling loop sweeps the store for
// anything pending (dropped inbox files, tasks submitted while the process
// was down). The executor's claim step keeps the two from ever running the
// same task twice.
type Scheduler struct {
	taskRepo     *database.TaskRepo
	executor     *executor.Executor
	maxRunning   int
	scanInterval time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	stopped      bool
	runningCount int
}

// New creates a new scheduler
func New(db *database.DB, exec *executor.Executor, maxRunning int, scanInterval time.Duration) *Scheduler {
	if maxRunning <= 0 {
		maxRunning = 2
	}
	if scanInterval <= 0 {
		scanInterval = 5 * time.Second
	}

	return &Scheduler{
		taskRepo:     database.NewTaskRepo(db),
		executor:     exec,
		maxRunning:   maxRunning,
		scanInterval: scanInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start starts the polling loop
func (s *Scheduler) Start() {
	log.Printf("Starting scheduler with max %d concurrent conversions, scan interval: %v", s.maxRunning, s.scanInterval)

	s.wg.Add(1)
	go s.run()
}

// Stop stops the scheduler and waits for running conversions to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	log.Println("Stopping scheduler...")
	close(s.stopChan)
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// Dispatch launches execution of a newly created task without blocking the
// caller. Submission handlers call this right after the task record is
// durably persisted; there is no implicit create-time side effect.
func (s *Scheduler) Dispatch(taskID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executor.Execute(context.Background(), taskID)
	}()
}

// RunOnce drains all currently pending tasks and returns, for batch or
// cron-style invocation. Tasks are processed in creation order.
func (s *Scheduler) RunOnce() error {
	for {
		tasks, err := s.taskRepo.GetPendingTasks(s.maxRunning)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		for _, task := range tasks {
			s.executor.Execute(context.Background(), task.ID)
		}
	}
}

// run is the main polling loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	// Initial scan on startup
	s.scanAndExecute()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.scanAndExecute()
		}
	}
}

// scanAndExecute claims and runs pending tasks, oldest first, up to the
// available slots
func (s *Scheduler) scanAndExecute() {
	s.mu.Lock()
	availableSlots := s.maxRunning - s.runningCount
	s.mu.Unlock()

	if availableSlots <= 0 {
		return
	}

	tasks, err := s.taskRepo.GetPendingTasks(availableSlots)
	if err != nil {
		log.Printf("Error getting pending tasks: %v", err)
		return
	}

	if len(tasks) == 0 {
		return
	}

	log.Printf("Found %d pending task(s), %d slot(s) available", len(tasks), availableSlots)

	for _, task := range tasks {
		s.mu.Lock()
		if s.runningCount >= s.maxRunning {
			s.mu.Unlock()
			break
		}
		s.runningCount++
		s.mu.Unlock()

		s.executeTask(task.ID)
	}
}

// executeTask runs a single task in its own goroutine
func (s *Scheduler) executeTask(taskID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.runningCount--
			s.mu.Unlock()
		}()

		s.executor.Execute(context.Background(), taskID)
	}()
}

// GetRunningCount returns the current number of running conversions
func (s *Scheduler) GetRunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningCount
}
