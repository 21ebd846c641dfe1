package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/andi/docconvert/backend/database"
	"github.com/andi/docconvert/backend/formats"
	"github.com/andi/docconvert/backend/models"
	"github.com/andi/docconvert/backend/storage"
)

// Dispatcher triggers background execution of a newly persisted task.
type Dispatcher interface {
	Dispatch(taskID string)
}

// Watcher monitors an inbox directory and submits dropped files as
// conversion tasks targeting the default output format for their type.
// Files are moved into the uploads area under the task id, so the inbox
// stays empty and names never collide.
type Watcher struct {
	taskRepo   *database.TaskRepo
	store      *storage.Storage
	dispatcher Dispatcher
	inboxDir   string
	watcher    *fsnotify.Watcher
	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	stopped    bool

	// Debounce map to avoid submitting a file still being written
	debounceMap map[string]*time.Timer
	debounceMu  sync.Mutex
}

// New creates a new inbox watcher
func New(db *database.DB, store *storage.Storage, dispatcher Dispatcher, inboxDir string) (*Watcher, error) {
	if err := os.MkdirAll(inboxDir, 0755); err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		taskRepo:    database.NewTaskRepo(db),
		store:       store,
		dispatcher:  dispatcher,
		inboxDir:    inboxDir,
		watcher:     fsWatcher,
		stopChan:    make(chan struct{}),
		debounceMap: make(map[string]*time.Timer),
	}, nil
}

// Start starts watching the inbox. Files already present are swept first,
// so work dropped while the process was down is not lost.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.inboxDir); err != nil {
		return err
	}

	w.sweep()

	w.wg.Add(1)
	go w.processEvents()

	log.Printf("Inbox watcher started on %s", w.inboxDir)
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	log.Println("Stopping inbox watcher...")
	close(w.stopChan)
	w.watcher.Close()
	w.wg.Wait()
	log.Println("Inbox watcher stopped")
}

// sweep submits any files already sitting in the inbox
func (w *Watcher) sweep() {
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		log.Printf("Error reading inbox: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.submitFile(filepath.Join(w.inboxDir, entry.Name()))
	}
}

// processEvents processes file system events
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create || event.Op&fsnotify.Write == fsnotify.Write {
				w.handleFileEvent(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// handleFileEvent debounces rapid events for the same file before
// submitting it
func (w *Watcher) handleFileEvent(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceMap[path]; exists {
		timer.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(500*time.Millisecond, func() {
		w.submitFile(path)
		w.debounceMu.Lock()
		delete(w.debounceMap, path)
		w.debounceMu.Unlock()
	})
}

// submitFile creates a pending task for an inbox file and moves the file
// into the uploads area
func (w *Watcher) submitFile(path string) {
	name := filepath.Base(path)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		ext = "md"
	}

	outputs := formats.AllowedOutputs(ext)

	task := &models.ConversionTask{
		Status:           models.TaskStatusPending,
		Progress:         0,
		OutputFormat:     outputs[0],
		OriginalFilename: name,
	}
	if err := w.taskRepo.Create(task); err != nil {
		log.Printf("Error creating task for inbox file %s: %v", name, err)
		return
	}

	dest := w.store.InputPath(task.ID, ext)
	if err := os.Rename(path, dest); err != nil {
		log.Printf("Error moving inbox file %s: %v", name, err)
		w.taskRepo.Delete(task.ID)
		return
	}

	log.Printf("Inbox file submitted: %s -> task %s (%s)", name, task.ID, task.OutputFormat)
	w.dispatcher.Dispatch(task.ID)
}
