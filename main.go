package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/andi/docconvert/backend/api"
	"github.com/andi/docconvert/backend/config"
	"github.com/andi/docconvert/backend/converter"
	"github.com/andi/docconvert/backend/database"
	"github.com/andi/docconvert/backend/executor"
	"github.com/andi/docconvert/backend/scheduler"
	"github.com/andi/docconvert/backend/storage"
	"github.com/andi/docconvert/backend/watcher"
)

func main() {
	once := flag.Bool("once", false, "Drain pending conversions once and exit (cron mode)")
	workerOnly := flag.Bool("worker", false, "Run the polling scheduler without the HTTP server")
	flag.Parse()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	if err := os.MkdirAll(cfg.Logging.Dir, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logFile, err := os.OpenFile(cfg.Logging.AppLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	log.Println("=== docconvert starting ===")

	// Initialize database
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Println("Database initialized")

	// Tasks left in processing by a previous run consumed their single
	// attempt; mark them failed rather than re-pending them.
	taskRepo := database.NewTaskRepo(db)
	staleCount, err := taskRepo.FailStale()
	if err != nil {
		log.Printf("Warning: Failed to fail stale tasks: %v", err)
	} else if staleCount > 0 {
		log.Printf("Marked %d interrupted task(s) as failed", staleCount)
	}

	// Initialize storage (creates uploads/ and exports/)
	store, err := storage.New(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage root: %s", store.Root())

	conv := converter.New(cfg.Converter.PandocBin, cfg.Converter.Timeout)
	exec := executor.New(db, store, conv)

	sched := scheduler.New(db, exec, cfg.Scheduler.MaxRunning, cfg.Scheduler.ScanInterval)

	if *once {
		log.Println("Running in drain-once mode")
		if err := sched.RunOnce(); err != nil {
			log.Fatalf("Drain failed: %v", err)
		}
		log.Println("No pending tasks remain, exiting")
		return
	}

	sched.Start()
	defer sched.Stop()
	log.Println("Scheduler started")

	// Optional inbox hot folder
	var watch *watcher.Watcher
	if cfg.Storage.InboxDir != "" {
		watch, err = watcher.New(db, store, sched, cfg.Storage.InboxDir)
		if err != nil {
			log.Fatalf("Failed to initialize inbox watcher: %v", err)
		}
		if err := watch.Start(); err != nil {
			log.Fatalf("Failed to start inbox watcher: %v", err)
		}
		defer watch.Stop()
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	if *workerOnly {
		log.Println("Running in worker-only mode")
		sig := <-quit
		log.Printf("Received signal: %v, shutting down", sig)
		return
	}

	// Initialize API server
	server := api.New(db, sched, store, cfg.Logging.Dir, "./frontend/templates")
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("docconvert is running on http://%s\n", addr)
		if err := server.Start(addr); err != nil {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)
	case sig := <-quit:
		log.Printf("Received signal: %v", sig)
		log.Println("Shutting down gracefully...")

		if err := server.Shutdown(); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
		if watch != nil {
			watch.Stop()
		}
		sched.Stop()
		log.Println("Shutdown complete")
	}
}
