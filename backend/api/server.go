package api

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/andi/docconvert/backend/database"
	"github.com/andi/docconvert/backend/formats"
	"github.com/andi/docconvert/backend/models"
	"github.com/andi/docconvert/backend/storage"
)

// Dispatcher triggers background execution of a newly persisted task.
type Dispatcher interface {
	Dispatch(taskID string)
}

// Server represents the HTTP API server
type Server struct {
	app        *fiber.App
	taskRepo   *database.TaskRepo
	store      *storage.Storage
	dispatcher Dispatcher
}

// New creates a new API server
func New(db *database.DB, dispatcher Dispatcher, store *storage.Storage, logDir, templatesDir string) *Server {
	engine := html.New(templatesDir, ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: errorHandler,
		BodyLimit:    50 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())

	// Access logs go to a file, not the console
	accessLogPath := filepath.Join(logDir, "access.log")
	accessLogFile, err := os.OpenFile(accessLogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Warning: Failed to open access log file: %v", err)
		app.Use(logger.New(logger.Config{
			Output: io.Discard,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Output: accessLogFile,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	server := &Server{
		app:        app,
		taskRepo:   database.NewTaskRepo(db),
		store:      store,
		dispatcher: dispatcher,
	}

	server.setupRoutes()
	return server
}

// setupRoutes sets up all routes
func (s *Server) setupRoutes() {
	s.app.Get("/", s.renderHome)
	s.app.Post("/submit", s.submit)
	s.app.Get("/status/:id", s.status)
	s.app.Get("/download/:id", s.download)
	s.app.Get("/list", s.list)
	s.app.Post("/delete/:id", s.deleteTask)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	log.Printf("Starting HTTP server on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the JSON success envelope
type SuccessResponse struct {
	Message string `json:"message"`
}

// errorHandler handles fiber errors
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

// ============== Pages ==============

func (s *Server) renderHome(c *fiber.Ctx) error {
	return c.Render("home", fiber.Map{
		"Title": "docconvert",
	})
}

func (s *Server) list(c *fiber.Ctx) error {
	perPage, _ := strconv.Atoi(c.Query("per_page", "10"))
	if perPage != 10 && perPage != 25 && perPage != 50 {
		perPage = 10
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	tasks, err := s.taskRepo.ListDone(perPage, (page-1)*perPage)
	if err != nil {
		return c.Status(500).JSON(ErrorResponse{Error: err.Error()})
	}

	total, err := s.taskRepo.CountDone()
	if err != nil {
		return c.Status(500).JSON(ErrorResponse{Error: err.Error()})
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}

	entries := make([]fiber.Map, len(tasks))
	for i, task := range tasks {
		entries[i] = fiber.Map{
			"TaskID":      task.ID,
			"Filename":    storage.OutputName(task),
			"Format":      task.OutputFormat,
			"UpdatedAt":   task.UpdatedAt.Format("2006-01-02 15:04:05"),
			"DownloadURL": "/download/" + task.ID,
		}
	}

	return c.Render("list", fiber.Map{
		"Title":      "Converted files",
		"Tasks":      entries,
		"Page":       page,
		"PerPage":    perPage,
		"Total":      total,
		"TotalPages": totalPages,
		"HasPrev":    page > 1,
		"HasNext":    page < totalPages,
		"PrevPage":   page - 1,
		"NextPage":   page + 1,
	})
}

// ============== Task handlers ==============

func (s *Server) submit(c *fiber.Ctx) error {
	inputExt := "md"
	originalName := ""

	file, fileErr := c.FormFile("file")
	markdown := c.FormValue("markdown")

	if fileErr != nil && strings.TrimSpace(markdown) == "" {
		return c.Status(400).JSON(ErrorResponse{Error: "No file or markdown provided"})
	}

	if fileErr == nil {
		originalName = file.Filename
		if ext := strings.TrimPrefix(filepath.Ext(file.Filename), "."); ext != "" {
			inputExt = strings.ToLower(ext)
		}
	}

	outputFormat := strings.ToLower(strings.TrimPrefix(c.FormValue("output_format", formats.DefaultOutput), "."))
	if !formats.IsAllowed(inputExt, outputFormat) {
		return c.Status(400).JSON(ErrorResponse{
			Error: fmt.Sprintf("unsupported format '%s' for .%s input; allowed: %s",
				outputFormat, inputExt, strings.Join(formats.AllowedOutputs(inputExt), ", ")),
		})
	}

	task := &models.ConversionTask{
		Status:           models.TaskStatusPending,
		Progress:         0,
		OutputFormat:     outputFormat,
		OriginalFilename: originalName,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return c.Status(500).JSON(ErrorResponse{Error: err.Error()})
	}

	var saveErr error
	if fileErr == nil {
		var src io.ReadCloser
		src, saveErr = file.Open()
		if saveErr == nil {
			defer src.Close()
			_, saveErr = s.store.SaveInput(task.ID, inputExt, src)
		}
	} else {
		_, saveErr = s.store.SaveInput(task.ID, inputExt, strings.NewReader(markdown))
	}
	if saveErr != nil {
		// Remove the record so a task without an input never awaits
		// execution.
		s.taskRepo.Delete(task.ID)
		return c.Status(500).JSON(ErrorResponse{Error: fmt.Sprintf("failed to save input: %v", saveErr)})
	}

	s.dispatcher.Dispatch(task.ID)

	return c.Status(202).JSON(fiber.Map{
		"status":       task.Status,
		"task_id":      task.ID,
		"status_url":   "/status/" + task.ID,
		"download_url": "/download/" + task.ID,
	})
}

func (s *Server) status(c *fiber.Ctx) error {
	id := c.Params("id")

	task, err := s.taskRepo.GetByID(id)
	if err != nil {
		return c.Status(404).JSON(ErrorResponse{Error: "Task not found"})
	}

	payload := fiber.Map{
		"status":            task.Status,
		"task_id":           task.ID,
		"progress":          task.Progress,
		"original_filename": task.OriginalFilename,
		"output_format":     task.OutputFormat,
	}
	if task.Status == models.TaskStatusDone {
		payload["download_url"] = "/download/" + task.ID
	}
	if task.Status == models.TaskStatusFailed {
		payload["error"] = task.ErrorMessage
	}

	return c.JSON(payload)
}

func (s *Server) download(c *fiber.Ctx) error {
	id := c.Params("id")

	task, err := s.taskRepo.GetByID(id)
	if err != nil {
		return c.Status(404).JSON(ErrorResponse{Error: "Task not found"})
	}

	if task.Status != models.TaskStatusDone || task.ResultFilePath == "" {
		return c.Status(404).JSON(ErrorResponse{Error: "Document not found. Conversion may still be pending."})
	}

	path := s.store.AbsPath(task.ResultFilePath)
	if _, err := os.Stat(path); err != nil {
		return c.Status(404).JSON(ErrorResponse{Error: "Result file missing"})
	}

	return c.Download(path, storage.OutputName(task))
}

func (s *Server) deleteTask(c *fiber.Ctx) error {
	id := c.Params("id")

	// Deleting a nonexistent task is a no-op, not an error.
	task, err := s.taskRepo.GetByID(id)
	if err != nil {
		return c.JSON(SuccessResponse{Message: "Task deleted"})
	}

	s.store.RemoveTaskFiles(task)

	if err := s.taskRepo.Delete(id); err != nil {
		return c.Status(500).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(SuccessResponse{Message: "Task deleted"})
}
