package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/andi/docconvert/backend/formats"
	"github.com/andi/docconvert/backend/models"
)

// Each disallowed character maps to its own underscore, so runs are
// preserved ("a (b)" -> "a__b_").
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Storage places task inputs and outputs on disk. Paths are namespaced by
// task id, so concurrent tasks never collide.
type Storage struct {
	root string
}

// New creates a Storage rooted at dir and ensures the uploads/ and
// exports/ subdirectories exist.
func New(root string) (*Storage, error) {
	s := &Storage{root: root}
	for _, dir := range []string{s.UploadsDir(), s.ExportsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// Root returns the storage root directory.
func (s *Storage) Root() string {
	return s.root
}

// UploadsDir returns the directory holding task inputs.
func (s *Storage) UploadsDir() string {
	return filepath.Join(s.root, "uploads")
}

// ExportsDir returns the directory holding conversion results.
func (s *Storage) ExportsDir() string {
	return filepath.Join(s.root, "exports")
}

// InputPath returns the upload location for a task: uploads/{id}.{ext}.
// An empty or unknown extension defaults to md.
func (s *Storage) InputPath(taskID, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "md"
	}
	return filepath.Join(s.UploadsDir(), taskID+"."+ext)
}

// SaveInput writes the input document for a task and returns its path.
func (s *Storage) SaveInput(taskID, ext string, r io.Reader) (string, error) {
	dest := s.InputPath(taskID, ext)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create input file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write input file: %w", err)
	}
	return dest, nil
}

// FindInput locates the persisted input for a task by its id stem,
// regardless of extension. The extension is not stored on the task record,
// so it is recovered from the filesystem here. Falls back to the .md path
// when no file matches.
func (s *Storage) FindInput(taskID string) string {
	matches, err := filepath.Glob(filepath.Join(s.UploadsDir(), taskID+".*"))
	if err == nil && len(matches) > 0 {
		return matches[0]
	}
	return s.InputPath(taskID, "md")
}

// OutputName derives the human-readable result filename for a task. The
// original filename, when present, is stripped of directory components and
// extension and sanitized to [A-Za-z0-9_-]; anything else becomes an
// underscore. An empty sanitized stem falls back to the task id.
func OutputName(task *models.ConversionTask) string {
	ext := strings.TrimPrefix(task.OutputFormat, ".")
	if ext == "" {
		ext = formats.DefaultOutput
	}

	if task.OriginalFilename != "" {
		stem := filepath.Base(task.OriginalFilename)
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
		stem = unsafeChars.ReplaceAllString(strings.TrimSpace(stem), "_")
		if stem != "" {
			return stem + "." + ext
		}
	}
	return task.ID + "." + ext
}

// OutputPath returns the export location for a task's result.
func (s *Storage) OutputPath(task *models.ConversionTask) string {
	return filepath.Join(s.ExportsDir(), OutputName(task))
}

// RelPath converts an absolute storage path to one relative to the root,
// as persisted on the task record.
func (s *Storage) RelPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return rel
}

// AbsPath resolves a root-relative result path back to an absolute one.
func (s *Storage) AbsPath(rel string) string {
	return filepath.Join(s.root, rel)
}

// RemoveTaskFiles deletes the input and output files of a task. Missing
// files are ignored.
func (s *Storage) RemoveTaskFiles(task *models.ConversionTask) {
	matches, _ := filepath.Glob(filepath.Join(s.UploadsDir(), task.ID+".*"))
	for _, m := range matches {
		os.Remove(m)
	}
	if task.ResultFilePath != "" {
		os.Remove(s.AbsPath(task.ResultFilePath))
	}
	os.Remove(s.OutputPath(task))
}
