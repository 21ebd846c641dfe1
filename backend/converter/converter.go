package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Converter invokes pandoc as an isolated subprocess, one invocation per
// task. The binary path may point at a wrapper (e.g. a dockerized pandoc).
type Converter struct {
	bin     string
	timeout time.Duration
}

// Result captures the outcome of a single pandoc invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Diagnostic returns the most useful error text for a failed run:
// stderr, then stdout, then a generic message.
func (r *Result) Diagnostic() string {
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(r.Stdout); msg != "" {
		return msg
	}
	if r.TimedOut {
		return "conversion timed out"
	}
	return "pandoc failed with no output"
}

// New creates a converter around the given pandoc binary.
func New(bin string, timeout time.Duration) *Converter {
	if bin == "" {
		bin = "pandoc"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Converter{bin: bin, timeout: timeout}
}

// Args builds the pandoc argument list for one conversion. PDF output
// requires xelatex with explicit Unicode fonts: the default engine mangles
// or drops non-Latin scripts.
func Args(inputPath, outputPath, reader, outputFormat string) []string {
	args := []string{
		"-o", outputPath,
		"-f", reader,
		"-t", outputFormat,
		inputPath,
	}
	if outputFormat == "pdf" {
		args = append(args,
			"--pdf-engine=xelatex",
			"-V", "mainfont=DejaVu Sans",
			"-V", "sansfont=DejaVu Sans",
			"-V", "monofont=DejaVu Sans Mono",
		)
	}
	return args
}

// Convert runs pandoc for one task, bounded by the configured timeout.
// A timeout is reported through Result rather than an error; err is
// non-nil only when the process could not be started at all.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath, reader, outputFormat string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.bin, Args(inputPath, outputPath, reader, outputFormat)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else if res.TimedOut {
			// Treated identically to a non-zero exit.
			res.ExitCode = -1
		} else {
			return nil, fmt.Errorf("failed to run %s: %w", c.bin, err)
		}
	}

	return res, nil
}
