package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
	"time"
)

// CommandEngine shells out to an OCR binary (tesseract-style: PNG on stdin,
// recognized text on stdout).
type CommandEngine struct {
	command string
	args    []string
	timeout time.Duration
}

// NewCommandEngine creates an engine around the given binary. With no args,
// tesseract's stdin/stdout convention is assumed.
func NewCommandEngine(command string, args ...string) *CommandEngine {
	if len(args) == 0 {
		args = []string{"stdin", "stdout"}
	}
	return &CommandEngine{
		command: command,
		args:    args,
		timeout: 30 * time.Second,
	}
}

// ExtractText encodes img as PNG, pipes it through the OCR binary, and
// returns the trimmed output.
func (e *CommandEngine) ExtractText(ctx context.Context, img image.Image) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var input bytes.Buffer
	if err := png.Encode(&input, img); err != nil {
		return "", fmt.Errorf("encode ocr input: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = &input

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ocr command: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
