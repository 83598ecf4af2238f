package ocr

import (
	"context"
	"image"
	"sync"
)

// Mock is a test double for the Engine interface.
type Mock struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls int
}

// ExtractText records the call and returns the configured result.
func (m *Mock) ExtractText(ctx context.Context, img image.Image) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Text, m.Err
}

// Calls returns how many times ExtractText was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
