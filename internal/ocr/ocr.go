// Package ocr defines the call contract to the external text-recognition
// collaborator. The engine is opaque to the rest of the system: it takes an
// image and returns whatever text it found, possibly none. Recognition runs
// on the background indexing path and must be callable without blocking the
// buffer's owner.
package ocr

import (
	"context"
	"errors"
	"image"
)

// Engine extracts text from a captured frame. An empty string with a nil
// error is a valid result (a frame with no legible text). Implementations
// must honor ctx cancellation.
type Engine interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Disabled is the engine used when no recognizer is configured. It fails
// every call so frames are dropped from the index queue instead of being
// cached with empty text.
type Disabled struct{}

func (Disabled) ExtractText(ctx context.Context, img image.Image) (string, error) {
	return "", errors.New("ocr not configured")
}
