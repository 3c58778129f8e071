package ocr

import (
	"context"
	"errors"
	"image"
)

// DefaultLanguage is the Tesseract language code used when none is configured.
const DefaultLanguage = "eng"

// ErrEmptyImage is returned when an image with no pixels is submitted.
var ErrEmptyImage = errors.New("image has no pixels")

// Engine recognizes free text in an image.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string

	// Recognize returns the raw text found in img. Whitespace is returned as
	// the engine produced it; callers trim as needed.
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, img image.Image) (string, error)

// Name returns "func".
func (f EngineFunc) Name() string { return "func" }

// Recognize calls f.
func (f EngineFunc) Recognize(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

// Info describes the availability of the OCR subsystem.
type Info struct {
	Available      bool   `json:"available"`
	Version        string `json:"version,omitempty"`
	Error          string `json:"error,omitempty"`
	Backend        string `json:"backend"`
	Language       string `json:"language"`
	TessdataPrefix string `json:"tessdata_prefix,omitempty"`
}
