package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOptions configures a TesseractEngine.
type TesseractOptions struct {
	// Language is the Tesseract language code (e.g. "eng", "eng+fra").
	// Empty means DefaultLanguage.
	Language string

	// TessdataPrefix is the directory holding *.traineddata files.
	// Empty means Tesseract's compiled-in default.
	TessdataPrefix string

	// PageSegMode overrides Tesseract's page segmentation mode when non-zero.
	PageSegMode gosseract.PageSegMode
}

// TesseractEngine implements Engine with the gosseract client.
//
// A new client is created for every call, so the engine is safe for
// concurrent use; Tesseract itself is not.
type TesseractEngine struct {
	opts          TesseractOptions
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine.
func NewTesseractEngine(opts TesseractOptions) *TesseractEngine {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	return &TesseractEngine{opts: opts, clientFactory: gosseract.NewClient}
}

// Name returns "tesseract".
func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize performs OCR on an in-memory image.
//
// The image is encoded to PNG and handed to Tesseract as bytes, so no
// temporary file is written.
//
// # Errors
//
//   - ErrEmptyImage if img has zero width or height
//   - ctx.Err() if the context is already done
//   - wrapped gosseract errors for language, tessdata or recognition failures
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if img.Bounds().Empty() {
		return "", ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := e.clientFactory()
	defer client.Close()

	if e.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.opts.TessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	if err := client.SetLanguage(e.opts.Language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}

	if e.opts.PageSegMode != 0 {
		if err := client.SetPageSegMode(e.opts.PageSegMode); err != nil {
			return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	return text, nil
}

// Info reports the installed Tesseract version and the engine configuration.
func (e *TesseractEngine) Info() Info {
	client := e.clientFactory()
	defer client.Close()

	info := Info{
		Backend:        "gosseract",
		Language:       e.opts.Language,
		TessdataPrefix: e.opts.TessdataPrefix,
	}

	version := client.Version()
	if version == "" {
		info.Error = "tesseract version unavailable"
		return info
	}

	info.Available = true
	info.Version = version
	return info
}
