package etl

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ironsheep/meme-etl/internal/imaging"
	"github.com/ironsheep/meme-etl/internal/ocr"
)

// Features is what one image contributes to its table row.
type Features struct {
	Path      string             `json:"image_path"`
	Text      string             `json:"text"`
	Size      imaging.Dimensions `json:"image_size"`
	Histogram []int64            `json:"histogram"`
}

// Extractor produces the Features of one image.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Features, error)
}

// FeatureExtractor decodes an image, recognizes its text and computes a
// single-channel intensity histogram.
type FeatureExtractor struct {
	// OCR recognizes the image text. Required.
	OCR ocr.Engine

	// Channel is the histogram channel; the zero value is imaging.Red.
	Channel imaging.Channel
}

// NewFeatureExtractor returns an extractor that uses engine for OCR and
// histograms the red channel.
func NewFeatureExtractor(engine ocr.Engine) *FeatureExtractor {
	return &FeatureExtractor{OCR: engine, Channel: imaging.Red}
}

// Extract computes the Features of the image at path.
//
// Steps, any of which fails the whole record:
//  1. Decode and normalise to opaque RGB.
//  2. OCR; the text is trimmed and NFC-normalised.
//  3. 256-bucket histogram of Channel.
func (e *FeatureExtractor) Extract(ctx context.Context, path string) (*Features, error) {
	img, err := imaging.LoadRGB(path)
	if err != nil {
		return nil, err
	}

	text, err := e.OCR.Recognize(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("text recognition failed: %w", err)
	}

	hist, err := imaging.ChannelHistogram(img, e.Channel)
	if err != nil {
		return nil, err
	}

	return &Features{
		Path:      path,
		Text:      norm.NFC.String(strings.TrimSpace(text)),
		Size:      imaging.DimensionsOf(img),
		Histogram: hist,
	}, nil
}
