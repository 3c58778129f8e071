package etl

import (
	"errors"
	"fmt"
)

var (
	// ErrInputMissing is returned when the image directory or label file does not exist.
	ErrInputMissing = errors.New("input missing")

	// ErrItemTimeout is reported for an image whose processing exceeded the per-item bound.
	ErrItemTimeout = errors.New("item processing timed out")

	// ErrLabelOutOfRange is reported for an image whose position has no label row.
	ErrLabelOutOfRange = errors.New("no label row at image position")

	// ErrJoinMismatch is returned when key joining is enabled and an image has
	// no, or more than one, matching label row.
	ErrJoinMismatch = errors.New("images and labels do not match")
)

// ItemProcessingError records why one image was left out of the table.
type ItemProcessingError struct {
	// Index is the image's position in the enumerated path list.
	Index int `json:"index"`

	// Path is the image path.
	Path string `json:"path"`

	// Err is the underlying failure.
	Err error `json:"-"`
}

func (e *ItemProcessingError) Error() string {
	return fmt.Sprintf("Error processing %s: %v", e.Path, e.Err)
}

func (e *ItemProcessingError) Unwrap() error { return e.Err }
