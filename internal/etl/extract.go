package etl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/meme-etl/internal/labels"
)

// Extract lists the candidate images in imageDir and loads the label table
// at labelsPath.
//
// Parameters:
//   - imageDir: Directory of images. Every entry is a candidate; no
//     extension filter is applied, so undecodable entries surface later as
//     item failures.
//   - labelsPath: Delimited label file with a header row.
//
// Returns:
//   - []string: imageDir joined with each entry name, in file name order.
//   - *labels.Table: The label rows in file order.
//   - error: ErrInputMissing if either input does not exist; label parse
//     errors are returned as-is.
func Extract(imageDir, labelsPath string) ([]string, *labels.Table, error) {
	info, err := os.Stat(imageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: image directory %s: %w", ErrInputMissing, imageDir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrInputMissing, imageDir)
	}

	lbls, err := labels.Load(labelsPath)
	if err != nil {
		if errors.Is(err, labels.ErrDataNotFound) {
			return nil, nil, fmt.Errorf("%w: %w", ErrInputMissing, err)
		}
		return nil, nil, fmt.Errorf("failed to parse labels: %w", err)
	}

	paths, err := ListImages(imageDir)
	if err != nil {
		return nil, nil, err
	}

	return paths, lbls, nil
}

// ListImages returns dir joined with the name of every entry in dir, sorted
// by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// Sample truncates the image list and the label table to their first n
// entries. A negative n keeps everything.
func Sample(paths []string, lbls *labels.Table, n int) ([]string, *labels.Table) {
	if n < 0 {
		return paths, lbls
	}
	if n < len(paths) {
		paths = paths[:n]
	}
	return paths, lbls.Head(n)
}
