package table

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ArtifactBase is the file name, without extension, of the processed table.
const ArtifactBase = "processed_data"

// Format names an on-disk table encoding.
type Format string

const (
	Parquet Format = "parquet"
	CSV     Format = "csv"
)

// ArtifactName returns the file name of the processed table in format f.
func ArtifactName(f Format) string { return ArtifactBase + "." + string(f) }

var (
	// ErrUnknownFormat is returned for a format name no codec handles.
	ErrUnknownFormat = errors.New("unknown table format")

	// ErrNoProcessedData is returned by Open when neither artifact exists.
	ErrNoProcessedData = errors.New("no processed data found")
)

// Codec reads and writes a Table in one format.
type Codec interface {
	Format() Format
	Encode(w io.Writer, t *Table) error
	Decode(r io.ReaderAt, size int64) (*Table, error)
}

var (
	codecsMu sync.RWMutex
	codecs   = make(map[Format]Codec)
)

// Register makes a codec available by its format. Codecs register
// themselves from init; a later registration for the same format replaces
// the earlier one.
func Register(c Codec) {
	codecsMu.Lock()
	codecs[c.Format()] = c
	codecsMu.Unlock()
}

// Lookup returns the codec registered for f.
func Lookup(f Format) (Codec, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[f]
	return c, ok
}

// Formats lists the registered formats in name order.
func Formats() []Format {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	out := make([]Format, 0, len(codecs))
	for f := range codecs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFormat validates a format name. It accepts any case and an optional
// leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case Parquet, CSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ResolveFormat picks the codec for the requested format once, at startup.
//
// If the columnar codec was requested but is not compiled into this binary
// (built with -tags noparquet), resolution falls back to CSV and logs a
// warning. The returned bool reports whether the fallback happened.
func ResolveFormat(requested Format, logger *log.Logger) (Codec, bool, error) {
	if logger == nil {
		logger = log.Default()
	}
	if c, ok := Lookup(requested); ok {
		return c, false, nil
	}
	if requested == Parquet {
		if c, ok := Lookup(CSV); ok {
			logger.Printf("Warning: %s codec not available in this build, writing %s instead", Parquet, ArtifactName(CSV))
			return c, true, nil
		}
	}
	return nil, false, fmt.Errorf("%w: %q", ErrUnknownFormat, requested)
}

// WriteFile writes t into dir as the artifact of c's format and removes the
// artifacts of every other known format, so exactly one processed table
// exists in dir afterwards.
//
// The artifact is written to a temporary file in dir and renamed into
// place, so a previous artifact is replaced whole.
func WriteFile(dir string, t *Table, c Codec) (string, error) {
	path := filepath.Join(dir, ArtifactName(c.Format()))

	tmp, err := os.CreateTemp(dir, "."+ArtifactBase+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := c.Encode(tmp, t); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to encode %s: %w", c.Format(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}

	for _, f := range []Format{Parquet, CSV} {
		if f == c.Format() {
			continue
		}
		stale := filepath.Join(dir, ArtifactName(f))
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return path, fmt.Errorf("failed to remove stale %s: %w", stale, err)
		}
	}

	return path, nil
}

// ReadFile decodes the table stored at path with codec c.
func ReadFile(path string, c Codec) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	t, err := c.Decode(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return t, nil
}

// Open loads the processed table from dir, probing processed_data.parquet
// first and processed_data.csv second. It returns the format that was read.
func Open(dir string) (*Table, Format, error) {
	for _, f := range []Format{Parquet, CSV} {
		path := filepath.Join(dir, ArtifactName(f))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		c, ok := Lookup(f)
		if !ok {
			continue
		}
		t, err := ReadFile(path, c)
		if err != nil {
			return nil, "", err
		}
		return t, f, nil
	}
	return nil, "", fmt.Errorf("%w in %s", ErrNoProcessedData, dir)
}
