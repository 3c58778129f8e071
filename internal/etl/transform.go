package etl

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/ironsheep/meme-etl/internal/labels"
	"github.com/ironsheep/meme-etl/internal/table"
)

// Feature column names, in table order. Label columns follow them.
const (
	ColumnImagePath = "image_path"
	ColumnText      = "text"
	ColumnImageSize = "image_size"
	ColumnHistogram = "histogram"
)

// FeatureColumns lists the feature columns in table order.
var FeatureColumns = []string{ColumnImagePath, ColumnText, ColumnImageSize, ColumnHistogram}

// Report summarises one Transform call.
type Report struct {
	Attempted int                   `json:"attempted"`
	Succeeded int                   `json:"succeeded"`
	Failures  []ItemProcessingError `json:"failures,omitempty"`
}

// Failed returns the number of images left out of the table.
func (r *Report) Failed() int { return len(r.Failures) }

// Transformer turns enumerated images and label rows into the processed
// table.
type Transformer struct {
	// Extractor computes per-image features. Required.
	Extractor Extractor

	// ItemTimeout bounds the processing of a single image. Zero means no
	// bound. An image that exceeds it is reported with ErrItemTimeout.
	ItemTimeout time.Duration

	// JoinKey, when set, names a label column holding the image file name
	// (or file name without extension). Rows are then matched by key rather
	// than by position.
	JoinKey string

	// Logger receives one line per failed image. Nil uses log.Default().
	Logger *log.Logger
}

// Transform processes paths in order and joins each successful image with
// its label row.
//
// By default the i-th image is joined with the i-th label row. Images
// without a row at their position fail with ErrLabelOutOfRange; surplus
// label rows are ignored. With JoinKey set, every image must match exactly
// one label row or Transform returns ErrJoinMismatch before any image is
// processed.
//
// Any failure on one image (decode, OCR, histogram, timeout, missing label)
// is logged as "Error processing <path>: <cause>", recorded in the report,
// and the image is left out. Successful rows keep the relative order of
// paths. The resulting table always carries the full column set, even with
// zero rows, and its column names are trimmed of surrounding whitespace.
//
// The only other error is ctx's, if it is cancelled mid-batch.
func (t *Transformer) Transform(ctx context.Context, paths []string, lbls *labels.Table) (*table.Table, *Report, error) {
	logger := t.Logger
	if logger == nil {
		logger = log.Default()
	}
	if lbls == nil {
		lbls = &labels.Table{}
	}

	var rowFor func(i int, path string) (labels.Record, error)
	if t.JoinKey != "" {
		matched, err := matchByKey(paths, lbls, t.JoinKey)
		if err != nil {
			return nil, nil, err
		}
		rowFor = func(i int, _ string) (labels.Record, error) { return matched[i], nil }
	} else {
		rowFor = func(i int, _ string) (labels.Record, error) {
			if i >= lbls.Len() {
				return nil, fmt.Errorf("%w %d (%d label rows)", ErrLabelOutOfRange, i, lbls.Len())
			}
			return lbls.Rows[i], nil
		}
	}

	columns := append(append([]string(nil), FeatureColumns...), lbls.Header...)
	out := table.New(columns...)
	report := &Report{}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		report.Attempted++

		rec, err := rowFor(i, path)
		if err == nil {
			var f *Features
			f, err = t.extract(ctx, path)
			if err == nil {
				out.Append(buildRow(f, lbls.Header, rec))
				report.Succeeded++
				continue
			}
		}

		if ctx.Err() != nil && !errors.Is(err, ErrItemTimeout) {
			return nil, report, ctx.Err()
		}
		itemErr := ItemProcessingError{Index: i, Path: path, Err: err}
		logger.Print(itemErr.Error())
		report.Failures = append(report.Failures, itemErr)
	}

	out.TrimColumnNames()
	return out, report, nil
}

// extract runs the extractor, bounded by ItemTimeout when set. A timed-out
// extraction is abandoned; its goroutine finishes in the background.
func (t *Transformer) extract(ctx context.Context, path string) (*Features, error) {
	if t.ItemTimeout <= 0 {
		return t.Extractor.Extract(ctx, path)
	}

	itemCtx, cancel := context.WithTimeout(ctx, t.ItemTimeout)
	defer cancel()

	type result struct {
		f   *Features
		err error
	}
	done := make(chan result, 1)
	go func() {
		f, err := t.Extractor.Extract(itemCtx, path)
		done <- result{f, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(itemCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrItemTimeout, t.ItemTimeout)
		}
		return r.f, r.err
	case <-itemCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrItemTimeout, t.ItemTimeout)
	}
}

func buildRow(f *Features, header []string, rec labels.Record) table.Row {
	row := make(table.Row, 0, len(FeatureColumns)+len(header))
	row = append(row,
		table.String(f.Path),
		table.String(f.Text),
		table.Ints(f.Size.Shape()),
		table.Ints(f.Histogram),
	)
	for _, h := range header {
		v, ok := rec[h]
		if !ok || v == "" {
			row = append(row, table.Null())
			continue
		}
		row = append(row, table.String(v))
	}
	return row
}

// matchByKey finds, for every path, the single label row whose key column
// equals the path's file name or file name without extension.
func matchByKey(paths []string, lbls *labels.Table, key string) ([]labels.Record, error) {
	found := false
	for _, h := range lbls.Header {
		if strings.TrimSpace(h) == key {
			key = h
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: label column %q not found", ErrJoinMismatch, key)
	}

	index := make(map[string][]int, lbls.Len())
	for i, rec := range lbls.Rows {
		k := strings.TrimSpace(rec[key])
		index[k] = append(index[k], i)
	}

	matched := make([]labels.Record, len(paths))
	var problems []string
	for i, p := range paths {
		name := filepath.Base(p)
		rows := index[name]
		if stem := strings.TrimSuffix(name, filepath.Ext(name)); stem != name {
			rows = append(rows[:len(rows):len(rows)], index[stem]...)
		}
		switch len(rows) {
		case 1:
			matched[i] = lbls.Rows[rows[0]]
		case 0:
			problems = append(problems, fmt.Sprintf("%s: no label row", name))
		default:
			problems = append(problems, fmt.Sprintf("%s: %d label rows", name, len(rows)))
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w on %s: %s", ErrJoinMismatch, key, strings.Join(problems, "; "))
	}
	return matched, nil
}
