// Package warehouse loads processed tables into a document warehouse and
// reads them back.
//
// Every processed row becomes one Document whose body is the row as a JSON
// object: strings as strings, integer lists as arrays, nulls as null. A load
// stamps all its documents with one load ID and writes them in batches,
// each batch in its own transaction.
package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ironsheep/meme-etl/internal/table"
)

// Defaults for Loader.
const (
	DefaultCollection = "processed_data"
	DefaultBatchSize  = 500
	DefaultIndexField = "sentiment"
)

// Report describes a finished load.
type Report struct {
	LoadID     string `json:"load_id"`
	Collection string `json:"collection"`
	Records    int    `json:"records"`
	Inserted   int    `json:"inserted"`
}

// Loader copies processed tables into a Store.
type Loader struct {
	Store Store

	// BatchSize is the number of documents per transaction. Zero uses
	// DefaultBatchSize.
	BatchSize int

	// IndexField is the body field indexed after the load. Empty uses
	// DefaultIndexField.
	IndexField string

	// Logger receives progress lines. Nil uses log.Default().
	Logger *log.Logger
}

// Load reads the processed table in dataPath and inserts it into collection
// with default settings.
func Load(ctx context.Context, store Store, dataPath, collection string) (*Report, error) {
	return (&Loader{Store: store}).Load(ctx, dataPath, collection)
}

// Load reads the processed table in dataPath and inserts it into collection.
//
// If a batch fails, the batches before it stay committed, the index is still
// ensured, and the returned error is a *PartialWriteError next to a non-nil
// Report.
func (l *Loader) Load(ctx context.Context, dataPath, collection string) (*Report, error) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	tbl, format, err := table.Open(dataPath)
	if err != nil {
		return nil, err
	}
	logger.Printf("Loaded %d records from %s file", tbl.Len(), format)

	loadID := uuid.NewString()
	docs, err := Documents(tbl, loadID)
	if err != nil {
		return nil, err
	}

	if err := l.Store.Prepare(ctx, collection); err != nil {
		return nil, err
	}

	report := &Report{LoadID: loadID, Collection: collection, Records: len(docs)}
	logger.Printf("Uploading %d records to collection '%s' (load %s)...", len(docs), collection, loadID)

	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	var writeErr error
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		if err := l.Store.InsertBatch(ctx, collection, docs[start:end]); err != nil {
			writeErr = &PartialWriteError{Committed: report.Inserted, Total: len(docs), Err: err}
			break
		}
		report.Inserted = end
	}

	if writeErr != nil {
		logger.Printf("Error during bulk write: %v", writeErr)
	} else {
		logger.Printf("Successfully uploaded %d records", report.Inserted)
	}

	field := l.IndexField
	if field == "" {
		field = DefaultIndexField
	}
	if err := l.Store.EnsureIndex(ctx, collection, field); err != nil {
		return report, errors.Join(writeErr, fmt.Errorf("failed to create index on %s: %w", field, err))
	}
	logger.Printf("Created index on '%s' field", field)

	return report, writeErr
}

// Documents converts every row of tbl into a Document stamped with loadID.
func Documents(tbl *table.Table, loadID string) ([]Document, error) {
	imagePath := tbl.ColumnIndex("image_path")
	docs := make([]Document, 0, tbl.Len())
	for r := range tbl.Rows {
		body, err := json.Marshal(tbl.Record(r))
		if err != nil {
			return nil, fmt.Errorf("failed to encode row %d: %w", r, err)
		}
		doc := Document{LoadID: loadID, Body: string(body)}
		if imagePath >= 0 {
			doc.ImagePath = tbl.Rows[r][imagePath].Str()
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
