package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/ironsheep/meme-etl/internal/table"
)

type fakeStore struct {
	prepared  []string
	batches   [][]Document
	indexes   []string
	failAfter int // batches accepted before failing; -1 never fails
}

func newFakeStore() *fakeStore { return &fakeStore{failAfter: -1} }

func (s *fakeStore) Prepare(ctx context.Context, collection string) error {
	s.prepared = append(s.prepared, collection)
	return nil
}

func (s *fakeStore) InsertBatch(ctx context.Context, collection string, docs []Document) error {
	if s.failAfter >= 0 && len(s.batches) >= s.failAfter {
		return errors.New("connection reset")
	}
	s.batches = append(s.batches, append([]Document(nil), docs...))
	return nil
}

func (s *fakeStore) EnsureIndex(ctx context.Context, collection, field string) error {
	s.indexes = append(s.indexes, collection+"."+field)
	return nil
}

func writeProcessed(t *testing.T, n int) string {
	t.Helper()
	tbl := table.New("image_path", "text", "image_size", "sentiment")
	for i := 0; i < n; i++ {
		sentiment := table.String("positive")
		if i%2 == 1 {
			sentiment = table.Null()
		}
		tbl.Append(table.Row{
			table.String(fmt.Sprintf("images/%03d.png", i)),
			table.String("hello"),
			table.Ints([]int64{10, 20, 3}),
			sentiment,
		})
	}
	dir := t.TempDir()
	c, _ := table.Lookup(table.CSV)
	if _, err := table.WriteFile(dir, tbl, c); err != nil {
		t.Fatal(err)
	}
	return dir
}

func quietLoader(store Store, batch int) *Loader {
	return &Loader{Store: store, BatchSize: batch, Logger: log.New(&bytes.Buffer{}, "", 0)}
}

func TestLoad(t *testing.T) {
	dir := writeProcessed(t, 7)
	store := newFakeStore()

	report, err := quietLoader(store, 3).Load(context.Background(), dir, "memes")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if report.Records != 7 || report.Inserted != 7 || report.LoadID == "" {
		t.Errorf("unexpected report %+v", report)
	}
	if len(store.batches) != 3 || len(store.batches[2]) != 1 {
		t.Errorf("unexpected batching: %d batches", len(store.batches))
	}
	if len(store.indexes) != 1 || store.indexes[0] != "memes.sentiment" {
		t.Errorf("unexpected indexes %v", store.indexes)
	}

	doc := store.batches[0][1]
	if doc.LoadID != report.LoadID || doc.ImagePath != "images/001.png" {
		t.Errorf("unexpected document %+v", doc)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(doc.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["sentiment"] != nil {
		t.Errorf("null label should be JSON null, got %v", body["sentiment"])
	}
	if size, ok := body["image_size"].([]any); !ok || len(size) != 3 || size[0] != float64(10) {
		t.Errorf("image_size = %#v", body["image_size"])
	}
}

func TestLoad_PartialWrite(t *testing.T) {
	dir := writeProcessed(t, 10)
	store := newFakeStore()
	store.failAfter = 2

	report, err := quietLoader(store, 4).Load(context.Background(), dir, "memes")
	var pwe *PartialWriteError
	if !errors.As(err, &pwe) {
		t.Fatalf("expected PartialWriteError, got %v", err)
	}
	if pwe.Committed != 8 || pwe.Total != 10 || report.Inserted != 8 {
		t.Errorf("committed=%d total=%d inserted=%d", pwe.Committed, pwe.Total, report.Inserted)
	}
	if len(store.indexes) != 1 {
		t.Error("index should still be ensured after a partial write")
	}
}

func TestLoad_InvalidCollection(t *testing.T) {
	dir := writeProcessed(t, 1)
	for _, name := range []string{"", "Memes", "drop table", "1abc", "a-b"} {
		if _, err := quietLoader(newFakeStore(), 0).Load(context.Background(), dir, name); !errors.Is(err, ErrInvalidCollection) {
			t.Errorf("%q: expected ErrInvalidCollection, got %v", name, err)
		}
	}
}

func TestLoad_NoData(t *testing.T) {
	_, err := quietLoader(newFakeStore(), 0).Load(context.Background(), t.TempDir(), DefaultCollection)
	if !errors.Is(err, table.ErrNoProcessedData) {
		t.Errorf("expected ErrNoProcessedData, got %v", err)
	}
}

func TestValidateField(t *testing.T) {
	for _, name := range []string{"sentiment", "Overall Sentiment", "humour-level", "étiquette"} {
		if err := ValidateField(name); err != nil {
			t.Errorf("ValidateField(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", " sentiment", "sentiment\t", "a\x00b", "\xff", string(make([]byte, maxFieldLength+1))} {
		if err := ValidateField(name); !errors.Is(err, ErrInvalidField) {
			t.Errorf("ValidateField(%q) = %v, want ErrInvalidField", name, err)
		}
	}

	// Collection names stay strict identifiers.
	if err := ValidateCollection("Overall Sentiment"); !errors.Is(err, ErrInvalidCollection) {
		t.Errorf("ValidateCollection accepted a label header: %v", err)
	}
}

func TestOpen_MissingDSN(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrMissingDSN) {
		t.Errorf("expected ErrMissingDSN, got %v", err)
	}
}

// TestGormStore runs against a real Postgres when WAREHOUSE_DSN_TEST=1 and
// WAREHOUSE_DSN are set.
func TestGormStore(t *testing.T) {
	if os.Getenv("WAREHOUSE_DSN_TEST") != "1" {
		t.Skip("set WAREHOUSE_DSN_TEST=1 and WAREHOUSE_DSN to run Postgres tests")
	}
	store, err := Open(os.Getenv("WAREHOUSE_DSN"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	collection := "meme_etl_test"
	if err := store.db.Exec("DROP TABLE IF EXISTS " + collection).Error; err != nil {
		t.Fatal(err)
	}

	dir := writeProcessed(t, 5)
	report, err := quietLoader(store, 2).Load(ctx, dir, collection)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if report.Inserted != 5 {
		t.Errorf("inserted %d", report.Inserted)
	}

	docs, err := store.Find(ctx, collection, "sentiment", "positive", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Errorf("found %d positive documents, want 3", len(docs))
	}

	counts, err := store.Counts(ctx, collection, "sentiment")
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].Value != "positive" || counts[0].Count != 3 {
		t.Errorf("unexpected counts %+v", counts)
	}
}
