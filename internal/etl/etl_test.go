package etl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/meme-etl/internal/labels"
	"github.com/ironsheep/meme-etl/internal/ocr"
	"github.com/ironsheep/meme-etl/internal/table"
)

var sentiments = []string{"positive", "negative", "neutral"}

// fakeOCR returns fixed text without touching tesseract.
var fakeOCR = ocr.EngineFunc(func(ctx context.Context, img image.Image) (string, error) {
	return "  WHEN THE CODE COMPILES \n", nil
})

type extractorFunc func(ctx context.Context, path string) (*Features, error)

func (f extractorFunc) Extract(ctx context.Context, path string) (*Features, error) {
	return f(ctx, path)
}

// writePNG writes a solid w x h image to path.
func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

// createDataset writes n images and a label file with n rows into a temp
// directory and returns the image directory and label path.
func createDataset(t *testing.T, n int, header string) (string, string) {
	t.Helper()
	root := t.TempDir()
	imageDir := filepath.Join(root, "images")
	if err := os.Mkdir(imageDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	sb.WriteString(header + "\n")
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("image_%02d.png", i)
		writePNG(t, filepath.Join(imageDir, name), 20+i, 10, color.NRGBA{uint8(i * 10), 0, 0, 255})
		fmt.Fprintf(&sb, "%s,%s\n", name, sentiments[i%len(sentiments)])
	}

	labelsPath := filepath.Join(root, "labels.csv")
	if err := os.WriteFile(labelsPath, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return imageDir, labelsPath
}

func newTestTransformer(buf *bytes.Buffer) *Transformer {
	return &Transformer{
		Extractor: NewFeatureExtractor(fakeOCR),
		Logger:    log.New(buf, "", 0),
	}
}

func TestExtract(t *testing.T) {
	imageDir, labelsPath := createDataset(t, 3, "image_name,sentiment")

	paths, lbls, err := Extract(imageDir, labelsPath)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(paths) != 3 || lbls.Len() != 3 {
		t.Fatalf("got %d paths, %d labels", len(paths), lbls.Len())
	}
	for i, p := range paths {
		want := filepath.Join(imageDir, fmt.Sprintf("image_%02d.png", i))
		if p != want {
			t.Errorf("paths[%d] = %q, want %q", i, p, want)
		}
	}
}

func TestExtract_MissingInputs(t *testing.T) {
	imageDir, labelsPath := createDataset(t, 1, "image_name,sentiment")

	if _, _, err := Extract(filepath.Join(imageDir, "nope"), labelsPath); !errors.Is(err, ErrInputMissing) {
		t.Errorf("missing image dir: got %v", err)
	}

	_, _, err := Extract(imageDir, labelsPath+".missing")
	if !errors.Is(err, ErrInputMissing) || !errors.Is(err, labels.ErrDataNotFound) {
		t.Errorf("missing labels: got %v", err)
	}
}

func TestListImages_NoFilter(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.txt", "c.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := ListImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	if strings.Join(names, ",") != "a.txt,b.png,c.jpg" {
		t.Errorf("unexpected listing %v", names)
	}
}

func TestSample(t *testing.T) {
	imageDir, labelsPath := createDataset(t, 5, "image_name,sentiment")
	paths, lbls, err := Extract(imageDir, labelsPath)
	if err != nil {
		t.Fatal(err)
	}

	p, l := Sample(paths, lbls, 2)
	if len(p) != 2 || l.Len() != 2 {
		t.Errorf("Sample(2) = %d paths, %d labels", len(p), l.Len())
	}
	p, l = Sample(paths, lbls, -1)
	if len(p) != 5 || l.Len() != 5 {
		t.Errorf("Sample(-1) = %d paths, %d labels", len(p), l.Len())
	}
}

func TestFeatureExtractor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meme.png")
	writePNG(t, path, 30, 12, color.NRGBA{200, 0, 0, 255})

	f, err := NewFeatureExtractor(fakeOCR).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if f.Text != "WHEN THE CODE COMPILES" {
		t.Errorf("text = %q", f.Text)
	}
	if f.Size.Height != 12 || f.Size.Width != 30 || f.Size.Channels != 3 {
		t.Errorf("size = %+v", f.Size)
	}
	if len(f.Histogram) != 256 {
		t.Fatalf("histogram has %d bins", len(f.Histogram))
	}
	if f.Histogram[200] != 30*12 {
		t.Errorf("histogram[200] = %d, want %d", f.Histogram[200], 30*12)
	}
}

func TestFeatureExtractor_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFeatureExtractor(fakeOCR).Extract(context.Background(), bad); err == nil {
		t.Error("expected decode error")
	}

	good := filepath.Join(dir, "good.png")
	writePNG(t, good, 4, 4, color.White)
	failing := ocr.EngineFunc(func(ctx context.Context, img image.Image) (string, error) {
		return "", errors.New("engine exploded")
	})
	if _, err := NewFeatureExtractor(failing).Extract(context.Background(), good); err == nil {
		t.Error("expected OCR error")
	}
}

func TestTransform(t *testing.T) {
	imageDir, labelsPath := createDataset(t, 10, "image_name, sentiment ")
	paths, lbls, err := Extract(imageDir, labelsPath)
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tbl, report, err := newTestTransformer(&logs).Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if tbl.Len() != 10 || report.Succeeded != 10 || report.Failed() != 0 {
		t.Fatalf("rows=%d report=%+v", tbl.Len(), report)
	}
	wantCols := "image_path,text,image_size,histogram,image_name,sentiment"
	if got := strings.Join(tbl.Columns, ","); got != wantCols {
		t.Errorf("columns = %s, want %s", got, wantCols)
	}

	for i, row := range tbl.Rows {
		if row[0].Str() != paths[i] {
			t.Errorf("row %d image_path = %q", i, row[0].Str())
		}
		if row[4].Str() != filepath.Base(paths[i]) {
			t.Errorf("row %d joined with wrong label %q", i, row[4].Str())
		}
		size := row[2].IntList()
		if len(size) != 3 || size[0] != 10 || size[1] != int64(20+i) || size[2] != 3 {
			t.Errorf("row %d image_size = %v", i, size)
		}
		if len(row[3].IntList()) != 256 {
			t.Errorf("row %d histogram length %d", i, len(row[3].IntList()))
		}
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected log output: %s", logs.String())
	}
}

func TestTransform_SkipsCorruptImage(t *testing.T) {
	imageDir, labelsPath := createDataset(t, 3, "image_name,sentiment")
	bad := filepath.Join(imageDir, "image_01.png")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths, lbls, err := Extract(imageDir, labelsPath)
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tbl, report, err := newTestTransformer(&logs).Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if tbl.Len() != 2 || report.Attempted != 3 || report.Failed() != 1 {
		t.Fatalf("rows=%d report=%+v", tbl.Len(), report)
	}
	// Positional join: image 2 keeps label row 2 even though image 1 failed.
	if tbl.Rows[1][4].Str() != "image_02.png" {
		t.Errorf("second row label = %q", tbl.Rows[1][4].Str())
	}
	if report.Failures[0].Path != bad || report.Failures[0].Index != 1 {
		t.Errorf("unexpected failure %+v", report.Failures[0])
	}
	if !strings.Contains(logs.String(), "Error processing "+bad+":") {
		t.Errorf("missing failure log, got %q", logs.String())
	}
}

func TestTransform_AllFail(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	lbls, err := labels.Parse(strings.NewReader("image_name,sentiment\nbroken.png,positive\n"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tbl, report, err := newTestTransformer(&logs).Transform(context.Background(), []string{bad}, lbls)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if tbl.Len() != 0 || report.Failed() != 1 {
		t.Fatalf("rows=%d report=%+v", tbl.Len(), report)
	}
	if len(tbl.Columns) != 6 {
		t.Errorf("empty table should keep all columns, got %v", tbl.Columns)
	}
}

func TestTransform_MoreImagesThanLabels(t *testing.T) {
	imageDir, _ := createDataset(t, 4, "image_name,sentiment")
	paths, err := ListImages(imageDir)
	if err != nil {
		t.Fatal(err)
	}
	lbls, err := labels.Parse(strings.NewReader("image_name,sentiment\na,positive\nb,negative\n"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tbl, report, err := newTestTransformer(&logs).Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Errorf("rows = %d, want 2", tbl.Len())
	}
	if report.Failed() != 2 || !errors.Is(report.Failures[0].Err, ErrLabelOutOfRange) {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestTransform_RowCountBound(t *testing.T) {
	for _, tc := range []struct{ images, rows int }{{0, 3}, {3, 0}, {5, 2}, {2, 5}} {
		imageDir, _ := createDataset(t, tc.images, "image_name,sentiment")
		paths, err := ListImages(imageDir)
		if err != nil {
			t.Fatal(err)
		}
		var sb strings.Builder
		sb.WriteString("image_name,sentiment\n")
		for i := 0; i < tc.rows; i++ {
			fmt.Fprintf(&sb, "x%d,neutral\n", i)
		}
		lbls, err := labels.Parse(strings.NewReader(sb.String()))
		if err != nil {
			t.Fatal(err)
		}

		var logs bytes.Buffer
		tbl, _, err := newTestTransformer(&logs).Transform(context.Background(), paths, lbls)
		if err != nil {
			t.Fatal(err)
		}
		if want := min(tc.images, tc.rows); tbl.Len() != want {
			t.Errorf("%d images, %d labels: rows = %d, want %d", tc.images, tc.rows, tbl.Len(), want)
		}
	}
}

func TestTransform_LabelOverridesFeatureColumn(t *testing.T) {
	imageDir, _ := createDataset(t, 1, "image_name,sentiment")
	paths, err := ListImages(imageDir)
	if err != nil {
		t.Fatal(err)
	}
	lbls, err := labels.Parse(strings.NewReader("image_name, text ,sentiment\nimage_00.png,corrected caption,positive\n"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tbl, _, err := newTestTransformer(&logs).Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(tbl.Columns, ","); got != "image_path,text,image_size,histogram,image_name,sentiment" {
		t.Fatalf("columns = %s", got)
	}
	if got := tbl.Rows[0][1].Str(); got != "corrected caption" {
		t.Errorf("text = %q, want the label value", got)
	}
}

func TestTransform_DuplicateLabelHeaderKeepsValue(t *testing.T) {
	imageDir, _ := createDataset(t, 1, "image_name,sentiment")
	paths, err := ListImages(imageDir)
	if err != nil {
		t.Fatal(err)
	}
	lbls, err := labels.Parse(strings.NewReader("sentiment ,sentiment\npositive,\n"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tbl, _, err := newTestTransformer(&logs).Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(tbl.Columns, ","); got != "image_path,text,image_size,histogram,sentiment" {
		t.Fatalf("columns = %s", got)
	}
	if got := tbl.Rows[0][4].Str(); got != "positive" {
		t.Errorf("sentiment = %v, want positive", tbl.Rows[0][4])
	}
	if _, col := BuildChart(tbl); col != "sentiment" {
		t.Errorf("chart column = %q, want sentiment", col)
	}
}

func TestTransform_ItemTimeout(t *testing.T) {
	paths := []string{"fast.png", "slow.png", "fast2.png"}
	extractor := extractorFunc(func(ctx context.Context, path string) (*Features, error) {
		if path == "slow.png" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &Features{Path: path, Histogram: make([]int64, 256)}, nil
	})
	lbls, err := labels.Parse(strings.NewReader("sentiment\na\nb\nc\n"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tr := &Transformer{Extractor: extractor, ItemTimeout: 20 * time.Millisecond, Logger: log.New(&logs, "", 0)}
	tbl, report, err := tr.Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Errorf("rows = %d, want 2", tbl.Len())
	}
	if report.Failed() != 1 || !errors.Is(report.Failures[0].Err, ErrItemTimeout) {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestTransform_Cancelled(t *testing.T) {
	imageDir, labelsPath := createDataset(t, 2, "image_name,sentiment")
	paths, lbls, err := Extract(imageDir, labelsPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var logs bytes.Buffer
	if _, _, err := newTestTransformer(&logs).Transform(ctx, paths, lbls); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTransform_JoinKey(t *testing.T) {
	imageDir, _ := createDataset(t, 3, "image_name,sentiment")
	paths, err := ListImages(imageDir)
	if err != nil {
		t.Fatal(err)
	}
	// Rows out of order, one keyed by stem.
	lbls, err := labels.Parse(strings.NewReader("image_name,sentiment\nimage_02.png,c\nimage_00,a\nimage_01.png,b\n"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	tr := newTestTransformer(&logs)
	tr.JoinKey = "image_name"
	tbl, _, err := tr.Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	var got []string
	for _, v := range tbl.Column("sentiment") {
		got = append(got, v.Str())
	}
	if strings.Join(got, "") != "abc" {
		t.Errorf("sentiments = %v, want a b c", got)
	}
}

func TestTransform_JoinKeyMismatch(t *testing.T) {
	imageDir, _ := createDataset(t, 2, "image_name,sentiment")
	paths, err := ListImages(imageDir)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"missing row":    "image_name,sentiment\nimage_00.png,a\n",
		"duplicate row":  "image_name,sentiment\nimage_00.png,a\nimage_01.png,b\nimage_01,c\n",
		"missing column": "file,sentiment\nimage_00.png,a\nimage_01.png,b\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			lbls, err := labels.Parse(strings.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}
			var logs bytes.Buffer
			tr := newTestTransformer(&logs)
			tr.JoinKey = "image_name"
			if _, _, err := tr.Transform(context.Background(), paths, lbls); !errors.Is(err, ErrJoinMismatch) {
				t.Errorf("expected ErrJoinMismatch, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	imageDir, labelsPath := createDataset(t, 10, "image_name,sentiment")
	paths, lbls, err := Extract(imageDir, labelsPath)
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	tbl, _, err := newTestTransformer(&logs).Transform(context.Background(), paths, lbls)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "processed")
	res, err := Load(tbl, out, LoadOptions{Logger: log.New(&logs, "", 0)})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.ChartColumn != "sentiment" || res.Rows != 10 {
		t.Errorf("unexpected result %+v", res)
	}
	if _, err := os.Stat(res.ChartPath); err != nil {
		t.Errorf("chart missing: %v", err)
	}

	back, _, err := table.Open(out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if back.Len() != 10 || strings.Join(back.Columns, ",") != strings.Join(tbl.Columns, ",") {
		t.Errorf("read back %d rows, columns %v", back.Len(), back.Columns)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	tbl := table.New("image_path", "sentiment")
	tbl.Append(table.Row{table.String("a.png"), table.String("positive")})

	csvCodec, ok := table.Lookup(table.CSV)
	if !ok {
		t.Fatal("csv codec not registered")
	}
	out := t.TempDir()
	var logs bytes.Buffer
	opts := LoadOptions{Codec: csvCodec, Logger: log.New(&logs, "", 0)}

	if _, err := Load(tbl, out, opts); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(filepath.Join(out, table.ArtifactName(table.CSV)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tbl, out, opts); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(filepath.Join(out, table.ArtifactName(table.CSV)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("second load changed the artifact")
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected artifact and chart only, got %d entries", len(entries))
	}
}

func TestLoad_EmptyTable(t *testing.T) {
	tbl := table.New(append(append([]string(nil), FeatureColumns...), "image_name", "sentiment")...)
	csvCodec, _ := table.Lookup(table.CSV)
	out := t.TempDir()

	var logs bytes.Buffer
	res, err := Load(tbl, out, LoadOptions{Codec: csvCodec, Logger: log.New(&logs, "", 0)})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.ChartColumn != "" {
		t.Errorf("expected placeholder chart, got column %q", res.ChartColumn)
	}

	data, err := os.ReadFile(res.TablePath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "image_path,text,image_size,histogram,image_name,sentiment" {
		t.Errorf("expected header-only artifact, got %q", got)
	}
}

func TestBuildChart(t *testing.T) {
	tbl := table.New("overall_sentiment", "sarcasm")
	for _, s := range []string{"positive", "positive", "neutral"} {
		tbl.Append(table.Row{table.String(s), table.String("general")})
	}

	c, col := BuildChart(tbl)
	if col != "overall_sentiment" {
		t.Fatalf("column = %q", col)
	}
	if c.Title != "Overall Sentiment Distribution" {
		t.Errorf("title = %q", c.Title)
	}
	if len(c.Bars) != 2 || c.Bars[0].Label != "positive" || c.Bars[0].Value != 2 {
		t.Errorf("bars = %+v", c.Bars)
	}

	// A preferred column with only nulls falls through to the next one.
	tbl = table.New("sentiment", "offensive")
	tbl.Append(table.Row{table.Null(), table.String("slight")})
	if _, col := BuildChart(tbl); col != "offensive" {
		t.Errorf("column = %q, want offensive", col)
	}

	c, col = BuildChart(table.New("image_path"))
	if col != "" || c.Title != placeholderTitle || len(c.Bars) != 1 || c.Bars[0].Value != 1 {
		t.Errorf("unexpected placeholder %+v", c)
	}
}
