package etl

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ironsheep/meme-etl/internal/chart"
	"github.com/ironsheep/meme-etl/internal/table"
)

// ChartFileName is the distribution chart written next to the table artifact.
const ChartFileName = "sentiment_distribution.png"

// SentimentColumns lists, in order of preference, the label columns the
// distribution chart is drawn for. The first one present with at least one
// non-null value wins.
var SentimentColumns = []string{"sentiment", "overall_sentiment", "sarcasm", "offensive", "motivational"}

// Placeholder chart, drawn when no preferred column has data.
const (
	placeholderTitle = "No sentiment data available"
	placeholderBar   = "No sentiment data"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Codec writes the table artifact. Nil resolves the Parquet codec,
	// falling back to CSV when it is not compiled in.
	Codec table.Codec

	// Logger receives progress and fallback warnings. Nil uses log.Default().
	Logger *log.Logger
}

// LoadResult describes what Load wrote.
type LoadResult struct {
	TablePath   string       `json:"table_path"`
	ChartPath   string       `json:"chart_path"`
	Format      table.Format `json:"format"`
	ChartColumn string       `json:"chart_column,omitempty"`
	Rows        int          `json:"rows"`
}

// Load writes tbl and its distribution chart into outputDir, creating the
// directory if needed.
//
// Exactly one table artifact (processed_data.parquet or processed_data.csv)
// and one chart exist in outputDir afterwards; previous outputs are
// replaced. An empty table still produces a header-only artifact and the
// placeholder chart.
func Load(tbl *table.Table, outputDir string, opts LoadOptions) (*LoadResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	codec := opts.Codec
	if codec == nil {
		c, _, err := table.ResolveFormat(table.Parquet, logger)
		if err != nil {
			return nil, err
		}
		codec = c
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tablePath, err := table.WriteFile(outputDir, tbl, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to write processed data: %w", err)
	}
	logger.Printf("Wrote %d rows to %s", tbl.Len(), tablePath)

	c, column := BuildChart(tbl)
	chartPath := filepath.Join(outputDir, ChartFileName)
	if err := chart.RenderPNG(c, chartPath); err != nil {
		return nil, fmt.Errorf("failed to write chart: %w", err)
	}
	logger.Printf("Wrote chart %s to %s", c, chartPath)

	return &LoadResult{
		TablePath:   tablePath,
		ChartPath:   chartPath,
		Format:      codec.Format(),
		ChartColumn: column,
		Rows:        tbl.Len(),
	}, nil
}

// BuildChart returns the distribution chart for the first preferred label
// column with data, and that column's name. If none qualifies it returns the
// placeholder chart and an empty name.
func BuildChart(tbl *table.Table) (chart.BarChart, string) {
	for _, col := range SentimentColumns {
		counts := tbl.ValueCounts(col)
		if len(counts) == 0 {
			continue
		}
		bars := make([]chart.Bar, len(counts))
		for i, c := range counts {
			bars[i] = chart.Bar{Label: c.Value, Value: float64(c.Count)}
		}
		return chart.BarChart{
			Title:  chart.TitleFor(col),
			XLabel: col,
			YLabel: "Count",
			Bars:   bars,
		}, col
	}

	return chart.BarChart{
		Title: placeholderTitle,
		Bars:  []chart.Bar{{Label: placeholderBar, Value: 1}},
	}, ""
}
