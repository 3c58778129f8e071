// Package analysis produces a summary report and charts from a processed
// table.
//
// Run reads processed_data.parquet (or processed_data.csv) from a data
// directory and writes into an output directory:
//
//   - data_summary.md and its HTML rendering data_summary.html
//   - sentiment_distribution.png, when the table has a sentiment column
//   - word_count_distribution.png and top_words.png, when it has text
//   - image_size_distribution.png, when image sizes can be parsed
//
// A chart that cannot be written is logged and skipped; the rest of the
// report is still produced.
package analysis

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/ironsheep/meme-etl/internal/chart"
	"github.com/ironsheep/meme-etl/internal/table"
)

// Output file names.
const (
	SummaryMarkdown = "data_summary.md"
	SummaryHTML     = "data_summary.html"
	SentimentChart  = "sentiment_distribution.png"
	WordCountChart  = "word_count_distribution.png"
	TopWordsChart   = "top_words.png"
	ImageSizeChart  = "image_size_distribution.png"
	wordCountBins   = 30
	imageSizeBins   = 20
	topWordsLimit   = 20
	sentimentColumn = "sentiment"
	textColumn      = "text"
	imageSizeColumn = "image_size"
)

// Chart sizes other than the default.
const (
	topWordsChartWidth   = 12 * vg.Inch
	topWordsChartHeight  = 8 * vg.Inch
	imageSizeChartWidth  = 12 * vg.Inch
	imageSizeChartHeight = 6 * vg.Inch
)

// Report lists what Run produced.
type Report struct {
	Records int          `json:"records"`
	Format  table.Format `json:"format"`
	Files   []string     `json:"files"`
	Skipped []string     `json:"skipped,omitempty"`
}

// Analyzer runs the analysis job.
type Analyzer struct {
	// Logger receives progress and chart failures. Nil uses log.Default().
	Logger *log.Logger
}

// Run analyzes the processed table in dataPath and writes the report into
// outputPath using the default logger.
func Run(dataPath, outputPath string) (*Report, error) {
	return (&Analyzer{}).Run(dataPath, outputPath)
}

// Run analyzes the processed table in dataPath and writes the report into
// outputPath, creating it if needed. Only a missing or unreadable table and
// a failure to write the summary are errors.
func (a *Analyzer) Run(dataPath, outputPath string) (*Report, error) {
	logger := a.Logger
	if logger == nil {
		logger = log.Default()
	}

	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tbl, format, err := table.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed data: %w", err)
	}
	logger.Printf("Loaded data with %d records", tbl.Len())

	report := &Report{Records: tbl.Len(), Format: format}

	texts := columnTexts(tbl, textColumn)
	var wordCounts []float64
	if texts != nil {
		wordCounts = make([]float64, len(texts))
		for i, t := range texts {
			wordCounts[i] = float64(WordCount(t))
		}
	}

	md := Summary(tbl, wordCounts)
	mdPath := filepath.Join(outputPath, SummaryMarkdown)
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	report.Files = append(report.Files, mdPath)

	htmlPath := filepath.Join(outputPath, SummaryHTML)
	if err := writeHTML(md, htmlPath); err != nil {
		return nil, err
	}
	report.Files = append(report.Files, htmlPath)

	save := func(name string, render func() error) {
		path := filepath.Join(outputPath, name)
		if err := render(); err != nil {
			logger.Printf("Error creating %s: %v", name, err)
			report.Skipped = append(report.Skipped, name)
			return
		}
		report.Files = append(report.Files, path)
	}

	if tbl.HasColumn(sentimentColumn) {
		save(SentimentChart, func() error {
			return chart.RenderPNG(countChart("Sentiment Distribution", sentimentColumn, tbl.ValueCounts(sentimentColumn)), filepath.Join(outputPath, SentimentChart))
		})
	}

	if texts != nil {
		save(WordCountChart, func() error {
			p, err := chart.Histogram{
				Title:  "Word Count Distribution",
				XLabel: "Number of Words",
				YLabel: "Count",
				Values: wordCounts,
				Bins:   wordCountBins,
			}.Plot()
			if err != nil {
				return err
			}
			return chart.Save(p, chart.DefaultWidth, chart.DefaultHeight, filepath.Join(outputPath, WordCountChart))
		})

		nonEmpty := texts[:0:0]
		for i, v := range tbl.Column(textColumn) {
			if !v.IsNull() {
				nonEmpty = append(nonEmpty, texts[i])
			}
		}
		top := TopWords(nonEmpty, topWordsLimit)
		if len(top) == 0 {
			logger.Printf("Error creating %s: no words left after removing stop words", TopWordsChart)
			report.Skipped = append(report.Skipped, TopWordsChart)
		} else {
			save(TopWordsChart, func() error {
				p, err := countChart("Top 20 Words", "word", top).Plot(topWordsChartWidth)
				if err != nil {
					return err
				}
				return chart.Save(p, topWordsChartWidth, topWordsChartHeight, filepath.Join(outputPath, TopWordsChart))
			})
		}
	}

	if tbl.HasColumn(imageSizeColumn) {
		var heights, widths []float64
		for _, v := range tbl.Column(imageSizeColumn) {
			if h, w, ok := ParseImageSize(v); ok {
				heights = append(heights, float64(h))
				widths = append(widths, float64(w))
			}
		}
		if len(heights) > 0 {
			save(ImageSizeChart, func() error {
				left, err := chart.Histogram{
					Title:  "Image Height Distribution",
					XLabel: "Height (pixels)",
					Values: heights,
					Bins:   imageSizeBins,
				}.Plot()
				if err != nil {
					return err
				}
				right, err := chart.Histogram{
					Title:  "Image Width Distribution",
					XLabel: "Width (pixels)",
					Values: widths,
					Bins:   imageSizeBins,
				}.Plot()
				if err != nil {
					return err
				}
				return chart.SaveRow([]*plot.Plot{left, right}, imageSizeChartWidth, imageSizeChartHeight, filepath.Join(outputPath, ImageSizeChart))
			})
		}
	}

	logger.Printf("Analysis complete. Results saved to %s", outputPath)
	return report, nil
}

// columnTexts returns the text of every cell in the named column, nulls as
// "", or nil if the column is missing.
func columnTexts(tbl *table.Table, name string) []string {
	if !tbl.HasColumn(name) {
		return nil
	}
	col := tbl.Column(name)
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = v.Text()
	}
	return out
}

func countChart(title, xlabel string, counts []table.Count) chart.BarChart {
	bars := make([]chart.Bar, len(counts))
	for i, c := range counts {
		bars[i] = chart.Bar{Label: c.Value, Value: float64(c.Count)}
	}
	return chart.BarChart{Title: title, XLabel: xlabel, YLabel: "Count", Bars: bars}
}
