package analysis

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ironsheep/meme-etl/internal/table"
)

// Summary renders the dataset overview as Markdown. wordCounts holds the
// per-row word counts of the text column, or nil if there is none.
func Summary(tbl *table.Table, wordCounts []float64) string {
	var sb strings.Builder

	sb.WriteString("# Dataset Overview\n\n")
	fmt.Fprintf(&sb, "- Total records: %d\n", tbl.Len())
	fmt.Fprintf(&sb, "- Columns: %s\n\n", strings.Join(tbl.Columns, ", "))

	sb.WriteString("## Data Types\n\n")
	sb.WriteString("| Column | Type |\n|---|---|\n")
	for i, c := range tbl.Columns {
		fmt.Fprintf(&sb, "| %s | %s |\n", escapeCell(c), tbl.ColumnKind(i))
	}
	sb.WriteString("\n")

	if tbl.HasColumn(sentimentColumn) {
		sb.WriteString("## Sentiment Distribution\n\n")
		sb.WriteString("| Sentiment | Count |\n|---|---|\n")
		for _, c := range tbl.ValueCounts(sentimentColumn) {
			fmt.Fprintf(&sb, "| %s | %d |\n", escapeCell(c.Value), c.Count)
		}
		sb.WriteString("\n")
	}

	if wordCounts != nil {
		sb.WriteString("## Word Counts\n\n")
		fmt.Fprintf(&sb, "- Mean: %.2f\n", Mean(wordCounts))
		fmt.Fprintf(&sb, "- Std: %.2f\n", Std(wordCounts))
	}

	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeHTML(markdown, path string) error {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
