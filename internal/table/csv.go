package table

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
)

func init() {
	Register(csvCodec{})
}

// csvCodec stores one header row followed by one record per row.
// Integer lists are written as JSON arrays and recognised again on decode
// when every non-empty cell of a column parses as one. Empty cells decode
// as null, so an empty string cell (for example the text of an image with no
// OCR output) reads back as null. The parquet codec keeps it as "".
type csvCodec struct{}

func (csvCodec) Format() Format { return CSV }

func (csvCodec) Encode(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = row[i].Text()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (csvCodec) Decode(r io.ReaderAt, size int64) (*Table, error) {
	cr := csv.NewReader(io.NewSectionReader(r, 0, size))
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return New(), nil
	}

	t := New(records[0]...)
	body := records[1:]

	lists := make([]bool, len(t.Columns))
	for i := range t.Columns {
		lists[i] = isIntListColumn(body, i)
	}

	for _, rec := range body {
		row := make(Row, len(t.Columns))
		for i, cell := range rec {
			switch {
			case cell == "":
				row[i] = Null()
			case lists[i]:
				row[i] = Ints(parseIntList(cell))
			default:
				row[i] = String(cell)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isIntListColumn(records [][]string, col int) bool {
	seen := false
	for _, rec := range records {
		cell := strings.TrimSpace(rec[col])
		if cell == "" {
			continue
		}
		if !strings.HasPrefix(cell, "[") {
			return false
		}
		var v []int64
		if err := json.Unmarshal([]byte(cell), &v); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func parseIntList(cell string) []int64 {
	var v []int64
	if strings.TrimSpace(cell) == "" {
		return v
	}
	_ = json.Unmarshal([]byte(cell), &v)
	return v
}
