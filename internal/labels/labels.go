// Package labels loads the per-image label table that accompanies a meme
// image directory.
//
// The label file is a delimited text file with a header row. Each data row
// describes one image; rows are kept in file order because the default join
// between images and labels is positional.
package labels

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrDataNotFound is returned when the label file does not exist or cannot be read.
var ErrDataNotFound = errors.New("label data not found")

// Record is one label row. Values are keyed by the column names of the
// table's header.
type Record map[string]string

// Table is an ordered set of label rows sharing one header.
type Table struct {
	// Header lists the column names in file order, untrimmed.
	Header []string

	// Rows holds the data rows in file order.
	Rows []Record
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Head returns a table holding at most the first n rows. The header is shared.
// A negative n returns the table unchanged.
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Header: t.Header, Rows: t.Rows[:n]}
}

// Column returns the value of column name in every row, in row order.
// Rows without the column contribute an empty string.
func (t *Table) Column(name string) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out
}

// Load reads a label file from path.
//
// The first row is the header. Column names are kept exactly as written
// (the batch transformer trims them after the join). A UTF-8 byte order mark
// on the first header cell is removed.
//
// # Errors
//
//   - ErrDataNotFound (wrapping the OS error) if the file is missing or unreadable
//   - the csv package's parse error if any row is malformed; the whole load fails
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataNotFound, path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a label table from r. See Load.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &Table{Header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(header))
		for i, name := range header {
			rec[name] = row[i]
		}
		table.Rows = append(table.Rows, rec)
	}

	return table, nil
}
