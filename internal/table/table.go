// Package table holds the processed meme table and the codecs that persist it.
//
// A Table is an ordered list of named columns and an ordered list of rows.
// Each cell is a Value: either a string (OCR text, paths, label values) or a
// list of integers (image shape, histogram). The on-disk artifact is
// processed_data.parquet or processed_data.csv; see Codec.
package table

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies what a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInts
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInts:
		return "int_list"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one table cell. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	ints []int64
}

// String returns a string cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Ints returns an integer-list cell. A nil slice is an empty list, not null.
func Ints(v []int64) Value { return Value{kind: KindInts, ints: v} }

// Null returns a null cell.
func Null() Value { return Value{} }

// Kind reports what v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string held by v, or "" for other kinds.
func (v Value) Str() string { return v.str }

// IntList returns the integers held by v, or nil for other kinds.
func (v Value) IntList() []int64 { return v.ints }

// Text renders v as text: strings verbatim, integer lists as JSON arrays,
// null as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInts:
		if len(v.ints) == 0 {
			return "[]"
		}
		b, _ := json.Marshal(v.ints)
		return string(b)
	}
	return ""
}

// Interface returns v as a plain Go value for JSON encoding:
// string, []int64 or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInts:
		if v.ints == nil {
			return []int64{}
		}
		return v.ints
	}
	return nil
}

// Row is one table row; Row[i] belongs to Table.Columns[i].
type Row []Value

// Table is an ordered, column-named sequence of rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Append adds a row. The row is padded with nulls or truncated to the
// column count.
func (t *Table) Append(row Row) {
	switch {
	case len(row) < len(t.Columns):
		padded := make(Row, len(t.Columns))
		copy(padded, row)
		row = padded
	case len(row) > len(t.Columns):
		row = row[:len(t.Columns)]
	}
	t.Rows = append(t.Rows, row)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Column returns the cells of the named column in row order, or nil if the
// column does not exist.
func (t *Table) Column(name string) []Value {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	out := make([]Value, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// ColumnKind returns the kind of column i: KindInts if any cell is
// an integer list, KindString if any cell is a string, KindNull otherwise.
func (t *Table) ColumnKind(i int) Kind {
	kind := KindNull
	for _, row := range t.Rows {
		switch row[i].kind {
		case KindInts:
			return KindInts
		case KindString:
			kind = KindString
		}
	}
	return kind
}

// TrimColumnNames trims surrounding whitespace from every column name.
//
// When two columns trim to the same name they are merged: the merged column
// keeps the position of the first one and, row by row, the value of the
// last one that is not null. Trimming is idempotent.
func (t *Table) TrimColumnNames() {
	names := make([]string, 0, len(t.Columns))
	target := make([]int, len(t.Columns))
	pos := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		name := strings.TrimSpace(c)
		p, ok := pos[name]
		if !ok {
			p = len(names)
			pos[name] = p
			names = append(names, name)
		}
		target[i] = p
	}

	if len(names) == len(t.Columns) {
		t.Columns = names
		return
	}

	for r, row := range t.Rows {
		merged := make(Row, len(names))
		for i, v := range row {
			if !v.IsNull() {
				merged[target[i]] = v
			}
		}
		t.Rows[r] = merged
	}
	t.Columns = names
}

// Record returns row r as a map from column name to plain Go value.
func (t *Table) Record(r int) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for i, c := range t.Columns {
		out[c] = t.Rows[r][i].Interface()
	}
	return out
}

// ValueCounts counts the non-null values of the named column.
//
// The result is ordered by descending count, ties broken by value, like
// a frequency table. Integer-list cells are counted by their Text form.
func (t *Table) ValueCounts(name string) []Count {
	counts := make(map[string]int)
	for _, v := range t.Column(name) {
		if v.IsNull() {
			continue
		}
		counts[v.Text()]++
	}
	return sortCounts(counts)
}
