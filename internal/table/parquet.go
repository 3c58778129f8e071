//go:build !noparquet

package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// columnOrderKey is the key-value metadata entry holding the table's column
// order; parquet groups order their fields by name.
const columnOrderKey = "meme-etl.columns"

func init() {
	Register(parquetCodec{})
}

// parquetCodec stores integer-list columns as repeated INT64 leaves and every
// other column as an optional UTF8 leaf. The schema is derived per table.
// Null and empty string cells stay distinct.
type parquetCodec struct{}

func (parquetCodec) Format() Format { return Parquet }

func schemaFor(t *Table) *parquet.Schema {
	group := make(parquet.Group, len(t.Columns))
	for i, name := range t.Columns {
		if t.ColumnKind(i) == KindInts {
			group[name] = parquet.Repeated(parquet.Leaf(parquet.Int64Type))
		} else {
			group[name] = parquet.Optional(parquet.String())
		}
	}
	return parquet.NewSchema(ArtifactBase, group)
}

func (parquetCodec) Encode(w io.Writer, t *Table) error {
	schema := schemaFor(t)

	order, err := json.Marshal(t.Columns)
	if err != nil {
		return err
	}
	pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(columnOrderKey, string(order)))

	leaves := schema.Columns()
	index := make([]int, len(leaves))
	lists := make([]bool, len(leaves))
	for li, path := range leaves {
		index[li] = t.ColumnIndex(path[0])
		lists[li] = t.ColumnKind(index[li]) == KindInts
	}

	rows := make([]parquet.Row, 0, len(t.Rows))
	for _, tr := range t.Rows {
		var row parquet.Row
		for li := range leaves {
			v := tr[index[li]]
			switch {
			case lists[li]:
				ints := v.IntList()
				if len(ints) == 0 {
					row = append(row, parquet.NullValue().Level(0, 0, li))
					continue
				}
				for k, n := range ints {
					rep := 1
					if k == 0 {
						rep = 0
					}
					row = append(row, parquet.Int64Value(n).Level(rep, 1, li))
				}
			case v.IsNull():
				row = append(row, parquet.NullValue().Level(0, 0, li))
			default:
				row = append(row, parquet.ByteArrayValue([]byte(v.Text())).Level(0, 1, li))
			}
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			pw.Close()
			return fmt.Errorf("failed to write rows: %w", err)
		}
	}
	return pw.Close()
}

func (parquetCodec) Decode(r io.ReaderAt, size int64) (*Table, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, err
	}

	schema := f.Schema()
	leaves := schema.Columns()

	names := make([]string, 0, len(leaves))
	if raw, ok := f.Lookup(columnOrderKey); ok {
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("invalid column order metadata: %w", err)
		}
	} else {
		for _, path := range leaves {
			names = append(names, path[0])
		}
	}

	t := New(names...)
	index := make([]int, len(leaves))
	lists := make([]bool, len(leaves))
	for li, path := range leaves {
		index[li] = t.ColumnIndex(path[0])
		if index[li] < 0 {
			return nil, fmt.Errorf("column %q missing from column order metadata", path[0])
		}
		if leaf, ok := schema.Lookup(path...); ok {
			lists[li] = leaf.MaxRepetitionLevel > 0
		}
	}

	buf := make([]parquet.Row, 128)
	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, pr := range buf[:n] {
				t.Rows = append(t.Rows, decodeRow(pr, len(names), index, lists))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, err
			}
			if n == 0 {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func decodeRow(pr parquet.Row, width int, index []int, lists []bool) Row {
	row := make(Row, width)
	for li, isList := range lists {
		if isList {
			row[index[li]] = Ints(nil)
		}
	}
	for _, v := range pr {
		li := v.Column()
		ti := index[li]
		if v.IsNull() {
			continue
		}
		if lists[li] {
			row[ti] = Ints(append(row[ti].IntList(), v.Int64()))
			continue
		}
		row[ti] = String(string(v.ByteArray()))
	}
	return row
}
