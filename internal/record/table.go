package record

import "fmt"

// Table is the materialized, string-celled form of a record stream.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) Len() int { return len(t.Rows) }

func (t Table) Column(name string) ([]string, error) {
	for ci, c := range t.Columns {
		if c != name {
			continue
		}
		out := make([]string, len(t.Rows))
		for i, r := range t.Rows {
			out[i] = r[ci]
		}
		return out, nil
	}
	return nil, fmt.Errorf("column %q: %w", name, ErrUndeclaredField)
}

func AsTable[F ~string](schema *Schema[F], records []*Record[F]) Table {
	t := Table{Columns: schema.Columns(), Rows: make([][]string, 0, len(records))}
	for _, r := range records {
		t.Rows = append(t.Rows, r.Strings())
	}
	return t
}

// FromTable keeps the declared columns of t. Undeclared columns are dropped
// and declared columns missing from t stay "".
func FromTable[F ~string](schema *Schema[F], t Table) ([]*Record[F], error) {
	pos := make([]int, schema.Len())
	for i := range pos {
		pos[i] = -1
	}
	for ci, c := range t.Columns {
		if i, ok := schema.index[F(c)]; ok {
			pos[i] = ci
		}
	}

	out := make([]*Record[F], 0, len(t.Rows))
	for ri, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("%s: row %d has %d cells, want %d", schema.name, ri, len(row), len(t.Columns))
		}
		r := Empty(schema)
		for i, ci := range pos {
			if ci >= 0 {
				r.values[i] = row[ci]
			}
		}
		out = append(out, r)
	}
	return out, nil
}
