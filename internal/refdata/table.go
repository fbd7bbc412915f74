// Package refdata holds the immutable reference tables that every source
// samples from: names, cities, zip codes, age brackets, streets, email
// domains and banks.
package refdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrUnknownColumn = errors.New("unknown column")

// Table is read-only once built. Filter and Where return new tables that
// share the underlying cells.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]string
}

func NewTable(name string, columns []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("table %s: empty column name at position %d", name, i)
		}
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %q", name, c)
		}
		index[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("table %s: row %d has %d cells, want %d", name, i, len(r), len(columns))
		}
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = strings.TrimSpace(c)
	}
	return &Table{name: name, columns: cols, index: index, rows: rows}, nil
}

// LoadCSV reads a header row followed by data rows.
func LoadCSV(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("table %s: reading header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := make([][]string, 0)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		rows = append(rows, rec)
	}
	return NewTable(name, header, rows)
}

func (t *Table) Name() string      { return t.name }
func (t *Table) Len() int          { return len(t.rows) }
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

func (t *Table) HasColumn(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *Table) Row(i int) Row {
	return Row{table: t, idx: i}
}

func (t *Table) colIndex(col string) (int, error) {
	i, ok := t.index[col]
	if !ok {
		return 0, fmt.Errorf("table %s: %w %q", t.name, ErrUnknownColumn, col)
	}
	return i, nil
}

// Floats parses a numeric column, typically a weight such as Population,
// Freq or Count. Empty cells read as zero.
func (t *Table) Floats(col string) ([]float64, error) {
	ci, err := t.colIndex(col)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		v, err := parseFloat(r[ci])
		if err != nil {
			return nil, fmt.Errorf("table %s: row %d column %s: %w", t.name, i, col, err)
		}
		out[i] = v
	}
	return out, nil
}

func (t *Table) Strings(col string) ([]string, error) {
	ci, err := t.colIndex(col)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[ci]
	}
	return out, nil
}

// Filter keeps rows whose col equals value (case-insensitive, trimmed).
func (t *Table) Filter(col, value string) (*Table, error) {
	ci, err := t.colIndex(col)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(value))
	return t.Where(func(r Row) bool {
		return strings.ToLower(strings.TrimSpace(r.cells()[ci])) == want
	}), nil
}

func (t *Table) Where(keep func(Row) bool) *Table {
	rows := make([][]string, 0, len(t.rows))
	for i := range t.rows {
		if keep(t.Row(i)) {
			rows = append(rows, t.rows[i])
		}
	}
	return &Table{name: t.name, columns: t.columns, index: t.index, rows: rows}
}

type Row struct {
	table *Table
	idx   int
}

func (r Row) Valid() bool {
	return r.table != nil && r.idx >= 0 && r.idx < len(r.table.rows)
}

func (r Row) Index() int { return r.idx }

func (r Row) cells() []string { return r.table.rows[r.idx] }

func (r Row) String(col string) string {
	if !r.Valid() {
		return ""
	}
	ci, err := r.table.colIndex(col)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(r.cells()[ci])
}

func (r Row) Float(col string) (float64, error) {
	if !r.Valid() {
		return 0, errors.New("invalid row")
	}
	ci, err := r.table.colIndex(col)
	if err != nil {
		return 0, err
	}
	return parseFloat(r.cells()[ci])
}

func (r Row) Int(col string) (int, error) {
	f, err := r.Float(col)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (r Row) List(col string) []string {
	return ParseList(r.String(col))
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseList decodes list cells written as Python-style literals
// (['a', 'b'] or [1, 2]) or as pipe/semicolon separated values.
func ParseList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}

	sep := ","
	switch {
	case strings.Contains(s, "|"):
		sep = "|"
	case strings.Contains(s, ";"):
		sep = ";"
	}

	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `'"`)
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
