// Package csvdir writes each table to <dir>/<table>.csv.
package csvdir

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/mmrzaf/taxgen/internal/domain"
)

var ErrHeaderMismatch = errors.New("existing csv header does not match table columns")

type CSVTarget struct {
	dir string
}

func NewCSVTarget(dir string) *CSVTarget {
	return &CSVTarget{dir: dir}
}

func (t *CSVTarget) Connect() error {
	return os.MkdirAll(t.dir, 0o755)
}

func (t *CSVTarget) Close() error { return nil }

func (t *CSVTarget) path(table string) string {
	return filepath.Join(t.dir, table+".csv")
}

func (t *CSVTarget) CreateTableIfNotExists(spec *domain.TableSpec) error {
	header, err := readHeader(t.path(spec.Name))
	if errors.Is(err, os.ErrNotExist) {
		return writeFile(t.path(spec.Name), spec.Columns)
	}
	if err != nil {
		return err
	}
	if !slices.Equal(header, spec.Columns) {
		return fmt.Errorf("%s: %w", spec.Name, ErrHeaderMismatch)
	}
	return nil
}

// TruncateTable keeps only the header row.
func (t *CSVTarget) TruncateTable(tableName string) error {
	header, err := readHeader(t.path(tableName))
	if err != nil {
		return err
	}
	return writeFile(t.path(tableName), header)
}

// InsertBatch appends rows. A missing file is started with columns as its
// header, so append mode works against an empty directory.
func (t *CSVTarget) InsertBatch(tableName string, columns []string, rows [][]string) error {
	path := t.path(tableName)
	header, err := readHeader(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := writeFile(path, columns); err != nil {
			return err
		}
	case err != nil:
		return err
	case !slices.Equal(header, columns):
		return fmt.Errorf("%s: %w", tableName, ErrHeaderMismatch)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty csv file", path)
	}
	return header, err
}

func writeFile(path string, header []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll([][]string{header}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
