// Package dataset turns the record generators into named tables that can be
// exported to CSV or handed to a target.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/mmrzaf/taxgen/internal/record"
)

const (
	KindIdentities = "identities"
	KindMef        = "mef"
)

type NamedTable struct {
	Name  string
	Table record.Table
}

type Dataset interface {
	Kind() string
	Generate(num int) ([]NamedTable, error)
}

// CollisionCounter is implemented by datasets that draw under a best-effort
// uniqueness policy.
type CollisionCounter interface {
	Collisions() int
}

// ExportCSV writes every table to dir/<name>.csv, one goroutine per table.
// The returned paths follow the order of tables.
func ExportCSV(ctx context.Context, dir string, tables []NamedTable) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	paths := make([]string, len(tables))
	g, ctx := errgroup.WithContext(ctx)
	for i, nt := range tables {
		paths[i] = filepath.Join(dir, nt.Name+".csv")
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writeCSV(paths[i], nt.Table); err != nil {
				return fmt.Errorf("export %s: %w", nt.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeCSV(path string, t record.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV loads a table written by ExportCSV.
func ReadCSV(path string) (record.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return record.Table{}, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return record.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(rows) == 0 {
		return record.Table{}, fmt.Errorf("%s: missing header", path)
	}
	return record.Table{Columns: rows[0], Rows: rows[1:]}, nil
}
