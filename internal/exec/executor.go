package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/mmrzaf/taxgen/internal/dataset"
	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/logging"
)

const DefaultBatchSize = 1000

type Target interface {
	Connect() error
	Close() error
	CreateTableIfNotExists(spec *domain.TableSpec) error
	TruncateTable(tableName string) error
	InsertBatch(tableName string, columns []string, rows [][]string) error
}

type Executor struct {
	batchSize int
	logger    *logging.Logger
}

func NewExecutor(batchSize int, logger *logging.Logger) *Executor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{batchSize: batchSize, logger: logger.WithComponent("exec")}
}

// Write sends every table to target under mode, in order, in batches.
func (e *Executor) Write(ctx context.Context, tables []dataset.NamedTable, target Target, mode string) (*domain.RunStats, error) {
	if mode == "" {
		mode = domain.TableModeCreate
	}
	switch mode {
	case domain.TableModeCreate, domain.TableModeTruncate, domain.TableModeAppend:
	default:
		return nil, fmt.Errorf("unknown table mode: %s", mode)
	}

	if err := target.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to target: %w", err)
	}
	defer target.Close()

	stats := &domain.RunStats{TableStats: make([]domain.TableRunStats, 0, len(tables))}
	start := time.Now()
	for _, nt := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tableStart := time.Now()
		spec := &domain.TableSpec{Name: nt.Name, Columns: nt.Table.Columns}

		switch mode {
		case domain.TableModeCreate:
			if err := target.CreateTableIfNotExists(spec); err != nil {
				return nil, fmt.Errorf("failed to create table '%s': %w", nt.Name, err)
			}
		case domain.TableModeTruncate:
			if err := target.CreateTableIfNotExists(spec); err != nil {
				return nil, fmt.Errorf("failed to create table '%s': %w", nt.Name, err)
			}
			if err := target.TruncateTable(nt.Name); err != nil {
				return nil, fmt.Errorf("failed to truncate table '%s': %w", nt.Name, err)
			}
		}

		rows := nt.Table.Rows
		for lo := 0; lo < len(rows); lo += e.batchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			hi := min(lo+e.batchSize, len(rows))
			if err := target.InsertBatch(nt.Name, spec.Columns, rows[lo:hi]); err != nil {
				return nil, fmt.Errorf("failed to insert batch %d-%d for table '%s': %w", lo, hi, nt.Name, err)
			}
		}

		stats.TableStats = append(stats.TableStats, domain.TableRunStats{
			Table:           nt.Name,
			RowsWritten:     int64(len(rows)),
			DurationSeconds: time.Since(tableStart).Seconds(),
		})
		stats.TotalRows += int64(len(rows))
		e.logger.Debugw("table.written", map[string]any{"table": nt.Name, "rows": len(rows), "mode": mode})
	}

	stats.TablesWritten = len(tables)
	stats.DurationSeconds = time.Since(start).Seconds()
	return stats, nil
}
