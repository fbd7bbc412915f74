package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mmrzaf/taxgen/internal/domain"
)

// maxParams is the bind parameter limit of the Postgres wire protocol.
const maxParams = 65535

type PostgresTarget struct {
	dsn    string
	schema string
	db     *sql.DB
}

func NewPostgresTarget(dsn, schema string) *PostgresTarget {
	if schema == "" {
		schema = "public"
	}
	return &PostgresTarget{
		dsn:    dsn,
		schema: schema,
	}
}

func (t *PostgresTarget) Connect() error {
	db, err := sql.Open("postgres", t.dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	t.db = db
	return nil
}

func (t *PostgresTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *PostgresTarget) ServerVersion() (string, error) {
	var v string
	err := t.db.QueryRow("SHOW server_version").Scan(&v)
	return v, err
}

func (t *PostgresTarget) qualified(table string) string {
	return pq.QuoteIdentifier(t.schema) + "." + pq.QuoteIdentifier(table)
}

func (t *PostgresTarget) CreateTableIfNotExists(spec *domain.TableSpec) error {
	columnDefs := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		columnDefs[i] = pq.QuoteIdentifier(col) + " TEXT"
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		t.qualified(spec.Name), strings.Join(columnDefs, ", "))
	_, err := t.db.Exec(createSQL)
	return err
}

func (t *PostgresTarget) TruncateTable(tableName string) error {
	_, err := t.db.Exec("TRUNCATE TABLE " + t.qualified(tableName))
	return err
}

func (t *PostgresTarget) InsertBatch(tableName string, columns []string, rows [][]string) error {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}
	chunk := max(maxParams/len(columns), 1)

	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for lo := 0; lo < len(rows); lo += chunk {
		hi := min(lo+chunk, len(rows))
		query, args, err := buildInsert(t.qualified(tableName), columns, rows[lo:hi])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// buildInsert renders one multi-row INSERT with $n placeholders.
func buildInsert(table string, columns []string, rows [][]string) (string, []any, error) {
	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = pq.QuoteIdentifier(col)
	}

	placeholders := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(columns))
		}
		rowPlaceholders := make([]string, len(columns))
		for j := range columns {
			rowPlaceholders[j] = fmt.Sprintf("$%d", i*len(columns)+j+1)
			args = append(args, row[j])
		}
		placeholders[i] = "(" + strings.Join(rowPlaceholders, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}
