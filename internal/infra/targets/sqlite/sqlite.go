package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mmrzaf/taxgen/internal/domain"
)

type SQLiteTarget struct {
	path string
	db   *sql.DB
}

func NewSQLiteTarget(path string) *SQLiteTarget {
	return &SQLiteTarget{path: path}
}

func (t *SQLiteTarget) Connect() error {
	db, err := sql.Open("sqlite3", t.path)
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

func (t *SQLiteTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *SQLiteTarget) ServerVersion() (string, error) {
	var v string
	err := t.db.QueryRow("SELECT sqlite_version()").Scan(&v)
	return v, err
}

func (t *SQLiteTarget) CreateTableIfNotExists(spec *domain.TableSpec) error {
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name=?`
	var name string
	err := t.db.QueryRow(query, spec.Name).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	columnDefs := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		columnDefs[i] = quote(col) + " TEXT"
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quote(spec.Name), strings.Join(columnDefs, ", "))
	_, err = t.db.Exec(createSQL)
	return err
}

func (t *SQLiteTarget) TruncateTable(tableName string) error {
	_, err := t.db.Exec(fmt.Sprintf("DELETE FROM %s", quote(tableName)))
	return err
}

func (t *SQLiteTarget) InsertBatch(tableName string, columns []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, c := range columns {
		placeholders[i] = "?"
		quoted[i] = quote(c)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(tableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for ri, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d cells, want %d", ri, len(row), len(columns))
		}
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
