package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mmrzaf/taxgen/internal/domain"
)

// tsLayout is fixed width so ORDER BY started_at sorts chronologically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, dataset, profile, target_id, target_name, target_kind,
	seed, records, mode, config_hash, status, started_at, completed_at, stats, error`

type SQLiteRepository struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{dbPath: dbPath}
}

func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func (r *SQLiteRepository) Init() error {
	if dir := filepath.Dir(r.dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := sql.Open("sqlite3", r.dbPath)
	if err != nil {
		return err
	}
	r.db = db

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset TEXT NOT NULL,
		profile TEXT,
		target_id TEXT NOT NULL,
		target_name TEXT NOT NULL,
		target_kind TEXT NOT NULL,
		seed INTEGER NOT NULL,
		records INTEGER NOT NULL,
		mode TEXT NOT NULL,
		config_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		stats TEXT,
		error TEXT
	)`

	_, err = r.db.Exec(createTableSQL)
	return err
}

func (r *SQLiteRepository) Create(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		run.ID, run.Dataset, run.Profile,
		run.TargetID, run.TargetName, run.TargetKind,
		run.Seed, run.Records, run.Mode, run.ConfigHash, run.Status,
		run.StartedAt.UTC().Format(tsLayout), completedAt(run),
		statsText(run), run.Error,
	)
	return err
}

func (r *SQLiteRepository) Update(run *domain.Run) error {
	query := `
		UPDATE runs SET
			status = ?, completed_at = ?, stats = ?, error = ?
		WHERE id = ?
	`
	res, err := r.db.Exec(query, run.Status, completedAt(run), statsText(run), run.Error, run.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *SQLiteRepository) Get(id string) (*domain.Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

func (r *SQLiteRepository) List(limit int, status string) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`

	args := make([]interface{}, 0)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.Run, error) {
	var run domain.Run
	var startedAtStr string
	var profile, completedAtStr, statsStr, errorStr sql.NullString

	err := s.Scan(
		&run.ID, &run.Dataset, &profile,
		&run.TargetID, &run.TargetName, &run.TargetKind,
		&run.Seed, &run.Records, &run.Mode, &run.ConfigHash, &run.Status,
		&startedAtStr, &completedAtStr, &statsStr, &errorStr,
	)
	if err != nil {
		return nil, err
	}

	run.Profile = profile.String
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAtStr)
	if completedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339, completedAtStr.String)
		run.CompletedAt = &t
	}
	if statsStr.Valid && statsStr.String != "" {
		run.Stats = json.RawMessage(statsStr.String)
	}
	run.Error = errorStr.String
	return &run, nil
}

func completedAt(run *domain.Run) interface{} {
	if run.CompletedAt == nil {
		return nil
	}
	return run.CompletedAt.UTC().Format(tsLayout)
}

func statsText(run *domain.Run) interface{} {
	if len(run.Stats) == 0 {
		return nil
	}
	return string(run.Stats)
}
