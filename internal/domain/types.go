package domain

import (
	"encoding/json"
	"time"
)

// TableSpec describes one output table. Every column is text; rows arrive as
// the string cells of a record.Table.
type TableSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

type TargetConfig struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	Kind    string            `json:"kind" yaml:"kind"`
	DSN     string            `json:"dsn" yaml:"dsn"`
	Schema  string            `json:"schema,omitempty" yaml:"schema,omitempty"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

const (
	TargetKindCSV           = "csv"
	TargetKindSQLite        = "sqlite"
	TargetKindPostgres      = "postgres"
	TargetKindElasticsearch = "elasticsearch"
)

type Run struct {
	ID          string          `json:"id" yaml:"id"`
	Dataset     string          `json:"dataset" yaml:"dataset"`
	Profile     string          `json:"profile,omitempty" yaml:"profile,omitempty"`
	TargetID    string          `json:"target_id" yaml:"target_id"`
	TargetName  string          `json:"target_name" yaml:"target_name"`
	TargetKind  string          `json:"target_kind" yaml:"target_kind"`
	Seed        int64           `json:"seed" yaml:"seed"`
	Records     int             `json:"records" yaml:"records"`
	Mode        string          `json:"mode" yaml:"mode"`
	ConfigHash  string          `json:"config_hash" yaml:"config_hash"`
	Status      RunStatus       `json:"status" yaml:"status"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty" yaml:"-"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type RunStats struct {
	TablesWritten   int             `json:"tables_written"`
	TotalRows       int64           `json:"total_rows"`
	Collisions      int             `json:"collisions"`
	DurationSeconds float64         `json:"duration_seconds"`
	TableStats      []TableRunStats `json:"table_stats"`
}

type TableRunStats struct {
	Table           string  `json:"table"`
	RowsWritten     int64   `json:"rows_written"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RunRequest is everything a generation run needs besides reference data.
type RunRequest struct {
	Dataset     string        `json:"dataset"`
	Records     int           `json:"records"`
	Seed        *int64        `json:"seed,omitempty"`
	Now         *time.Time    `json:"now,omitempty"`
	State       string        `json:"state,omitempty"`
	UniqueLabel bool          `json:"unique_label,omitempty"`
	ProfileID   string        `json:"profile_id,omitempty"`
	PFraud      *float64      `json:"p_fraud,omitempty"`
	TargetID    string        `json:"target_id,omitempty"`
	Target      *TargetConfig `json:"target,omitempty"`
	Mode        string        `json:"mode,omitempty"`
	ExportDir   string        `json:"export_dir,omitempty"`
}

const (
	TableModeCreate   = "create"
	TableModeTruncate = "truncate"
	TableModeAppend   = "append"
)

type TargetCheck struct {
	TargetID      string    `json:"target_id" yaml:"target_id"`
	CheckedAt     time.Time `json:"checked_at" yaml:"checked_at"`
	OK            bool      `json:"ok" yaml:"ok"`
	LatencyMS     int64     `json:"latency_ms" yaml:"latency_ms"`
	ServerVersion string    `json:"server_version,omitempty" yaml:"server_version,omitempty"`
	Capabilities  []string  `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
}
