package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/taxgen/internal/dataset"
	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/infra/repos/profiles"
	"github.com/mmrzaf/taxgen/internal/infra/repos/runs"
	"github.com/mmrzaf/taxgen/internal/infra/repos/targets"
	"github.com/mmrzaf/taxgen/internal/mef"
	"github.com/mmrzaf/taxgen/internal/refdata"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *RunService
	runRepo *runs.SQLiteRepository
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cat, err := refdata.EmbeddedCatalog()
	require.NoError(t, err)

	runRepo := runs.NewSQLiteRepository(filepath.Join(dir, "runs.sqlite"))
	require.NoError(t, runRepo.Init())
	t.Cleanup(func() { _ = runRepo.Close() })

	targetsDir := filepath.Join(dir, "targets")
	require.NoError(t, os.MkdirAll(targetsDir, 0o755))
	targetYAML := "name: local\nkind: sqlite\ndsn: " + filepath.Join(dir, "out.sqlite") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(targetsDir, "local.yaml"), []byte(targetYAML), 0o644))

	svc := NewRunService(
		cat,
		profiles.NewFileRepository(filepath.Join(dir, "profiles")),
		targets.NewFileRepository(targetsDir),
		runRepo,
		nil,
		4,
		"",
		nil,
	)
	return &fixture{svc: svc, runRepo: runRepo, dir: dir}
}

func seedPtr(v int64) *int64 { return &v }

func countRows(t *testing.T, dsn, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestRun_IdentitiesToSQLite(t *testing.T) {
	f := newFixture(t)

	run, err := f.svc.Run(context.Background(), &domain.RunRequest{
		Dataset:     dataset.KindIdentities,
		Records:     10,
		Seed:        seedPtr(7),
		Now:         &fixedNow,
		UniqueLabel: true,
		TargetID:    "local",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, domain.TableModeCreate, run.Mode)
	assert.Equal(t, int64(7), run.Seed)
	assert.NotEmpty(t, run.ConfigHash)
	assert.Empty(t, run.Profile)

	stored, err := f.svc.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	var stats domain.RunStats
	require.NoError(t, json.Unmarshal(stored.Stats, &stats))
	assert.Equal(t, 1, stats.TablesWritten)
	assert.Equal(t, int64(10), stats.TotalRows)

	assert.Equal(t, 10, countRows(t, filepath.Join(f.dir, "out.sqlite"), dataset.IdentitiesTable))
}

func TestRun_SameInputsSameHash(t *testing.T) {
	f := newFixture(t)
	req := func() *domain.RunRequest {
		return &domain.RunRequest{
			Dataset:  dataset.KindIdentities,
			Records:  3,
			Seed:     seedPtr(1),
			Now:      &fixedNow,
			TargetID: "local",
			Mode:     domain.TableModeTruncate,
		}
	}
	a, err := f.svc.Run(context.Background(), req())
	require.NoError(t, err)
	b, err := f.svc.Run(context.Background(), req())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.ConfigHash, b.ConfigHash)
	assert.Equal(t, 3, countRows(t, filepath.Join(f.dir, "out.sqlite"), dataset.IdentitiesTable))

	list, err := f.svc.ListRuns(10, string(domain.RunStatusSuccess))
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRun_MefToCSVWithExport(t *testing.T) {
	f := newFixture(t)
	csvDir := filepath.Join(f.dir, "csv")
	exportDir := filepath.Join(f.dir, "export")
	pFraud := 0.5

	run, err := f.svc.Run(context.Background(), &domain.RunRequest{
		Dataset:   dataset.KindMef,
		Records:   12,
		Seed:      seedPtr(19),
		Now:       &fixedNow,
		PFraud:    &pFraud,
		Target:    &domain.TargetConfig{Name: "csv", Kind: domain.TargetKindCSV, DSN: csvDir},
		ExportDir: exportDir,
	})
	require.NoError(t, err)
	assert.Equal(t, profiles.DefaultID, run.Profile)

	var stats domain.RunStats
	require.NoError(t, json.Unmarshal(run.Stats, &stats))
	assert.Equal(t, 3, stats.TablesWritten)
	assert.Equal(t, int64(36), stats.TotalRows)

	for _, name := range []string{mef.AuthSchema.Name(), mef.ReturnSchema.Name(), mef.FinSchema.Name()} {
		written, err := dataset.ReadCSV(filepath.Join(csvDir, name+".csv"))
		require.NoError(t, err, name)
		assert.Len(t, written.Rows, 12, name)

		exported, err := dataset.ReadCSV(filepath.Join(exportDir, run.ID, name+".csv"))
		require.NoError(t, err, name)
		assert.Equal(t, written, exported, name)
	}
}

func TestRun_FailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(f.dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	run, err := f.svc.Run(context.Background(), &domain.RunRequest{
		Dataset: dataset.KindIdentities,
		Records: 2,
		Seed:    seedPtr(3),
		Target:  &domain.TargetConfig{Name: "broken", Kind: domain.TargetKindCSV, DSN: filepath.Join(blocker, "out")},
	})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusFailed, run.Status)

	stored, err := f.runRepo.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestRun_InvalidRequestCreatesNoRun(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Run(context.Background(), &domain.RunRequest{
		Dataset:  "payroll",
		Records:  1,
		TargetID: "local",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dataset")

	_, err = f.svc.Run(context.Background(), &domain.RunRequest{
		Dataset:   dataset.KindMef,
		Records:   1,
		TargetID:  "local",
		ProfileID: "missing",
	})
	require.ErrorIs(t, err, profiles.ErrNotFound)

	list, err := f.svc.ListRuns(10, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCheckTarget(t *testing.T) {
	dir := t.TempDir()
	all := []string{CapabilityCreate, CapabilityInsert, CapabilityTruncate}

	sqliteCheck, err := CheckTarget(&domain.TargetConfig{ID: "db", Name: "db", Kind: domain.TargetKindSQLite, DSN: filepath.Join(dir, "c.sqlite")})
	require.NoError(t, err)
	assert.True(t, sqliteCheck.OK)
	assert.NotEmpty(t, sqliteCheck.ServerVersion)
	assert.Equal(t, all, sqliteCheck.Capabilities)

	csvCheck, err := CheckTarget(&domain.TargetConfig{ID: "files", Name: "files", Kind: domain.TargetKindCSV, DSN: filepath.Join(dir, "csv")})
	require.NoError(t, err)
	assert.True(t, csvCheck.OK)
	assert.Equal(t, all, csvCheck.Capabilities)

	bad, err := CheckTarget(&domain.TargetConfig{ID: "bad", Name: "bad", Kind: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.False(t, bad.OK)
	assert.NotEmpty(t, bad.Error)
}
