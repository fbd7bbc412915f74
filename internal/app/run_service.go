package app

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmrzaf/taxgen/internal/dataset"
	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/exec"
	"github.com/mmrzaf/taxgen/internal/hashing"
	"github.com/mmrzaf/taxgen/internal/infra/repos/profiles"
	"github.com/mmrzaf/taxgen/internal/infra/repos/runs"
	"github.com/mmrzaf/taxgen/internal/infra/repos/targets"
	"github.com/mmrzaf/taxgen/internal/logging"
	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/registry"
	"github.com/mmrzaf/taxgen/internal/validation"
)

type RunService struct {
	catalog     *refdata.Catalog
	profileRepo profiles.Repository
	targetRepo  targets.Repository
	runRepo     runs.Repository
	datasets    *registry.DatasetRegistry
	validator   *validation.Validator
	executor    *exec.Executor
	defaultMode string
	clock       func() time.Time
	logger      *logging.Logger
}

func NewRunService(
	catalog *refdata.Catalog,
	profileRepo profiles.Repository,
	targetRepo targets.Repository,
	runRepo runs.Repository,
	datasets *registry.DatasetRegistry,
	batchSize int,
	defaultMode string,
	logger *logging.Logger,
) *RunService {
	if datasets == nil {
		datasets = registry.DefaultDatasetRegistry()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if defaultMode == "" {
		defaultMode = domain.TableModeCreate
	}
	return &RunService{
		catalog:     catalog,
		profileRepo: profileRepo,
		targetRepo:  targetRepo,
		runRepo:     runRepo,
		datasets:    datasets,
		validator:   validation.NewValidator(datasets),
		executor:    exec.NewExecutor(batchSize, logger),
		defaultMode: defaultMode,
		clock:       time.Now,
		logger:      logger.WithComponent("run_service"),
	}
}

// Run generates req.Records records and writes them to the requested target,
// blocking until the write finishes. Once the run row exists its final
// status is recorded even when generation or writing fails; the returned run
// then carries the error and err is non-nil.
func (s *RunService) Run(ctx context.Context, req *domain.RunRequest) (*domain.Run, error) {
	if req.Mode == "" {
		req.Mode = s.defaultMode
	}
	if err := s.validator.ValidateRunRequest(req); err != nil {
		return nil, fmt.Errorf("invalid run request: %w", err)
	}

	targetCfg, err := s.resolveTarget(req)
	if err != nil {
		return nil, err
	}
	prof, err := s.resolveProfile(req)
	if err != nil {
		return nil, err
	}

	seed := generateSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	now := s.clock().UTC()
	if req.Now != nil {
		now = req.Now.UTC()
	}

	hc := hashing.RunConfig{
		Dataset:     req.Dataset,
		Records:     req.Records,
		Seed:        seed,
		Now:         now.Format(time.RFC3339),
		State:       req.State,
		UniqueLabel: req.UniqueLabel,
		PFraud:      req.PFraud,
		Mode:        req.Mode,
	}
	profileID := ""
	if prof != nil {
		profileID = prof.ID
		if hc.ProfileHash, err = hashing.HashProfile(prof.Tree); err != nil {
			return nil, fmt.Errorf("failed to hash profile: %w", err)
		}
	}
	configHash, err := hashing.HashRunConfig(hc, targetCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to hash run config: %w", err)
	}

	run := &domain.Run{
		Dataset:    req.Dataset,
		Profile:    profileID,
		TargetID:   targetCfg.ID,
		TargetName: targetCfg.Name,
		TargetKind: targetCfg.Kind,
		Seed:       seed,
		Records:    req.Records,
		Mode:       req.Mode,
		ConfigHash: configHash,
		Status:     domain.RunStatusRunning,
		StartedAt:  s.clock().UTC(),
	}
	if err := s.runRepo.Create(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	redacted := targets.RedactTarget(targetCfg)
	s.logger.Infow("run.started", map[string]any{
		"run_id":      run.ID,
		"dataset":     run.Dataset,
		"profile":     profileID,
		"records":     run.Records,
		"seed":        seed,
		"mode":        run.Mode,
		"target_kind": redacted.Kind,
		"target_dsn":  redacted.DSN,
		"config_hash": configHash,
	})

	params := registry.Params{
		Catalog:     s.catalog,
		Seed:        seed,
		Now:         now,
		State:       req.State,
		UniqueLabel: req.UniqueLabel,
		PFraud:      req.PFraud,
		Logger:      s.logger,
	}
	if prof != nil {
		params.Profile = prof.Tree
	}

	stats, err := s.execute(ctx, run, params, targetCfg, req)
	if err != nil {
		s.markFailed(run, err)
		return run, err
	}

	completed := s.clock().UTC()
	stats.DurationSeconds = completed.Sub(run.StartedAt).Seconds()
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		s.markFailed(run, err)
		return run, err
	}
	run.Stats = statsJSON
	run.Status = domain.RunStatusSuccess
	run.CompletedAt = &completed
	if err := s.runRepo.Update(run); err != nil {
		s.logger.Errorw("run.update_failed", map[string]any{"run_id": run.ID, "error": err.Error()})
		return run, fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Infow("run.completed", map[string]any{
		"run_id":           run.ID,
		"tables":           stats.TablesWritten,
		"total_rows":       stats.TotalRows,
		"collisions":       stats.Collisions,
		"duration_seconds": stats.DurationSeconds,
	})
	return run, nil
}

func (s *RunService) execute(ctx context.Context, run *domain.Run, params registry.Params, targetCfg *domain.TargetConfig, req *domain.RunRequest) (*domain.RunStats, error) {
	ds, err := s.datasets.Build(req.Dataset, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset: %w", err)
	}
	tables, err := ds.Generate(req.Records)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if err := s.validator.ValidateTables(tables); err != nil {
		return nil, fmt.Errorf("generated tables are invalid: %w", err)
	}

	tgt, err := NewTarget(targetCfg)
	if err != nil {
		return nil, err
	}
	stats, err := s.executor.Write(ctx, tables, tgt, req.Mode)
	if err != nil {
		return nil, err
	}

	if req.ExportDir != "" {
		dir := filepath.Join(req.ExportDir, run.ID)
		paths, err := dataset.ExportCSV(ctx, dir, tables)
		if err != nil {
			return nil, fmt.Errorf("csv export failed: %w", err)
		}
		s.logger.Infow("run.exported", map[string]any{"run_id": run.ID, "files": strings.Join(paths, ",")})
	}

	if cc, ok := ds.(dataset.CollisionCounter); ok {
		stats.Collisions = cc.Collisions()
	}
	return stats, nil
}

func (s *RunService) resolveTarget(req *domain.RunRequest) (*domain.TargetConfig, error) {
	if req.Target != nil {
		return req.Target, nil
	}
	if s.targetRepo == nil {
		return nil, errors.New("no target repository configured")
	}
	t, err := s.targetRepo.Get(req.TargetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}
	if err := s.validator.ValidateTarget(t); err != nil {
		return nil, fmt.Errorf("target validation failed: %w", err)
	}
	return t, nil
}

// resolveProfile returns nil for datasets that take no profile. A ProfileID
// that looks like a file path is loaded relative to the profiles directory.
func (s *RunService) resolveProfile(req *domain.RunRequest) (*profiles.Profile, error) {
	if req.Dataset != dataset.KindMef {
		return nil, nil
	}
	if s.profileRepo == nil {
		if req.ProfileID != "" && req.ProfileID != profiles.DefaultID {
			return nil, errors.New("no profile repository configured")
		}
		return profiles.Default(), nil
	}

	var (
		p   *profiles.Profile
		err error
	)
	if isPath(req.ProfileID) {
		p, err = s.profileRepo.GetByPath(req.ProfileID)
	} else {
		p, err = s.profileRepo.Get(req.ProfileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := s.validator.ValidateProfile(p.Tree); err != nil {
		return nil, fmt.Errorf("profile %s is invalid: %w", p.ID, err)
	}
	return p, nil
}

func (s *RunService) markFailed(run *domain.Run, cause error) {
	now := s.clock().UTC()
	run.Status = domain.RunStatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &now
	s.logger.Errorw("run.failed", map[string]any{"run_id": run.ID, "error": run.Error})
	if err := s.runRepo.Update(run); err != nil {
		s.logger.Errorw("run.update_failed", map[string]any{"run_id": run.ID, "error": err.Error()})
	}
}

func (s *RunService) GetRun(id string) (*domain.Run, error) {
	return s.runRepo.Get(id)
}

func (s *RunService) ListRuns(limit int, status string) ([]*domain.Run, error) {
	return s.runRepo.List(limit, status)
}

func isPath(id string) bool {
	return strings.ContainsRune(id, filepath.Separator) ||
		strings.HasSuffix(id, ".yaml") ||
		strings.HasSuffix(id, ".yml") ||
		strings.HasSuffix(id, ".json")
}

func generateSeed() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
