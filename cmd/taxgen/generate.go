package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmrzaf/taxgen/internal/app"
	"github.com/mmrzaf/taxgen/internal/dataset"
	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/infra/repos/profiles"
	"github.com/mmrzaf/taxgen/internal/infra/repos/targets"
	"github.com/mmrzaf/taxgen/internal/logging"
	"github.com/mmrzaf/taxgen/internal/refdata"
	"github.com/mmrzaf/taxgen/internal/registry"
	"github.com/mmrzaf/taxgen/internal/timeutil"
)

// genFlags are the flags shared by the generation commands.
type genFlags struct {
	seed      int64
	writeToDB string
	overwrite bool
	exportCSV string
	debug     bool
	now       string
}

func (f *genFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Seed for the random generator (random when omitted)")
	cmd.Flags().StringVar(&f.writeToDB, "write-to-db", "", "Target id or target file path to write to")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Truncate existing tables before writing")
	cmd.Flags().StringVar(&f.exportCSV, "export-csv", "", "Directory to export CSV files to")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&f.now, "now", "", "Reference time (RFC3339, YYYY-MM-DD or offset like -30d or -1y)")
}

// request fills the target, mode, seed and clock of req from the flags.
// Without --write-to-db the records go to a CSV directory: --export-csv when
// given, the configured output directory otherwise.
func (f *genFlags) request(cmd *cobra.Command, req *domain.RunRequest) error {
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		req.Seed = &seed
	}
	if f.now != "" {
		now, err := timeutil.ParseRelativeTime(f.now, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("invalid --now: %w", err)
		}
		req.Now = &now
	}

	req.Mode = cfg.DefaultMode
	if f.overwrite {
		req.Mode = domain.TableModeTruncate
	}

	switch {
	case f.writeToDB != "" && looksLikePath(f.writeToDB):
		t, err := targets.NewFileRepository(targetsDir).GetByPath(f.writeToDB)
		if err != nil {
			return err
		}
		req.Target = t
		req.ExportDir = f.exportCSV
	case f.writeToDB != "":
		req.TargetID = f.writeToDB
		req.ExportDir = f.exportCSV
	default:
		dir := f.exportCSV
		if dir == "" {
			dir = cfg.OutputDir
		}
		req.Target = &domain.TargetConfig{ID: "csv", Name: "csv", Kind: domain.TargetKindCSV, DSN: dir}
	}
	return nil
}

func (f *genFlags) execute(cmd *cobra.Command, req *domain.RunRequest) error {
	if err := f.request(cmd, req); err != nil {
		return err
	}

	level := logLevel
	if f.debug {
		level = "debug"
	}
	logger := logging.NewLoggerWithWriter(level, os.Stderr)
	defer logger.Sync()

	catalog, err := refdata.LoadCatalog(dataDir)
	if err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}
	for name, origin := range catalog.Origins() {
		logger.Debugw("refdata.loaded", map[string]any{"table": name, "origin": origin})
	}

	runRepo, err := openRuns()
	if err != nil {
		return err
	}
	defer runRepo.Close()

	svc := app.NewRunService(
		catalog,
		profiles.NewFileRepository(profilesDir),
		targets.NewFileRepository(targetsDir),
		runRepo,
		registry.DefaultDatasetRegistry(),
		cfg.BatchSize,
		cfg.DefaultMode,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := svc.Run(ctx, req)
	if err != nil {
		if run != nil {
			return fmt.Errorf("run %s failed: %w", run.ID, err)
		}
		return err
	}

	var stats domain.RunStats
	if err := json.Unmarshal(run.Stats, &stats); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	tables := make([]string, 0, len(stats.TableStats))
	for _, ts := range stats.TableStats {
		tables = append(tables, ts.Table)
	}
	fmt.Printf("Run %s completed: %s -> %s (%s)\n", run.ID, run.Dataset, run.TargetName, strings.Join(tables, ", "))
	fmt.Printf("Seed: %d\n", run.Seed)
	fmt.Printf("Total rows: %d\n", stats.TotalRows)
	if stats.Collisions > 0 {
		fmt.Printf("Uniqueness collisions: %d\n", stats.Collisions)
	}
	fmt.Printf("Duration: %.2fs\n", stats.DurationSeconds)
	return nil
}

func identitiesCmd() *cobra.Command {
	var (
		flags       genFlags
		numrec      int
		state       string
		uniqueLabel bool
	)

	cmd := &cobra.Command{
		Use:   "identities",
		Short: "Generate synthetic taxpayer identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.execute(cmd, &domain.RunRequest{
				Dataset:     dataset.KindIdentities,
				Records:     numrec,
				State:       strings.ToUpper(state),
				UniqueLabel: uniqueLabel,
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&numrec, "numrec", 10, "Number of identities to generate")
	cmd.Flags().StringVar(&state, "state", "", "Restrict addresses to one state (two-letter code)")
	cmd.Flags().BoolVar(&uniqueLabel, "add-unique-label", false, "Add a unique label column to every record")
	return cmd
}

func mefCmd() *cobra.Command {
	var (
		flags     genFlags
		nSamples  int
		pFraud    float64
		profileID string
	)

	cmd := &cobra.Command{
		Use:   "mef",
		Short: "Generate MeF filings (authentication header, return header, financial account)",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &domain.RunRequest{
				Dataset:   dataset.KindMef,
				Records:   nSamples,
				ProfileID: profileID,
			}
			if cmd.Flags().Changed("p-fraud") {
				p := pFraud
				req.PFraud = &p
			}
			return flags.execute(cmd, req)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&nSamples, "n-samples", 10, "Number of filings to generate")
	cmd.Flags().Float64Var(&pFraud, "p-fraud", 0, "Fraud probability (profile value when omitted)")
	cmd.Flags().StringVar(&profileID, "profile", "", "Profile id or file path (embedded default when omitted)")
	return cmd
}

func looksLikePath(ref string) bool {
	return strings.ContainsRune(ref, os.PathSeparator) ||
		strings.HasSuffix(ref, ".yaml") ||
		strings.HasSuffix(ref, ".yml") ||
		strings.HasSuffix(ref, ".json")
}
