package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/taxgen/internal/app"
	"github.com/mmrzaf/taxgen/internal/config"
	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/infra/repos/profiles"
	"github.com/mmrzaf/taxgen/internal/infra/repos/runs"
	"github.com/mmrzaf/taxgen/internal/infra/repos/targets"
	"github.com/mmrzaf/taxgen/internal/validation"
)

var (
	cfg         *config.Config
	dataDir     string
	profilesDir string
	targetsDir  string
	runsDBPath  string
	logLevel    string
)

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	rootCmd := &cobra.Command{
		Use:           "taxgen",
		Short:         "Synthetic taxpayer and e-file record generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", cfg.DataDir, "Reference data directory (embedded tables when empty)")
	rootCmd.PersistentFlags().StringVar(&profilesDir, "profiles-dir", cfg.ProfilesDir, "Profiles directory")
	rootCmd.PersistentFlags().StringVar(&targetsDir, "targets-dir", cfg.TargetsDir, "Targets directory")
	rootCmd.PersistentFlags().StringVar(&runsDBPath, "runs-db", cfg.RunsDBPath, "Runs database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level")

	rootCmd.AddCommand(identitiesCmd())
	rootCmd.AddCommand(mefCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.SetGlobalNormalizationFunc(dashedFlagNames)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dashedFlagNames lets every flag also be spelled with underscores, as in
// --n_samples or --export_csv.
func dashedFlagNames(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func printYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func openRuns() (*runs.SQLiteRepository, error) {
	repo := runs.NewSQLiteRepository(runsDBPath)
	if err := repo.Init(); err != nil {
		return nil, err
	}
	return repo, nil
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}

	var (
		limit  int
		status string
		format string
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRuns()
			if err != nil {
				return err
			}
			defer repo.Close()

			list, err := repo.List(limit, status)
			if err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATASET\tRECORDS\tTARGET\tSTATUS\tSTARTED")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					r.ID[:8], r.Dataset, r.Records, r.TargetName, r.Status, r.StartedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Limit results")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRuns()
			if err != nil {
				return err
			}
			defer repo.Close()

			run, err := repo.Get(args[0])
			if err != nil {
				return err
			}
			if err := printYAML(run); err != nil {
				return err
			}
			if len(run.Stats) == 0 {
				return nil
			}
			var stats domain.RunStats
			if err := json.Unmarshal(run.Stats, &stats); err != nil {
				return fmt.Errorf("decode stats: %w", err)
			}
			return printYAML(map[string]domain.RunStats{"stats": stats})
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func targetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage targets",
	}

	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := targets.NewFileRepository(targetsDir).List()
			if err != nil {
				return err
			}
			list = targets.RedactTargets(list)

			if format == "json" {
				data, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tDSN")
			for _, t := range list {
				dsn := t.DSN
				if len(dsn) > 50 {
					dsn = dsn[:47] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Kind, dsn)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	checkCmd := &cobra.Command{
		Use:   "check <id|path>",
		Short: "Check connectivity and write capabilities of a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := loadTarget(targets.NewFileRepository(targetsDir), args[0])
			if err != nil {
				return err
			}
			check, err := app.CheckTarget(target)
			if check != nil {
				if perr := printYAML(check); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.AddCommand(listCmd, checkCmd)
	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect generation profiles",
	}

	showCmd := &cobra.Command{
		Use:   "show [id|path]",
		Short: "Print a profile (the embedded default when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile(args)
			if err != nil {
				return err
			}
			data, err := p.Tree.Marshal()
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [id|path]",
		Short: "Validate a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile(args)
			if err != nil {
				return err
			}
			if err := validation.NewValidator(nil).ValidateProfile(p.Tree); err != nil {
				return fmt.Errorf("profile '%s' is invalid: %w", p.ID, err)
			}
			fmt.Printf("Profile '%s' is valid\n", p.ID)
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func loadProfile(args []string) (*profiles.Profile, error) {
	repo := profiles.NewFileRepository(profilesDir)
	if len(args) == 0 {
		return repo.Get(profiles.DefaultID)
	}
	if looksLikePath(args[0]) {
		return repo.GetByPath(args[0])
	}
	return repo.Get(args[0])
}

func loadTarget(repo *targets.FileRepository, ref string) (*domain.TargetConfig, error) {
	if looksLikePath(ref) {
		return repo.GetByPath(ref)
	}
	return repo.Get(ref)
}
