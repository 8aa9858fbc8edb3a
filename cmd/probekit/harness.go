package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/catalogue"
	"github.com/nao1215/probekit/internal/config"
	"github.com/nao1215/probekit/internal/database"
	"github.com/nao1215/probekit/internal/harness"
	"github.com/nao1215/probekit/internal/model"
)

// errHarnessFailed is returned when a run ends with a mismatch or failure.
var errHarnessFailed = errors.New("harness run did not confirm every classification")

// NewHarnessCmd creates the harness command.
func NewHarnessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harness [probe...]",
		Short: "Confirm classifications by executing probes at their boundaries",
		Long: `Harness executes every catalogued probe against inputs of capacity-1,
capacity and capacity+1 bytes, with the destination buffer placed between
two guard buffers, and checks the observed writes against the static
classification.

A safe probe must never write past its buffer. A vulnerable probe must do so
for at least one input, and every write must match the predicted overflow,
including the off-by-one case where only the first byte of the following
buffer is zeroed.

Probes whose buffer size is unknown are skipped unless a runtime capacity is
configured, either with --capacity or in the configuration file:

  probes:
    unknown_scanf_percentage_s_malloc_arg:
      runtimeCapacity: 64

Runs are saved to the history database unless --no-save is given.

Examples:
  # Run the whole catalogue
  probekit harness

  # Run two probes with verbose observations
  probekit harness -v off_by_one_demo vuln_scanf_percentage_XX_s

  # Execute an indeterminate probe with a chosen capacity
  probekit harness --capacity vuln_scanf_percentage_s_arg=65`,
		Args: cobra.ArbitraryArgs,
		RunE: runHarnessCmd,
	}

	addCatalogueFlag(cmd)
	addReportFlags(cmd)
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of probes executed concurrently")
	cmd.Flags().StringArray("capacity", nil,
		"Runtime capacity for a probe with unknown buffer size (name=N, repeatable)")
	cmd.Flags().String("work-dir", "",
		"Directory for fscanf input files (default: XDG cache directory)")
	cmd.Flags().Bool("no-save", false,
		"Do not save the run to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHarnessCmd executes the harness command.
func runHarnessCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildHarnessConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := setupLogger(cmd)

	c, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}
	c, err = selectProbes(c, cfg.File, args)
	if err != nil {
		return err
	}

	capacities, err := runtimeCapacities(cmd, cfg.File, c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	runner := harness.New(
		harness.WithLogger(logger),
		harness.WithConcurrency(cfg.BatchSize),
		harness.WithRuntimeCapacities(capacities),
		harness.WithWorkDir(cfg.WorkDir),
	)
	report, runErr := runner.Run(ctx, c)

	if err := saveRun(context.WithoutCancel(ctx), cfg, report, logger); err != nil {
		logger.Error("failed to save run", "error", err)
	}

	output, closeFn, err := openReportOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = newReportWriter(cfg, output).Write(report)
	if err := closeJoin(err, closeFn); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("harness interrupted: %w", runErr)
	}
	if !report.Passed() {
		return fmt.Errorf("%w: %d mismatch, %d failed", errHarnessFailed,
			report.CountVerdict(model.VerdictMismatch), report.CountVerdict(model.VerdictFailed))
	}
	return nil
}

// buildHarnessConfig adds the harness flags to the common configuration.
func buildHarnessConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	workDir, err := flags.GetString("work-dir")
	if err != nil {
		return nil, err
	}
	cfg.WorkDir = harnessWorkDir(workDir)
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	return cfg, nil
}

// harnessWorkDir returns the directory for fscanf input files: dir when
// given, the XDG cache directory otherwise.
func harnessWorkDir(dir string) string {
	if dir != "" {
		return dir
	}
	return config.XDGCacheDir()
}

// selectProbes returns a catalogue holding the named probes, or every probe
// when names is empty, without the probes the configuration skips.
func selectProbes(c *catalogue.Catalogue, f *config.File, names []string) (*catalogue.Catalogue, error) {
	selected := &catalogue.Catalogue{Name: c.Name}

	if len(names) > 0 {
		for _, name := range names {
			p, err := c.Lookup(name)
			if err != nil {
				return nil, err
			}
			selected.Probes = append(selected.Probes, p)
		}
		return selected, nil
	}

	for _, p := range c.Probes {
		if f.GetProbeConfig(p.Name).Skip {
			continue
		}
		selected.Probes = append(selected.Probes, p)
	}
	return selected, nil
}

// runtimeCapacities merges configured runtime capacities with --capacity
// flags, which win.
func runtimeCapacities(cmd *cobra.Command, f *config.File, c *catalogue.Catalogue) (map[string]int, error) {
	names := make([]string, 0, len(c.Probes))
	for _, p := range c.Probes {
		names = append(names, p.Name)
	}
	capacities := f.RuntimeCapacities(names)

	values, err := cmd.Flags().GetStringArray("capacity")
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		name, size, ok := strings.Cut(v, "=")
		n, err := strconv.Atoi(size)
		if !ok || err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: --capacity %q (want name=N)", config.ErrInvalidRuntimeCapacity, v)
		}
		if !slices.Contains(names, name) {
			return nil, fmt.Errorf("%w: %s", catalogue.ErrProbeNotFound, name)
		}
		capacities[name] = n
	}
	return capacities, nil
}

// saveRun saves the run to the database if enabled.
func saveRun(ctx context.Context, cfg *config.Config, report *model.HarnessReport, logger *slog.Logger) error {
	if !cfg.SaveToDB {
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveRun(ctx, report)
	if err != nil {
		return err
	}

	logger.Info("run saved to database", "id", id, "path", db.Path())
	return nil
}
