package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/config"
	"github.com/nao1215/probekit/internal/database"
	"github.com/nao1215/probekit/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved harness runs",
		Long: `History lists the harness runs saved in the database, newest first, with
their verdict counts.

Examples:
  # List every run
  probekit history

  # Last five runs of the embedded catalogue
  probekit history --catalogue-name scanf-fscanf --limit 5

  # Show the overflowing observations of a probe across runs
  probekit history --digest 3f2a9c0d11b7e845`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("catalogue-name", "", "Only list runs of this catalogue")
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of runs to list (0: all)")
	cmd.Flags().String("digest", "", "List overflowing observations of the probe with this digest")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	setupLogger(cmd)

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	flags := cmd.Flags()
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	digest, err := flags.GetString("digest")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if digest != "" {
		overflows, err := db.Overflows(ctx, digest)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, overflows)
		}
		return writeOverflows(out, digest, overflows)
	}

	name, err := flags.GetString("catalogue-name")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}

	runs, err := db.ListRuns(ctx, name, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, runs)
	}
	return writeRunList(out, runs)
}

// openHistory opens the history database selected by --db-dir. The
// database must already exist.
func openHistory(cmd *cobra.Command) (*database.RunDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w (run 'probekit harness' first)", err)
	}
	return db, nil
}

// writeRunList prints run metadata as a table.
func writeRunList(w io.Writer, runs []database.RunMetadata) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No harness runs found in the database.\n\nUse 'probekit harness' to run the catalogue.")
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Harness runs (%d):\n\n", len(runs))
	fmt.Fprintf(&sb, "  %-6s  %-20s  %-16s  %s\n", "ID", "Date", "Catalogue", "Verdicts")
	sb.WriteString("  " + strings.Repeat("-", 66) + "\n")
	for _, r := range runs {
		status := formatVerdicts(r.Verdicts)
		if r.Cancelled {
			status += " (cancelled)"
		}
		fmt.Fprintf(&sb, "  %-6d  %-20s  %-16s  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(r.Catalogue, 16), status)
	}
	sb.WriteString("\nUse 'probekit compare' to compare the latest two runs.\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// writeOverflows prints overflowing observations of one probe.
func writeOverflows(w io.Writer, digest string, overflows []model.Observation) error {
	if len(overflows) == 0 {
		_, err := fmt.Fprintf(w, "No overflows recorded for %s\n", digest)
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Overflows of %s (%d):\n\n", digest, len(overflows))
	for _, obs := range overflows {
		fmt.Fprintf(&sb, "  %s -> %s[%d]: input %d, overflow %d, after[0]=0x%02x\n",
			obs.Directive, obs.Buffer, obs.Capacity, obs.InputLen, obs.Overflow, obs.AfterFirstByte)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatVerdicts formats verdict counts as "C:n M:n S:n F:n", leaving out zeros.
func formatVerdicts(v map[model.Verdict]int) string {
	var parts []string
	for _, verdict := range []model.Verdict{
		model.VerdictConfirmed, model.VerdictMismatch, model.VerdictSkipped, model.VerdictFailed,
	} {
		if n := v[verdict]; n > 0 {
			parts = append(parts, fmt.Sprintf("%c:%d", strings.ToUpper(string(verdict))[0], n))
		}
	}
	if len(parts) == 0 {
		return "no probes"
	}
	return strings.Join(parts, " ")
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// truncate shortens s to n bytes with an ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
