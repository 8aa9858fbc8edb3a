package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/database"
	"github.com/nao1215/probekit/internal/model"
)

// Constants for comparison directions.
const (
	directionRegressed = "regressed"
	directionImproved  = "improved"
	directionUnchanged = "unchanged"
)

// errNotEnoughRuns is returned when fewer than two runs are available.
var errNotEnoughRuns = errors.New("at least 2 runs are required for comparison")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [base-id [target-id]]",
		Short: "Compare verdicts between two saved harness runs",
		Long: `Compare shows which probes changed verdict between two harness runs.

Probes are matched by digest, a hash of their function, format string and
arguments, so renaming a probe keeps its history. Probes that only exist in
one of the runs are listed as added or removed.

Without arguments the latest two runs are compared. With one argument that
run is compared with the latest one.

Examples:
  # Compare the latest two runs
  probekit compare

  # Compare run 3 with the latest run
  probekit compare 3

  # Compare two specific runs as Markdown
  probekit compare --markdown 3 7`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid run id %q", a)
		}
		ids = append(ids, id)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown are mutually exclusive")
	}

	setupLogger(cmd)

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	base, target, err := selectRuns(cmd, db, ids)
	if err != nil {
		return err
	}

	result := compareRuns(base, target)
	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return writeJSON(out, result)
	case markdownOutput:
		return writeComparisonMarkdown(out, result)
	default:
		return writeComparisonText(out, result)
	}
}

// selectRuns loads the runs named by ids, defaulting to the latest ones.
func selectRuns(cmd *cobra.Command, db *database.RunDB, ids []int64) (*model.HarnessReport, *model.HarnessReport, error) {
	ctx := cmd.Context()

	if len(ids) == 2 {
		base, err := db.GetRun(ctx, ids[0])
		if err != nil {
			return nil, nil, fmt.Errorf("run %d: %w", ids[0], err)
		}
		target, err := db.GetRun(ctx, ids[1])
		if err != nil {
			return nil, nil, fmt.Errorf("run %d: %w", ids[1], err)
		}
		return base, target, nil
	}

	latest, err := db.ListRuns(ctx, "", 2)
	if err != nil {
		return nil, nil, err
	}

	if len(ids) == 1 {
		if len(latest) == 0 {
			return nil, nil, fmt.Errorf("%w (found 0)", errNotEnoughRuns)
		}
		base, err := db.GetRun(ctx, ids[0])
		if err != nil {
			return nil, nil, fmt.Errorf("run %d: %w", ids[0], err)
		}
		target, err := db.GetRun(ctx, latest[0].ID)
		if err != nil {
			return nil, nil, err
		}
		return base, target, nil
	}

	if len(latest) < 2 {
		return nil, nil, fmt.Errorf("%w (found %d)", errNotEnoughRuns, len(latest))
	}
	base, err := db.GetRun(ctx, latest[1].ID)
	if err != nil {
		return nil, nil, err
	}
	target, err := db.GetRun(ctx, latest[0].ID)
	if err != nil {
		return nil, nil, err
	}
	return base, target, nil
}

// RunSummary contains metadata about a run for comparison display.
type RunSummary struct {
	// ID is the database identifier.
	ID int64 `json:"id"`

	// Catalogue is the catalogue name.
	Catalogue string `json:"catalogue"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Verdicts counts probes per verdict.
	Verdicts map[model.Verdict]int `json:"verdicts"`
}

// VerdictChange is one probe whose verdict differs between the runs.
type VerdictChange struct {
	// Probe is the probe name in the target run, or in the base run for
	// removed probes.
	Probe string `json:"probe"`

	// Digest identifies the probe across runs.
	Digest string `json:"digest"`

	// Before is the verdict in the base run, empty for added probes.
	Before model.Verdict `json:"before,omitempty"`

	// After is the verdict in the target run, empty for removed probes.
	After model.Verdict `json:"after,omitempty"`
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// Base is the earlier run.
	Base RunSummary `json:"base"`

	// Target is the later run.
	Target RunSummary `json:"target"`

	// Changed lists probes present in both runs whose verdict changed.
	Changed []VerdictChange `json:"changed,omitempty"`

	// Added lists probes only present in the target run.
	Added []VerdictChange `json:"added,omitempty"`

	// Removed lists probes only present in the base run.
	Removed []VerdictChange `json:"removed,omitempty"`

	// UnchangedCount is the number of probes with the same verdict.
	UnchangedCount int `json:"unchanged_count"`

	// Direction is "improved", "regressed" or "unchanged".
	Direction string `json:"direction"`
}

// summarize extracts the comparison header of a run.
func summarize(r *model.HarnessReport) RunSummary {
	s := RunSummary{
		ID:        r.ID,
		Catalogue: r.Catalogue,
		StartedAt: r.StartedAt,
		Verdicts:  make(map[model.Verdict]int),
	}
	for _, run := range r.Runs {
		s.Verdicts[run.Verdict]++
	}
	return s
}

// runKey identifies a probe run across reports. Runs saved without a digest
// fall back to the probe name.
func runKey(run model.ProbeRun) string {
	if run.Digest != "" {
		return run.Digest
	}
	return "name:" + run.Probe
}

// compareRuns compares two runs probe by probe, keeping target order for
// changed and added probes and base order for removed ones.
func compareRuns(base, target *model.HarnessReport) *ComparisonResult {
	result := &ComparisonResult{
		Base:   summarize(base),
		Target: summarize(target),
	}

	before := make(map[string]model.ProbeRun, len(base.Runs))
	for _, run := range base.Runs {
		before[runKey(run)] = run
	}
	seen := make(map[string]bool, len(target.Runs))

	for _, run := range target.Runs {
		key := runKey(run)
		seen[key] = true

		prev, ok := before[key]
		switch {
		case !ok:
			result.Added = append(result.Added, VerdictChange{Probe: run.Probe, Digest: run.Digest, After: run.Verdict})
		case prev.Verdict != run.Verdict:
			result.Changed = append(result.Changed, VerdictChange{
				Probe: run.Probe, Digest: run.Digest, Before: prev.Verdict, After: run.Verdict,
			})
		default:
			result.UnchangedCount++
		}
	}

	for _, run := range base.Runs {
		if !seen[runKey(run)] {
			result.Removed = append(result.Removed, VerdictChange{Probe: run.Probe, Digest: run.Digest, Before: run.Verdict})
		}
	}

	result.Direction = comparisonDirection(result.Base, result.Target)
	return result
}

// verdictWeight scores verdicts for the overall direction. Mismatches weigh
// most: a classification that does not hold is worse than one never checked.
var verdictWeight = map[model.Verdict]int{
	model.VerdictMismatch: 10,
	model.VerdictFailed:   5,
	model.VerdictSkipped:  1,
}

// comparisonDirection compares the weighted problem scores of two runs.
func comparisonDirection(base, target RunSummary) string {
	score := func(s RunSummary) int {
		total := 0
		for v, n := range s.Verdicts {
			total += verdictWeight[v] * n
		}
		return total
	}

	switch b, t := score(base), score(target); {
	case t < b:
		return directionImproved
	case t > b:
		return directionRegressed
	default:
		return directionUnchanged
	}
}

// formatDirection formats the comparison direction for display.
func formatDirection(direction string) string {
	switch direction {
	case directionImproved:
		return "IMPROVED (fewer problems)"
	case directionRegressed:
		return "REGRESSED (more problems)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// verdictRows returns one row per verdict: name, base, target, delta.
func verdictRows(result *ComparisonResult) [][]string {
	rows := make([][]string, 0, 4)
	for _, v := range []model.Verdict{
		model.VerdictConfirmed, model.VerdictMismatch, model.VerdictSkipped, model.VerdictFailed,
	} {
		b, t := result.Base.Verdicts[v], result.Target.Verdicts[v]
		rows = append(rows, []string{string(v), strconv.Itoa(b), strconv.Itoa(t), formatDelta(t - b)})
	}
	return rows
}

// writeComparisonText outputs the comparison in human-readable text format.
func writeComparisonText(w io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run Comparison: #%d -> #%d\n", result.Base.ID, result.Target.ID)
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "\nStatus: %s\n", formatDirection(result.Direction))
	fmt.Fprintf(&sb, "\nBase run:   %s (%s)\n", result.Base.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Base.Catalogue)
	fmt.Fprintf(&sb, "Target run: %s (%s)\n", result.Target.StartedAt.Local().Format("2006-01-02 15:04:05"), result.Target.Catalogue)

	sb.WriteString("\nVerdicts:\n")
	fmt.Fprintf(&sb, "  %-10s  %-6s  %-6s  %s\n", "Verdict", "Base", "Target", "Change")
	sb.WriteString("  " + strings.Repeat("-", 36) + "\n")
	for _, row := range verdictRows(result) {
		fmt.Fprintf(&sb, "  %-10s  %-6s  %-6s  %s\n", row[0], row[1], row[2], row[3])
	}

	if len(result.Changed) > 0 {
		fmt.Fprintf(&sb, "\nChanged (%d):\n", len(result.Changed))
		for _, c := range result.Changed {
			fmt.Fprintf(&sb, "  [~] %s: %s -> %s\n", c.Probe, c.Before, c.After)
		}
	}
	if len(result.Added) > 0 {
		fmt.Fprintf(&sb, "\nAdded (%d):\n", len(result.Added))
		for _, c := range result.Added {
			fmt.Fprintf(&sb, "  [+] %s: %s\n", c.Probe, c.After)
		}
	}
	if len(result.Removed) > 0 {
		fmt.Fprintf(&sb, "\nRemoved (%d):\n", len(result.Removed))
		for _, c := range result.Removed {
			fmt.Fprintf(&sb, "  [-] %s: %s\n", c.Probe, c.Before)
		}
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d probes\n", result.UnchangedCount)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// writeComparisonMarkdown outputs the comparison in Markdown format.
func writeComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(w)

	md.H1f("Run Comparison: #%d -> #%d", result.Base.ID, result.Target.ID)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Status:** %s", formatDirection(result.Direction))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Verdict", "Base", "Target", "Change"},
		Rows:   verdictRows(result),
	})
	md.PlainText("")

	if result.Direction == directionRegressed {
		md.Warning("The target run has more problems than the base run.")
		md.PlainText("")
	}

	writeChanges := func(heading string, changes []VerdictChange) {
		if len(changes) == 0 {
			return
		}
		md.H2f("%s (%d)", heading, len(changes))
		md.PlainText("")
		rows := make([][]string, 0, len(changes))
		for _, c := range changes {
			rows = append(rows, []string{"`" + c.Probe + "`", orDash(string(c.Before)), orDash(string(c.After))})
		}
		md.Table(markdown.TableSet{Header: []string{"Probe", "Before", "After"}, Rows: rows})
		md.PlainText("")
	}
	writeChanges("Changed", result.Changed)
	writeChanges("Added", result.Added)
	writeChanges("Removed", result.Removed)

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d probes unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
