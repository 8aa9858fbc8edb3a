package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nao1215/probekit/internal/model"
)

// SimpleWriter outputs plain-text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the finding explanation to catalogue rows and every
	// observation to harness runs.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteCatalogue outputs the classification table, one row per probe.
// Rows whose classification differs from the catalogued expectation are
// marked with "!".
func (w *SimpleWriter) WriteCatalogue(report *model.CatalogueReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "PROBEKIT CLASSIFICATION")
	fmt.Fprintf(&sb, "Catalogue:      %s\n", report.Catalogue)
	fmt.Fprintf(&sb, "Generated:      %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  \tPROBE\tFUNCTION\tFORMAT\tCLASSIFICATION\tFINDING")
	for _, e := range report.Entries {
		mark := " "
		if !e.Agrees {
			mark = "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%q\t%s\t%s\n",
			mark, e.Probe.Name, e.Probe.Function, e.Probe.Format,
			e.Result.Classification, e.Finding())
		if w.verbose {
			if e.Error != "" {
				fmt.Fprintf(tw, " \t  error: %s\t\t\t\t\n", e.Error)
			}
			for _, r := range e.Result.Results {
				fmt.Fprintf(tw, " \t  %s -> %s\t\t\t%s\t%s\n",
					r.Directive.Raw, r.Buffer.Name, r.Classification,
					model.GetFindingInfo(r.Finding).Title)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return 0, err
	}

	sb.WriteString("\n")
	writeRule(&sb, "SUMMARY")
	fmt.Fprintf(&sb, "  SAFE:          %d\n", report.SafeCount)
	fmt.Fprintf(&sb, "  VULNERABLE:    %d\n", report.VulnerableCount)
	fmt.Fprintf(&sb, "  INDETERMINATE: %d\n", report.IndeterminateCount)
	fmt.Fprintf(&sb, "  DISAGREEMENTS: %d\n\n", report.Disagreements)

	writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// Write outputs a harness report: verdict counts, then one line per probe.
func (w *SimpleWriter) Write(report *model.HarnessReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "PROBEKIT HARNESS REPORT")
	fmt.Fprintf(&sb, "Catalogue:      %s\n", report.Catalogue)
	fmt.Fprintf(&sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration:       %s\n", report.Duration)
	switch {
	case report.Cancelled:
		sb.WriteString("Status:         CANCELLED (partial results)\n")
	case report.Passed():
		sb.WriteString("Status:         PASSED\n")
	default:
		sb.WriteString("Status:         FAILED\n")
	}
	sb.WriteString("\n")

	writeRule(&sb, "VERDICT SUMMARY")
	for _, v := range verdictOrder {
		fmt.Fprintf(&sb, "  %-10s %d\n", strings.ToUpper(string(v))+":", report.CountVerdict(v))
	}
	sb.WriteString("\n")

	writeRule(&sb, "RUNS")
	for _, run := range report.Runs {
		fmt.Fprintf(&sb, "[%s] %s (%s %q, %s)\n",
			verdictIndicator(run.Verdict), run.Probe, run.Function, run.Format, run.Classification)
		if run.RuntimeCapacity > 0 {
			fmt.Fprintf(&sb, "    Runtime capacity: %d\n", run.RuntimeCapacity)
		}
		if run.Error != "" {
			fmt.Fprintf(&sb, "    Error: %s\n", run.Error)
		}
		for _, obs := range run.Observations {
			if !w.verbose && obs.Expected {
				continue
			}
			fmt.Fprintf(&sb, "    %s -> %s[%d]: input %d, wrote %d, overflow %d, after[0]=0x%02x%s\n",
				obs.Directive, obs.Buffer, obs.Capacity, obs.InputLen, obs.Written,
				obs.Overflow, obs.AfterFirstByte, unexpectedMark(obs))
		}
	}
	sb.WriteString("\n")

	writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// verdictOrder lists verdicts in presentation order.
var verdictOrder = []model.Verdict{
	model.VerdictConfirmed,
	model.VerdictMismatch,
	model.VerdictSkipped,
	model.VerdictFailed,
}

// verdictIndicator returns a visual indicator for the verdict.
func verdictIndicator(v model.Verdict) string {
	switch v {
	case model.VerdictConfirmed:
		return "ok"
	case model.VerdictMismatch:
		return "!!"
	case model.VerdictSkipped:
		return "--"
	case model.VerdictFailed:
		return "xx"
	default:
		return "??"
	}
}

func unexpectedMark(obs model.Observation) string {
	if obs.Expected {
		return ""
	}
	return " UNEXPECTED"
}

func writeBanner(sb *strings.Builder, heading string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := max((70-len(heading))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad) + heading + "\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeRule(sb *strings.Builder, heading string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(heading + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by probekit\n")
	sb.WriteString("https://github.com/nao1215/probekit\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
