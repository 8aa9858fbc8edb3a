package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/probekit/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, with mermaid
// pie charts and alerts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteCatalogue outputs the classification table, one table per section.
func (w *MarkdownWriter) WriteCatalogue(report *model.CatalogueReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("probekit Classification")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Catalogue", "`" + report.Catalogue + "`"},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Probes", strconv.Itoa(len(report.Entries))},
		},
	})
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Classification", "Count"},
		Rows: [][]string{
			{"🟢 " + title(model.Safe.String()), strconv.Itoa(report.SafeCount)},
			{"🔴 " + title(model.Vulnerable.String()), strconv.Itoa(report.VulnerableCount)},
			{"🟡 " + title(model.Indeterminate.String()), strconv.Itoa(report.IndeterminateCount)},
			{"**Total**", "**" + strconv.Itoa(len(report.Entries)) + "**"},
		},
	})
	md.PlainText("")

	if len(report.Entries) > 0 {
		writePieChart(md, "Classification Distribution", []slice{
			{title(model.Safe.String()), report.SafeCount},
			{title(model.Vulnerable.String()), report.VulnerableCount},
			{title(model.Indeterminate.String()), report.IndeterminateCount},
		})
	}

	switch {
	case report.Disagreements > 0:
		md.Cautionf("%d probe(s) did not receive their catalogued classification.", report.Disagreements)
	case report.VulnerableCount > 0:
		md.Warningf("%d call site(s) can write past their destination buffer.", report.VulnerableCount)
	case report.IndeterminateCount > 0:
		md.Importantf("%d call site(s) depend on a buffer size not visible at the call.", report.IndeterminateCount)
	default:
		md.Tip("Every string conversion is bounded by its destination.")
	}
	md.PlainText("")

	order, groups := groupBySection(report.Entries)
	for _, section := range order {
		md.H2(title(section))
		md.PlainText("")

		rows := make([][]string, 0, len(groups[section]))
		for _, e := range groups[section] {
			agrees := "✅"
			if !e.Agrees {
				agrees = "❌ expected " + e.Probe.Expected.String()
			}
			rows = append(rows, []string{
				"`" + e.Probe.Name + "`",
				string(e.Probe.Function),
				"`" + e.Probe.Format + "`",
				title(e.Result.Classification.String()),
				model.GetFindingInfo(e.Finding()).Title,
				agrees,
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Probe", "Function", "Format", "Classification", "Finding", "Agrees"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, e := range groups[section] {
			if e.Probe.Note != "" {
				md.Details(e.Probe.Name, e.Probe.Note)
			}
		}
	}

	writeMarkdownFooter(md)
	return len(md.String()), md.Build()
}

// Write outputs a harness report.
func (w *MarkdownWriter) Write(report *model.HarnessReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("probekit Harness Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Catalogue", "`" + report.Catalogue + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.String()},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	md.H2("Verdict Summary")
	md.PlainText("")
	rows := make([][]string, 0, len(verdictOrder))
	slices := make([]slice, 0, len(verdictOrder))
	for _, v := range verdictOrder {
		n := report.CountVerdict(v)
		rows = append(rows, []string{title(string(v)), strconv.Itoa(n)})
		slices = append(slices, slice{title(string(v)), n})
	}
	md.Table(markdown.TableSet{Header: []string{"Verdict", "Count"}, Rows: rows})
	md.PlainText("")

	if len(report.Runs) > 0 {
		writePieChart(md, "Verdict Distribution", slices)
	}

	switch {
	case report.CountVerdict(model.VerdictMismatch) > 0:
		md.Cautionf("%d probe(s) behaved differently than classified.", report.CountVerdict(model.VerdictMismatch))
	case report.CountVerdict(model.VerdictFailed) > 0:
		md.Warningf("%d probe(s) could not be executed.", report.CountVerdict(model.VerdictFailed))
	case report.CountVerdict(model.VerdictSkipped) > 0:
		md.Note("Some probes were skipped because their buffer size is unknown. Configure a runtimeCapacity to execute them.")
	default:
		md.Tip("Every classification was confirmed at runtime.")
	}
	md.PlainText("")

	md.H2("Runs")
	md.PlainText("")
	runRows := make([][]string, 0, len(report.Runs))
	for _, run := range report.Runs {
		note := run.Error
		if note == "" && run.RuntimeCapacity > 0 {
			note = "runtime capacity " + strconv.Itoa(run.RuntimeCapacity)
		}
		if note == "" {
			note = "-"
		}
		runRows = append(runRows, []string{
			"`" + run.Probe + "`",
			"`" + run.Format + "`",
			title(run.Classification.String()),
			title(string(run.Verdict)),
			strconv.Itoa(len(run.Observations)),
			truncateString(note, 60),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Probe", "Format", "Classification", "Verdict", "Observations", "Note"},
		Rows:   runRows,
	})
	md.PlainText("")

	for _, run := range report.Runs {
		if len(run.Observations) == 0 {
			continue
		}
		md.Details(run.Probe, observationText(run.Observations))
	}

	writeMarkdownFooter(md)
	return len(md.String()), md.Build()
}

// slice is one pie chart entry.
type slice struct {
	label string
	value int
}

// writePieChart writes a mermaid pie chart of the non-zero slices.
func writePieChart(md *markdown.Markdown, heading string, slices []slice) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(heading),
		piechart.WithShowData(true),
	)
	for _, s := range slices {
		if s.value > 0 {
			chart.LabelAndIntValue(s.label, uint64(s.value)) //nolint:gosec // counts are non-negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// statusText returns the status text based on report state.
func statusText(report *model.HarnessReport) string {
	switch {
	case report.Cancelled:
		return "⚠️ Cancelled (partial results)"
	case report.Passed():
		return "✅ Passed"
	default:
		return "❌ Failed"
	}
}

// observationText renders observations one per line for a details block.
func observationText(observations []model.Observation) string {
	var text string
	for _, obs := range observations {
		mark := ""
		if !obs.Expected {
			mark = " (unexpected)"
		}
		text += fmt.Sprintf("%s into %s[%d] with %d bytes: wrote %d, overflow %d, next byte 0x%02x%s<br>",
			obs.Directive, obs.Buffer, obs.Capacity, obs.InputLen, obs.Written, obs.Overflow, obs.AfterFirstByte, mark)
	}
	return text
}

// writeMarkdownFooter writes the report footer.
func writeMarkdownFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [probekit](https://github.com/nao1215/probekit)*")
}
