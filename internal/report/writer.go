package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/probekit/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a harness report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.HarnessReport) (int, error)

	// WriteCatalogue outputs a catalogue classification table.
	WriteCatalogue(report *model.CatalogueReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.HarnessReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteCatalogue outputs the table to all configured Writers.
func (m *MultiWriter) WriteCatalogue(report *model.CatalogueReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteCatalogue(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// title turns lower-case labels such as "vulnerable" into headings.
// Casers keep state, so each call gets its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// sectionOrder lists catalogue sections in presentation order. Sections not
// listed follow in order of first appearance.
var sectionOrder = []string{"good", "vuln", "unknown"}

// groupBySection splits entries by section, keeping catalogue order within
// each section.
func groupBySection(entries []model.CatalogueEntry) ([]string, map[string][]model.CatalogueEntry) {
	groups := make(map[string][]model.CatalogueEntry)
	var seen []string
	for _, e := range entries {
		s := e.Probe.Section
		if s == "" {
			s = "other"
		}
		if _, ok := groups[s]; !ok {
			seen = append(seen, s)
		}
		groups[s] = append(groups[s], e)
	}

	order := make([]string, 0, len(seen))
	for _, s := range sectionOrder {
		if _, ok := groups[s]; ok {
			order = append(order, s)
		}
	}
	for _, s := range seen {
		known := false
		for _, o := range sectionOrder {
			known = known || o == s
		}
		if !known {
			order = append(order, s)
		}
	}
	return order, groups
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
