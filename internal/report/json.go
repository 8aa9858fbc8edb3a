package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/probekit/internal/model"
)

// Report kinds recorded in JSONReport.Kind.
const (
	KindHarness   = "harness"
	KindCatalogue = "catalogue"
)

// JSONWriter encodes reports as JSON. HTML escaping is off so format strings
// such as "%[^<]" stay readable.
type JSONWriter struct {
	baseWriter
	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent makes the writer emit one field per line, each line starting
// with prefix and nested by indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter returns a compact JSONWriter unless an option says otherwise.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write encodes the harness report.
func (w *JSONWriter) Write(report *model.HarnessReport) (int, error) {
	return w.encode(report)
}

// WriteCatalogue encodes the classification table.
func (w *JSONWriter) WriteCatalogue(report *model.CatalogueReport) (int, error) {
	return w.encode(report)
}

// encode writes v followed by a newline in a single Write call.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.prefix != "" || w.indent != "" {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport is the document written by FullJSONWriter. Exactly one of
// Harness and Catalogue is set, as named by Kind.
type JSONReport struct {
	Version string `json:"version"`
	Kind    string `json:"kind"`

	// Passed mirrors HarnessReport.Passed for harness documents, or "no
	// disagreements" for catalogue documents.
	Passed bool `json:"passed"`

	Harness   *model.HarnessReport   `json:"harness,omitempty"`
	Catalogue *model.CatalogueReport `json:"catalogue,omitempty"`
}

// FullJSONWriter wraps every report in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter returns a FullJSONWriter stamping documents with version.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write encodes the harness report inside a JSONReport.
func (w *FullJSONWriter) Write(report *model.HarnessReport) (int, error) {
	return w.encode(&JSONReport{
		Version: w.version,
		Kind:    KindHarness,
		Passed:  report.Passed(),
		Harness: report,
	})
}

// WriteCatalogue encodes the classification table inside a JSONReport.
func (w *FullJSONWriter) WriteCatalogue(report *model.CatalogueReport) (int, error) {
	return w.encode(&JSONReport{
		Version:   w.version,
		Kind:      KindCatalogue,
		Passed:    report.Disagreements == 0,
		Catalogue: report,
	})
}
