// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Plain-text tables for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with mermaid pie charts
//
// Every writer renders both report kinds: the static classification table
// of a catalogue and the verdicts of a harness run. Writers implement the
// Writer interface, allowing them to be used interchangeably and composed
// for multi-format output.
package report
