// Package model defines the core data structures used throughout probekit.
//
// This package contains the following main types:
//   - Directive: One conversion of a scanf format string
//   - Buffer: A destination buffer and what is statically known about it
//   - Probe: One catalogued scanf/fscanf call site
//   - ProbeResult / CallResult: Classifier output
//   - HarnessReport: Boundary harness observations for a catalogue run
//   - CatalogueReport: Static classification table of a catalogue
//
// Multiple packages (classify, scanf, harness, report, database) share these
// types, so they live here to avoid import cycles. The report types are
// serializable to JSON for report output and database storage.
package model
