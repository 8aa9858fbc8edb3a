package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// File.Validate. Callers use errors.Is to tell them apart.
var (
	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidTraceOutput is returned when the trace output path is empty.
	ErrInvalidTraceOutput = errors.New("invalid trace output: path must not be empty")

	// ErrNoDBDir is returned when saving is requested without a database directory.
	ErrNoDBDir = errors.New("no database directory: set --db-dir")

	// ErrInvalidRuntimeCapacity is returned when a probe override sets a
	// negative runtime capacity.
	ErrInvalidRuntimeCapacity = errors.New("invalid runtime capacity: must be non-negative")
)
