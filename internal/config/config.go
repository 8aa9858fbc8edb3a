package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultBatchSize is the number of probes the harness executes at once.
	// Probes are CPU-bound and short, so a small pool is enough.
	DefaultBatchSize = 4

	// DefaultTraceOutput is the file the tracer writes when no path is given.
	DefaultTraceOutput = "trace.out"

	// AppName is the application name used for XDG directory paths.
	AppName = "probekit"
)

// Config holds all configuration options for probekit.
// It is populated from CLI flags and the configuration file and passed
// through the application rather than kept in global state.
type Config struct {
	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of probes the harness executes concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .probekit in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// File holds the settings loaded from the configuration file.
	// It is never nil after NewConfig.
	File *File

	// CataloguePath is a YAML probe catalogue to use instead of the
	// embedded one.
	CataloguePath string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects GitHub Flavored Markdown output with tables,
	// alerts and pie charts. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// WorkDir holds the input files fscanf probes read. The harness command
	// defaults it to XDGCacheDir; empty means the system temporary directory.
	WorkDir string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/probekit on Linux).
	DBDir string

	// SaveToDB indicates whether to save harness runs to the database.
	SaveToDB bool

	// TraceOutput is the file the instruction tracer writes.
	TraceOutput string

	// TraceNoASLR disables address space randomization for traced programs,
	// so absolute trigger addresses are stable.
	TraceNoASLR bool

	// TraceDisassemble adds an Intel syntax disassembly column to traces.
	TraceDisassemble bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BatchSize:   DefaultBatchSize,
		File:        NewFile(),
		DBDir:       XDGDataDir(),
		TraceOutput: DefaultTraceOutput,
	}
}

// ApplyFile copies the settings of f that have a value onto c and keeps f
// for per-probe lookups. Command line flags are applied afterwards and win.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f
	if f.Catalogue != "" {
		c.CataloguePath = f.Catalogue
	}
	if f.BatchSize > 0 {
		c.BatchSize = f.BatchSize
	}
	if f.Trace.Output != "" {
		c.TraceOutput = f.Trace.Output
	}
	if f.Trace.NoASLR {
		c.TraceNoASLR = true
	}
	if f.Trace.Disassemble {
		c.TraceDisassemble = true
	}
}

// XDGDataDir returns the XDG data directory for probekit.
// On Linux: ~/.local/share/probekit
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for probekit.
// On Linux: ~/.config/probekit
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for probekit. The harness
// command keeps fscanf input files under it unless --work-dir is given.
// On Linux: ~/.cache/probekit
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.TraceOutput == "" {
		return ErrInvalidTraceOutput
	}
	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}
	if c.File != nil {
		if err := c.File.Validate(); err != nil {
			return err
		}
	}
	return nil
}
