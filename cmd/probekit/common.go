package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/catalogue"
	"github.com/nao1215/probekit/internal/config"
	"github.com/nao1215/probekit/internal/report"
)

// addReportFlags registers the output flags shared by reporting commands.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// addCatalogueFlag registers the catalogue override flag.
func addCatalogueFlag(cmd *cobra.Command) {
	cmd.Flags().String("catalogue", "",
		"Probe catalogue YAML file (default: the embedded catalogue)")
}

// buildConfig creates a Config from the configuration file and the flags of
// cmd. Flags win over the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly named file must exist; the implicit lookup may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(f)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	flags := cmd.Flags()
	if flags.Lookup("catalogue") != nil && flags.Changed("catalogue") {
		if cfg.CataloguePath, err = flags.GetString("catalogue"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("json") != nil {
		if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
			return nil, err
		}
		if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
			return nil, err
		}
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadCatalogue returns the configured catalogue, or the embedded one.
func loadCatalogue(cfg *config.Config) (*catalogue.Catalogue, error) {
	if cfg.CataloguePath == "" {
		return catalogue.Default(), nil
	}
	c, err := catalogue.LoadFile(cfg.CataloguePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}
	return c, nil
}

// openReportOutput returns the report destination: the configured file,
// or w. The returned function closes the file.
func openReportOutput(cfg *config.Config, w io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return w, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter returns the writer selected by cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// closeJoin calls closeFn and joins its error with err.
func closeJoin(err error, closeFn func() error) error {
	return errors.Join(err, closeFn())
}
