package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/catalogue"
)

// errDisagreement is returned when catalogued labels are not reproduced.
var errDisagreement = errors.New("classification disagrees with the catalogue")

// NewCatalogueCmd creates the catalogue command.
func NewCatalogueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "catalogue",
		Aliases: []string{"catalog"},
		Short:   "Print the classification table of the probe catalogue",
		Long: `Catalogue classifies every probe of the catalogue and prints one row per
probe with its classification and the finding that decided it.

Each probe carries an expected label. Rows whose computed classification
differs are marked, and the command exits with status 1.

Examples:
  # Classify the embedded catalogue
  probekit catalogue

  # Markdown table with a pie chart, written to a file
  probekit catalogue --markdown -o classification.md

  # Classify a custom catalogue
  probekit catalogue --catalogue my-probes.yaml`,
		Args: cobra.NoArgs,
		RunE: runCatalogueCmd,
	}

	addCatalogueFlag(cmd)
	addReportFlags(cmd)

	return cmd
}

// runCatalogueCmd executes the catalogue command.
func runCatalogueCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := setupLogger(cmd)

	c, err := loadCatalogue(cfg)
	if err != nil {
		return err
	}

	table := catalogue.Classify(c)
	logger.Debug("catalogue classified",
		"catalogue", table.Catalogue,
		"probes", len(table.Entries),
		"disagreements", table.Disagreements,
	)

	output, closeFn, err := openReportOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = newReportWriter(cfg, output).WriteCatalogue(table)
	if err := closeJoin(err, closeFn); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if table.Disagreements > 0 {
		return fmt.Errorf("%w: %d probe(s)", errDisagreement, table.Disagreements)
	}
	return nil
}
