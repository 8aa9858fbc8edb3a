package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/catalogue"
	"github.com/nao1215/probekit/internal/classify"
	"github.com/nao1215/probekit/internal/model"
)

// errInvalidArg is returned for call arguments that cannot be parsed.
var errInvalidArg = errors.New("invalid call argument")

// NewClassifyCmd creates the classify command.
func NewClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify FORMAT [ARG...]",
		Short: "Classify a single scanf call",
		Long: `Classify reports whether a scanf call can write past its destination
buffers. Arguments follow the format string in call order:

  name=N       a char buffer of N bytes (e.g. buf=64)
  name=heap:N  a heap buffer of N bytes, known at the call site
  name=?       a buffer whose size is not visible at the call (e.g. a parameter)
  &name        a scalar destination such as an int

Examples:
  # Bounded: width leaves room for the terminator
  probekit classify '%63s' buf=64

  # Off-by-one: width equals capacity
  probekit classify '%8s' buf=8

  # Mixed conversions
  probekit classify 'Test %d %63s' '&i' buf=64

  # Fail (exit 1) unless the call is safe
  probekit classify --strict '%s' buf=16`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassifyCmd,
	}

	cmd.Flags().BoolP("strict", "s", false,
		"Exit with status 1 unless the call is classified safe")
	cmd.Flags().String("function", string(model.FunctionScanf),
		"Scanning function of the call (scanf or fscanf)")
	addReportFlags(cmd)

	return cmd
}

// runClassifyCmd executes the classify command.
func runClassifyCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	setupLogger(cmd)

	function, err := cmd.Flags().GetString("function")
	if err != nil {
		return err
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return err
	}

	if f := model.Function(function); f != model.FunctionScanf && f != model.FunctionFscanf {
		return fmt.Errorf("%w: unknown function %q", errInvalidArg, function)
	}

	callArgs, err := parseCallArgs(args[1:])
	if err != nil {
		return err
	}

	p := model.Probe{
		Name:     "command-line",
		Function: model.Function(function),
		Format:   args[0],
		Args:     callArgs,
	}
	res, err := classify.Probe(p)
	if err != nil {
		return fmt.Errorf("failed to classify %q: %w", p.Format, err)
	}
	p.Expected = res.Classification

	table := &model.CatalogueReport{
		Catalogue:   "command line",
		GeneratedAt: time.Now(),
		Entries: []model.CatalogueEntry{{
			Probe:  p,
			Digest: catalogue.Digest(p),
			Result: res,
			Agrees: true,
		}},
	}
	table.Count()

	output, closeFn, err := openReportOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = newReportWriter(cfg, output).WriteCatalogue(table)
	if err := closeJoin(err, closeFn); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if strict && res.Classification != model.Safe {
		return &exitCodeError{code: 1}
	}
	return nil
}

// parseCallArgs parses command line call arguments. See NewClassifyCmd.
func parseCallArgs(args []string) ([]model.Arg, error) {
	out := make([]model.Arg, 0, len(args))
	for _, a := range args {
		if name, ok := strings.CutPrefix(a, "&"); ok {
			if name == "" {
				return nil, fmt.Errorf("%w: %q", errInvalidArg, a)
			}
			out = append(out, model.Arg{Scalar: name})
			continue
		}

		name, size, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q (want name=N, name=? or &name)", errInvalidArg, a)
		}

		buf := &model.Buffer{Name: name, Origin: model.OriginStack}
		if rest, ok := strings.CutPrefix(size, "heap:"); ok {
			buf.Origin = model.OriginHeap
			size = rest
		}
		if size == "?" {
			buf.Origin = model.OriginParam
			out = append(out, model.Arg{Buffer: buf})
			continue
		}

		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %q: capacity must be a positive integer", errInvalidArg, a)
		}
		buf.Capacity = n
		buf.Known = true
		out = append(out, model.Arg{Buffer: buf})
	}
	return out, nil
}
