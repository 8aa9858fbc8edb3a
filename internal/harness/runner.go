// Package harness executes catalogued probes against the scanf emulator at
// their boundary input lengths and checks the observed writes against the
// static classification.
//
// Every exercised buffer is placed between two guard regions:
//
//	guard_before | buffer | guard_after
//
// Each string directive with a known capacity is fed payloads of capacity-1,
// capacity and capacity+1 bytes. A safe directive must never write past its
// buffer; a vulnerable one must do so for at least one of the three lengths.
// Every observation must also match the exact overflow the classifier
// predicts, including the off-by-one pattern where only the first guard byte
// is zeroed.
//
// Probes run concurrently, but the report keeps catalogue order.
package harness

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/probekit/internal/catalogue"
	"github.com/nao1215/probekit/internal/model"
)

// DefaultConcurrency is the number of probes executed at once.
const DefaultConcurrency = 4

// Runner executes probes. Create it with New.
type Runner struct {
	// concurrency is the maximum number of probes executed at once.
	concurrency int

	// runtimeCapacities maps probe names to the capacity used for buffers
	// whose size is not known at the call site.
	runtimeCapacities map[string]int

	// workDir holds the input files of fscanf probes.
	workDir string

	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConcurrency sets the maximum number of probes executed at once.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRuntimeCapacities sets per-probe capacities for buffers whose size is
// unknown statically. Probes without an entry are skipped for those buffers.
func WithRuntimeCapacities(capacities map[string]int) Option {
	return func(r *Runner) {
		for name, c := range capacities {
			r.runtimeCapacities[name] = c
		}
	}
}

// WithWorkDir sets the directory for fscanf input files. The default is the
// system temporary directory.
func WithWorkDir(dir string) Option {
	return func(r *Runner) {
		if dir != "" {
			r.workDir = dir
		}
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		concurrency:       DefaultConcurrency,
		runtimeCapacities: make(map[string]int),
		workDir:           os.TempDir(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run executes every probe of c. The returned report holds one run per probe
// in catalogue order. When ctx is cancelled the report is marked cancelled,
// probes that did not start are recorded as failed and ctx's error is
// returned alongside the report.
func (r *Runner) Run(ctx context.Context, c *catalogue.Catalogue) (*model.HarnessReport, error) {
	report := &model.HarnessReport{
		Catalogue: c.Name,
		StartedAt: time.Now(),
		Runs:      make([]model.ProbeRun, len(c.Probes)),
	}

	r.logger.Info("starting harness",
		"catalogue", c.Name,
		"probes", len(c.Probes),
		"concurrency", r.concurrency,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, p := range c.Probes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Runs[i] = model.ProbeRun{
					Probe:    p.Name,
					Digest:   catalogue.Digest(p),
					Function: p.Function,
					Format:   p.Format,
					Verdict:  model.VerdictFailed,
					Error:    err.Error(),
				}
				return err
			}

			run := r.RunProbe(gctx, p)
			report.Runs[i] = run

			r.logger.Debug("probe finished",
				"probe", p.Name,
				"verdict", run.Verdict,
				"observations", len(run.Observations),
			)
			if run.Verdict == model.VerdictFailed {
				r.logger.Warn("probe failed",
					"probe", p.Name,
					"error", run.Error,
				)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	report.Duration = time.Since(report.StartedAt)
	if err != nil {
		report.Cancelled = true
	}

	r.logger.Info("harness complete",
		"catalogue", c.Name,
		"confirmed", report.CountVerdict(model.VerdictConfirmed),
		"mismatch", report.CountVerdict(model.VerdictMismatch),
		"skipped", report.CountVerdict(model.VerdictSkipped),
		"failed", report.CountVerdict(model.VerdictFailed),
		"elapsed", report.Duration,
	)

	return report, err
}
