package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/probekit/internal/catalogue"
	"github.com/nao1215/probekit/internal/model"
	"github.com/nao1215/probekit/internal/scanfmt"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParse(t *testing.T, format string) []model.Directive {
	t.Helper()

	ds, err := scanfmt.Parse(format)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", format, err)
	}
	return ds
}

func stackBuffer(name string, capacity int) model.Arg {
	return model.Arg{Buffer: &model.Buffer{Name: name, Capacity: capacity, Known: true, Origin: model.OriginStack}}
}

// TestRunDefaultCatalogue tests that the embedded catalogue holds up at runtime.
func TestRunDefaultCatalogue(t *testing.T) {
	t.Parallel()

	c := catalogue.Default()
	r := New(WithLogger(quietLogger()), WithWorkDir(t.TempDir()))

	report, err := r.Run(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Runs) != len(c.Probes) {
		t.Fatalf("expected %d runs, got %d", len(c.Probes), len(report.Runs))
	}

	for i, run := range report.Runs {
		if run.Probe != c.Probes[i].Name {
			t.Errorf("run %d is %s, want catalogue order (%s)", i, run.Probe, c.Probes[i].Name)
		}
		switch run.Verdict {
		case model.VerdictConfirmed:
			if len(run.Observations) == 0 {
				t.Errorf("%s: confirmed without observations", run.Probe)
			}
		case model.VerdictSkipped:
			for _, a := range c.Probes[i].Args {
				if a.IsBuffer() && a.Buffer.Known {
					t.Errorf("%s: skipped although its buffer capacity is known", run.Probe)
				}
			}
		default:
			t.Errorf("%s: verdict %s (%s)", run.Probe, run.Verdict, run.Error)
		}
	}

	if !report.Passed() {
		t.Error("expected the report to pass")
	}
	if report.Cancelled {
		t.Error("report must not be cancelled")
	}
}

// TestRunProbeOffByOne tests the three observations of the %8s scenario.
func TestRunProbeOffByOne(t *testing.T) {
	t.Parallel()

	p := model.Probe{
		Name:     "demo",
		Function: model.FunctionScanf,
		Format:   "%8s",
		Args:     []model.Arg{stackBuffer("buf", 8)},
		Expected: model.Vulnerable,
	}

	run := New(WithLogger(quietLogger())).RunProbe(context.Background(), p)
	if run.Verdict != model.VerdictConfirmed {
		t.Fatalf("verdict = %s (%s)", run.Verdict, run.Error)
	}

	want := []struct {
		inputLen   int
		overflow   int
		afterFirst byte
	}{
		{7, 0, 'B'},
		{8, 1, 0},
		{9, 1, 0},
	}
	if len(run.Observations) != len(want) {
		t.Fatalf("expected %d observations, got %d", len(want), len(run.Observations))
	}
	for i, w := range want {
		obs := run.Observations[i]
		if obs.InputLen != w.inputLen || obs.Overflow != w.overflow || obs.AfterFirstByte != w.afterFirst {
			t.Errorf("observation %d = %+v, want len=%d overflow=%d after[0]=%q",
				i, obs, w.inputLen, w.overflow, w.afterFirst)
		}
		if !obs.AfterIntact {
			t.Errorf("observation %d: guard tail was modified", i)
		}
		if !obs.Expected {
			t.Errorf("observation %d: not expected", i)
		}
	}
}

// TestRunProbeCharArray tests that %c writes exactly its width and no terminator.
func TestRunProbeCharArray(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		format   string
		capacity int
		expected model.Classification
		overflow int
	}{
		{"width equal to capacity", "%64c", 64, model.Safe, 0},
		{"width above capacity", "%100c", 64, model.Vulnerable, 36},
		{"single char", "%c", 1, model.Safe, 0},
		{"width one past capacity", "%9c", 8, model.Vulnerable, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := model.Probe{
				Name:     "chars",
				Function: model.FunctionScanf,
				Format:   tt.format,
				Args:     []model.Arg{stackBuffer("buf", tt.capacity)},
				Expected: tt.expected,
			}
			run := New(WithLogger(quietLogger())).RunProbe(context.Background(), p)
			if run.Verdict != model.VerdictConfirmed {
				t.Fatalf("verdict = %s (%s)", run.Verdict, run.Error)
			}
			if run.Classification != tt.expected {
				t.Errorf("classification = %v, want %v", run.Classification, tt.expected)
			}
			if len(run.Observations) != 1 {
				t.Fatalf("expected 1 observation, got %d", len(run.Observations))
			}
			if obs := run.Observations[0]; obs.Overflow != tt.overflow || !obs.Expected {
				t.Errorf("observation = %+v, want overflow %d", obs, tt.overflow)
			}
		})
	}
}

// TestRunProbeFscanf tests that fscanf probes read their input from a file.
func TestRunProbeFscanf(t *testing.T) {
	t.Parallel()

	p := model.Probe{
		Name:     "file",
		Function: model.FunctionFscanf,
		Format:   "%s",
		Args:     []model.Arg{stackBuffer("buf", 16)},
		Expected: model.Vulnerable,
	}

	run := New(WithLogger(quietLogger()), WithWorkDir(t.TempDir())).RunProbe(context.Background(), p)
	if run.Verdict != model.VerdictConfirmed {
		t.Fatalf("verdict = %s (%s)", run.Verdict, run.Error)
	}
	last := run.Observations[len(run.Observations)-1]
	if last.Overflow != 2 {
		t.Errorf("expected an overflow of 2 for capacity+1 bytes, got %d", last.Overflow)
	}
}

// TestRunProbeRuntimeCapacity tests indeterminate probes with and without a
// configured capacity.
func TestRunProbeRuntimeCapacity(t *testing.T) {
	t.Parallel()

	p := model.Probe{
		Name:     "param",
		Function: model.FunctionScanf,
		Format:   "%64s",
		Args:     []model.Arg{{Buffer: &model.Buffer{Name: "buf", Origin: model.OriginParam}}},
		Expected: model.Indeterminate,
	}

	tests := []struct {
		name     string
		capacity int
		want     model.Verdict
		overflow bool
	}{
		{"no capacity configured", 0, model.VerdictSkipped, false},
		{"large enough", 65, model.VerdictConfirmed, false},
		{"exact width", 64, model.VerdictConfirmed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := []Option{WithLogger(quietLogger())}
			if tt.capacity > 0 {
				opts = append(opts, WithRuntimeCapacities(map[string]int{"param": tt.capacity}))
			}
			run := New(opts...).RunProbe(context.Background(), p)
			if run.Verdict != tt.want {
				t.Fatalf("verdict = %s, want %s (%s)", run.Verdict, tt.want, run.Error)
			}
			if run.RuntimeCapacity != tt.capacity {
				t.Errorf("runtime capacity = %d, want %d", run.RuntimeCapacity, tt.capacity)
			}
			overflowed := false
			for _, obs := range run.Observations {
				overflowed = overflowed || obs.Overflowed()
			}
			if overflowed != tt.overflow {
				t.Errorf("overflowed = %v, want %v", overflowed, tt.overflow)
			}
		})
	}
}

// TestRunProbeFailures tests probes that cannot be executed.
func TestRunProbeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		probe model.Probe
		want  model.Verdict
	}{
		{
			name: "missing argument",
			probe: model.Probe{
				Name: "missing", Function: model.FunctionScanf, Format: "%7s %7s",
				Args: []model.Arg{stackBuffer("buf", 8)},
			},
			want: model.VerdictFailed,
		},
		{
			name: "string into scalar",
			probe: model.Probe{
				Name: "scalar", Function: model.FunctionScanf, Format: "%7s",
				Args: []model.Arg{{Scalar: "i"}},
			},
			want: model.VerdictFailed,
		},
		{
			name: "no string conversion",
			probe: model.Probe{
				Name: "ints", Function: model.FunctionScanf, Format: "%d",
				Args: []model.Arg{{Scalar: "i"}},
			},
			want: model.VerdictSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			run := New(WithLogger(quietLogger())).RunProbe(context.Background(), tt.probe)
			if run.Verdict != tt.want {
				t.Errorf("verdict = %s, want %s", run.Verdict, tt.want)
			}
			if run.Error == "" {
				t.Error("expected an error description")
			}
		})
	}
}

// TestRunCancelled tests that a cancelled context marks the report.
func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := catalogue.Default()
	report, err := New(WithLogger(quietLogger()), WithConcurrency(1)).Run(ctx, c)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !report.Cancelled {
		t.Error("expected the report to be marked cancelled")
	}
	if report.Passed() {
		t.Error("a cancelled run must not pass")
	}
}

// TestBuildInput tests input generation for multi-directive formats.
func TestBuildInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format string
		target int
		n      int
		want   string
	}{
		{"plain", "%8s", 0, 3, "CCC "},
		{"literal and int", "Test %d %63s", 3, 2, "Test 1  CC "},
		{"inclusive set", "Test %[A] test", 1, 2, "Test AA  test"},
		{"negated set", "Test %[^\n] test", 1, 2, "Test CC\n test"},
		{"adjacent strings", "%31s%63s", 1, 2, "C CC "},
		{"suppressed", "%*10s %5s", 2, 1, "C  C "},
		{"char target takes its width", "%4c", 0, 9, "cccc"},
		{"char before string", "%c%3s", 1, 2, "cCC "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := buildInput(mustParse(t, tt.format), tt.target, tt.n)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildInput = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("set without printable members", func(t *testing.T) {
		t.Parallel()

		_, err := buildInput(mustParse(t, "%[\x01]"), 0, 1)
		if !errors.Is(err, ErrNoMatchingByte) {
			t.Errorf("expected ErrNoMatchingByte, got %v", err)
		}
	})
}

// TestNewDefaults tests the Runner constructor.
func TestNewDefaults(t *testing.T) {
	t.Parallel()

	r := New(WithConcurrency(0), WithWorkDir(""))
	if r.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", r.concurrency, DefaultConcurrency)
	}
	if r.workDir == "" {
		t.Error("expected a default work directory")
	}
	if r.logger == nil {
		t.Error("expected a default logger")
	}
}
