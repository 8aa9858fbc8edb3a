package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nao1215/probekit/internal/catalogue"
	"github.com/nao1215/probekit/internal/classify"
	"github.com/nao1215/probekit/internal/model"
	"github.com/nao1215/probekit/internal/scanf"
	"github.com/nao1215/probekit/internal/scanfmt"
)

const (
	// guardSize is the size of the regions placed around the exercised buffer.
	guardSize = 8

	// scratchSize is used for non-exercised destinations whose capacity is unknown.
	scratchSize = 64
)

// errNoTargets is recorded when a probe has nothing the harness can execute.
var errNoTargets = errors.New("no executable string conversion")

// target is a string directive bound to its destination.
type target struct {
	index     int
	directive model.Directive
	buffer    model.Buffer
}

// guard returns the initial contents of a guard region: fill bytes followed by
// a terminator, so the region prints as a C string.
func guard(fill byte) []byte {
	g := bytes.Repeat([]byte{fill}, guardSize)
	g[guardSize-1] = 0
	return g
}

// bind pairs assigning directives with arguments and returns the buffer targets.
func bind(ds []model.Directive, args []model.Arg) (map[int]model.Arg, []target, error) {
	bound := make(map[int]model.Arg, len(args))
	var targets []target

	next := 0
	for i, d := range ds {
		if !d.Assigns() {
			continue
		}
		if next >= len(args) {
			return nil, nil, fmt.Errorf("%w: %s", classify.ErrMissingArgument, d.Raw)
		}
		arg := args[next]
		next++
		bound[i] = arg

		if !d.WritesBuffer() {
			continue
		}
		if !arg.IsBuffer() {
			return nil, nil, fmt.Errorf("%w: %s -> %s", classify.ErrNotABuffer, d.Raw, arg.Name())
		}
		targets = append(targets, target{index: i, directive: d, buffer: *arg.Buffer})
	}
	return bound, targets, nil
}

// boundaryLengths returns the payload lengths fed to d's buffer of capacity
// bytes. A %c directive stores its width whatever the input, so it runs once.
func boundaryLengths(d model.Directive, capacity int) []int {
	if d.Kind == model.KindCharArray {
		return []int{d.CharCount()}
	}
	lengths := make([]int, 0, 3)
	for _, n := range []int{capacity - 1, capacity, capacity + 1} {
		if n >= 1 {
			lengths = append(lengths, n)
		}
	}
	return lengths
}

// RunProbe executes one probe at its boundaries and judges the observations
// against the static classification.
func (r *Runner) RunProbe(ctx context.Context, p model.Probe) model.ProbeRun {
	run := model.ProbeRun{
		Probe:    p.Name,
		Digest:   catalogue.Digest(p),
		Function: p.Function,
		Format:   p.Format,
	}

	fail := func(err error) model.ProbeRun {
		run.Verdict = model.VerdictFailed
		run.Error = err.Error()
		return run
	}

	result, err := classify.Probe(p)
	if err != nil {
		return fail(err)
	}
	run.Classification = result.Classification

	ds, err := scanfmt.Parse(p.Format)
	if err != nil {
		return fail(err)
	}
	bound, targets, err := bind(ds, p.Args)
	if err != nil {
		return fail(err)
	}

	runtimeCapacity := r.runtimeCapacities[p.Name]
	executed := 0
	confirmed := true

	for _, t := range targets {
		buf := t.buffer
		if !buf.Known {
			if runtimeCapacity <= 0 {
				r.logger.Debug("skipping directive with unknown capacity",
					"probe", p.Name,
					"directive", t.directive.Raw,
					"buffer", buf.Name,
				)
				continue
			}
			buf.Capacity = runtimeCapacity
			buf.Known = true
			run.RuntimeCapacity = runtimeCapacity
		}
		predicted := classify.Directive(t.directive, buf)

		overflowed := false
		for _, n := range boundaryLengths(t.directive, buf.Capacity) {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			obs, err := r.observe(p, ds, bound, t, buf.Capacity, n)
			if err != nil {
				return fail(err)
			}
			run.Observations = append(run.Observations, obs)
			overflowed = overflowed || obs.Overflowed()
			confirmed = confirmed && obs.Expected
		}
		executed++

		switch predicted.Classification {
		case model.Safe:
			confirmed = confirmed && !overflowed
		case model.Vulnerable:
			confirmed = confirmed && overflowed
		}
	}

	switch {
	case executed == 0:
		run.Verdict = model.VerdictSkipped
		if len(targets) == 0 {
			run.Error = errNoTargets.Error()
		}
	case confirmed:
		run.Verdict = model.VerdictConfirmed
	default:
		run.Verdict = model.VerdictMismatch
	}
	return run
}

// observe runs the probe once with an n byte payload for target t.
func (r *Runner) observe(p model.Probe, ds []model.Directive, bound map[int]model.Arg, t target, capacity, n int) (model.Observation, error) {
	arena := scanf.NewArena()
	arena.Alloc("guard_before", guard('A'))
	buf := arena.AllocFilled(t.buffer.Name, capacity, 'X')
	after := arena.Alloc("guard_after", guard('B'))

	scratch := scanf.NewArena()
	dst := make([]any, 0, len(bound))
	for i, d := range ds {
		if !d.Assigns() {
			continue
		}
		switch {
		case i == t.index:
			dst = append(dst, buf)
		case d.StringConversion():
			size := scratchSize
			if a := bound[i]; a.IsBuffer() && a.Buffer.Known {
				size = a.Buffer.Capacity
			}
			dst = append(dst, scratch.AllocFilled(bound[i].Name(), size, 0))
		case d.Conversion == 'c':
			dst = append(dst, scratch.AllocFilled(bound[i].Name(), d.CharCount(), 0))
		default:
			dst = append(dst, new(int))
		}
	}

	input, err := buildInput(ds, t.index, n)
	if err != nil {
		return model.Observation{}, err
	}
	input += "\n"

	r.logger.Debug("executing probe",
		"probe", p.Name,
		"directive", t.directive.Raw,
		"capacity", capacity,
		"input", input,
	)

	if _, err := r.scan(p, input, dst); err != nil {
		return model.Observation{}, err
	}

	predicted := classify.Overflow(t.directive, capacity, n)
	afterBytes := after.Bytes()
	initial := guard('B')

	obs := model.Observation{
		Directive:      t.directive.Raw,
		Buffer:         t.buffer.Name,
		Capacity:       capacity,
		InputLen:       n,
		Written:        buf.Written(),
		Overflow:       buf.Overflow(),
		AfterFirstByte: afterBytes[0],
		AfterIntact:    bytes.Equal(afterBytes[1:], initial[1:]),
	}

	switch {
	case predicted == 0:
		obs.Expected = obs.Overflow == 0 && obs.AfterFirstByte == initial[0] && obs.AfterIntact
	case predicted == 1 && t.directive.WritesString():
		obs.Expected = obs.Overflow == 1 && obs.AfterFirstByte == 0 && obs.AfterIntact
	default:
		obs.Expected = obs.Overflow == predicted
	}

	if !obs.Expected {
		r.logger.Warn("observation contradicts prediction",
			"probe", p.Name,
			"directive", t.directive.Raw,
			"input_len", n,
			"predicted_overflow", predicted,
			"overflow", obs.Overflow,
			"buffer", string(buf.Bytes()),
		)
	}
	return obs, nil
}

// scan feeds input to the probe. fscanf probes read it back from a file in
// the runner's work directory.
func (r *Runner) scan(p model.Probe, input string, dst []any) (int, error) {
	if p.Function != model.FunctionFscanf {
		return scanf.Sscan(input, p.Format, dst...)
	}

	f, err := os.CreateTemp(r.workDir, "probekit-*.txt")
	if err != nil {
		return 0, fmt.Errorf("failed to create input file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path) //nolint:errcheck // best effort cleanup of the input file

	if _, err := f.WriteString(input); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return 0, fmt.Errorf("failed to write input file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close input file: %w", err)
	}

	src, err := scanf.OpenSource(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return src.Scan(p.Format, dst...)
}
