// Package classify decides whether a scanf string conversion can write past
// its destination buffer.
//
// The rules, in order:
//
//   - %s (no width): vulnerable, whatever the buffer
//   - %[...] (no width, either polarity): vulnerable
//   - capacity not known at the call site: indeterminate
//   - width < capacity: safe
//   - width == capacity: vulnerable, the terminator lands one byte past the end
//   - width > capacity: vulnerable
//
// %c and %Nc store exactly N bytes (one without a width) and no terminator,
// so N <= capacity is safe and N > capacity is vulnerable. An unknown
// capacity leaves them indeterminate too.
//
// Suppressed conversions (%*Ns) write nothing and are never classified; only
// the capturing conversions that follow them are.
package classify

import (
	"errors"
	"fmt"

	"github.com/nao1215/probekit/internal/model"
	"github.com/nao1215/probekit/internal/scanfmt"
)

var (
	// ErrMissingArgument is returned when a format has more assigning
	// conversions than the call passes arguments.
	ErrMissingArgument = errors.New("missing argument for conversion")

	// ErrNotABuffer is returned when a string conversion is bound to a scalar argument.
	ErrNotABuffer = errors.New("string conversion bound to non-buffer argument")
)

// Directive classifies one string directive against its destination.
// Callers must only pass directives for which WritesBuffer is true; any
// other directive is reported as safe with FindingBounded.
func Directive(d model.Directive, buf model.Buffer) model.ProbeResult {
	finding := findingFor(d, buf)
	return model.ProbeResult{
		Classification: model.GetFindingInfo(finding).Classification,
		Finding:        finding,
		Directive:      d,
		Buffer:         buf,
	}
}

// findingFor applies the rule set and returns the deciding finding type.
func findingFor(d model.Directive, buf model.Buffer) string {
	if d.Kind == model.KindCharArray {
		return charFinding(d, buf)
	}
	if !d.WritesString() {
		return model.FindingBounded
	}
	if !d.HasWidth {
		if d.Kind == model.KindBracketSet {
			return model.FindingUnboundedBracketSet
		}
		return model.FindingUnboundedString
	}
	if !buf.Known {
		return model.FindingUnknownCapacity
	}
	switch {
	case d.Width < buf.Capacity:
		return model.FindingBounded
	case d.Width == buf.Capacity:
		return model.FindingOffByOne
	default:
		return model.FindingWidthExceedsCapacity
	}
}

// charFinding judges a %c directive, which writes no terminator.
func charFinding(d model.Directive, buf model.Buffer) string {
	if !buf.Known {
		return model.FindingUnknownCapacity
	}
	if d.CharCount() <= buf.Capacity {
		return model.FindingBounded
	}
	return model.FindingWidthExceedsCapacity
}

// Call classifies every buffer-writing conversion of format, binding
// assigning conversions to args in order. The call's classification is the
// worst of those conversions; a call without any is safe.
func Call(format string, args []model.Arg) (model.CallResult, error) {
	ds, err := scanfmt.Parse(format)
	if err != nil {
		return model.CallResult{Format: format}, err
	}
	return Directives(format, ds, args)
}

// Directives is like Call for an already parsed format.
func Directives(format string, ds []model.Directive, args []model.Arg) (model.CallResult, error) {
	result := model.CallResult{
		Format:         format,
		Classification: model.Safe,
	}

	next := 0
	for _, d := range ds {
		if !d.Assigns() {
			continue
		}
		if next >= len(args) {
			return result, fmt.Errorf("%w: %s", ErrMissingArgument, d.Raw)
		}
		arg := args[next]
		next++

		if !d.WritesBuffer() {
			continue
		}
		if !arg.IsBuffer() {
			return result, fmt.Errorf("%w: %s -> %s", ErrNotABuffer, d.Raw, arg.Name())
		}

		r := Directive(d, *arg.Buffer)
		result.Results = append(result.Results, r)
		result.Classification = model.Worst(result.Classification, r.Classification)
	}

	return result, nil
}

// Probe classifies a catalogued probe.
func Probe(p model.Probe) (model.CallResult, error) {
	return Call(p.Format, p.Args)
}

// Overflow returns how many bytes a string directive writes past a buffer of
// capacity bytes for an input word of n bytes. It models the terminator that
// every string conversion appends. A %c directive always stores its full
// width whatever n is, and no terminator.
func Overflow(d model.Directive, capacity, n int) int {
	if d.Kind == model.KindCharArray {
		return max(d.CharCount()-capacity, 0)
	}
	if d.HasWidth && n > d.Width {
		n = d.Width
	}
	written := n + 1
	if written <= capacity {
		return 0
	}
	return written - capacity
}
