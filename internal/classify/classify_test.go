package classify

import (
	"errors"
	"testing"

	"github.com/nao1215/probekit/internal/model"
	"github.com/nao1215/probekit/internal/scanfmt"
)

func mustParse(t *testing.T, format string) model.Directive {
	t.Helper()

	ds, err := scanfmt.Parse(format)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", format, err)
	}
	return ds[0]
}

func stack(name string, capacity int) *model.Buffer {
	return &model.Buffer{Name: name, Capacity: capacity, Known: true, Origin: model.OriginStack}
}

func opaque(name string) *model.Buffer {
	return &model.Buffer{Name: name, Origin: model.OriginParam}
}

// TestDirective tests every rule of the classifier on single directives.
func TestDirective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  string
		buf     *model.Buffer
		want    model.Classification
		finding string
	}{
		{"plain string is vulnerable", "%s", stack("buf", 100), model.Vulnerable, model.FindingUnboundedString},
		{"plain string into opaque pointer is vulnerable", "%s", opaque("buf"), model.Vulnerable, model.FindingUnboundedString},
		{"inclusive set is vulnerable", "%[A]", stack("buf", 100), model.Vulnerable, model.FindingUnboundedBracketSet},
		{"negated set is vulnerable", "%[^\n]", stack("buf", 100), model.Vulnerable, model.FindingUnboundedBracketSet},
		{"width below capacity is safe", "%63s", stack("buf", 64), model.Safe, model.FindingBounded},
		{"width far below capacity is safe", "%8s", stack("buf", 64), model.Safe, model.FindingBounded},
		{"width equal to capacity is off by one", "%64s", stack("buf", 64), model.Vulnerable, model.FindingOffByOne},
		{"width above capacity is vulnerable", "%65s", stack("buf", 64), model.Vulnerable, model.FindingWidthExceedsCapacity},
		{"unknown capacity is indeterminate", "%64s", opaque("buf"), model.Indeterminate, model.FindingUnknownCapacity},
		{"unknown capacity with small width is indeterminate", "%1s", opaque("buf"), model.Indeterminate, model.FindingUnknownCapacity},
		{"set with width below capacity is safe", "%63[^\n]", stack("buf", 64), model.Safe, model.FindingBounded},
		{"set with width equal to capacity is off by one", "%64[a-z]", stack("buf", 64), model.Vulnerable, model.FindingOffByOne},
		{"zero width string is unbounded", "%0s", stack("buf", 64), model.Vulnerable, model.FindingUnboundedString},
		{"zero width set is unbounded", "%0[a-z]", stack("buf", 64), model.Vulnerable, model.FindingUnboundedBracketSet},
		{"char width above capacity is vulnerable", "%100c", stack("buf", 64), model.Vulnerable, model.FindingWidthExceedsCapacity},
		{"char width equal to capacity is safe", "%64c", stack("buf", 64), model.Safe, model.FindingBounded},
		{"single char into one byte is safe", "%c", stack("ch", 1), model.Safe, model.FindingBounded},
		{"char into opaque pointer is indeterminate", "%c", opaque("ch"), model.Indeterminate, model.FindingUnknownCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := mustParse(t, tt.format)
			got := Directive(d, *tt.buf)
			if got.Classification != tt.want {
				t.Errorf("classification = %v, want %v", got.Classification, tt.want)
			}
			if got.Finding != tt.finding {
				t.Errorf("finding = %q, want %q", got.Finding, tt.finding)
			}
		})
	}
}

// TestCall tests argument binding and the worst-of aggregation.
func TestCall(t *testing.T) {
	t.Parallel()

	t.Run("scalar conversions consume arguments", func(t *testing.T) {
		t.Parallel()

		res, err := Call("Test %d %63s", []model.Arg{{Scalar: "i"}, {Buffer: stack("buf", 64)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Classification != model.Safe {
			t.Errorf("expected safe, got %v", res.Classification)
		}
		if len(res.Results) != 1 || res.Results[0].Buffer.Name != "buf" {
			t.Errorf("expected one result for buf, got %+v", res.Results)
		}
	})

	t.Run("suppressed conversion consumes no argument", func(t *testing.T) {
		t.Parallel()

		res, err := Call("Test %*100s %63s", []model.Arg{{Buffer: stack("buf", 64)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Classification != model.Safe {
			t.Errorf("expected safe, got %v", res.Classification)
		}
		if len(res.Results) != 1 {
			t.Errorf("expected only the capturing directive to be classified, got %d", len(res.Results))
		}
	})

	t.Run("worst directive decides the call", func(t *testing.T) {
		t.Parallel()

		res, err := Call("%31s%63s%100s", []model.Arg{
			{Buffer: stack("buf_1", 32)},
			{Buffer: stack("buf_2", 64)},
			{Buffer: stack("buf_3", 100)},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Classification != model.Vulnerable {
			t.Errorf("expected vulnerable, got %v", res.Classification)
		}
		if res.Results[2].Finding != model.FindingOffByOne {
			t.Errorf("expected off-by-one on buf_3, got %q", res.Results[2].Finding)
		}
	})

	t.Run("char array is bound to its buffer", func(t *testing.T) {
		t.Parallel()

		res, err := Call("%d %100c", []model.Arg{{Scalar: "n"}, {Buffer: stack("buf", 64)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Classification != model.Vulnerable {
			t.Errorf("expected vulnerable, got %v", res.Classification)
		}
		if len(res.Results) != 1 || res.Results[0].Finding != model.FindingWidthExceedsCapacity {
			t.Errorf("expected width_exceeds_capacity on buf, got %+v", res.Results)
		}
	})

	t.Run("vulnerable beats indeterminate", func(t *testing.T) {
		t.Parallel()

		res, err := Call("%64s %s", []model.Arg{{Buffer: opaque("a")}, {Buffer: stack("b", 8)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Classification != model.Vulnerable {
			t.Errorf("expected vulnerable, got %v", res.Classification)
		}
	})

	t.Run("call without string conversions is safe", func(t *testing.T) {
		t.Parallel()

		res, err := Call("%d %x", []model.Arg{{Scalar: "a"}, {Scalar: "b"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Classification != model.Safe || len(res.Results) != 0 {
			t.Errorf("expected safe with no results, got %+v", res)
		}
	})

	t.Run("missing argument", func(t *testing.T) {
		t.Parallel()

		_, err := Call("%s %s", []model.Arg{{Buffer: stack("a", 8)}})
		if !errors.Is(err, ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("string conversion into scalar", func(t *testing.T) {
		t.Parallel()

		_, err := Call("%s", []model.Arg{{Scalar: "i"}})
		if !errors.Is(err, ErrNotABuffer) {
			t.Errorf("expected ErrNotABuffer, got %v", err)
		}
	})

	t.Run("parse error is returned", func(t *testing.T) {
		t.Parallel()

		_, err := Call("%[abc", []model.Arg{{Buffer: stack("a", 8)}})
		if !errors.Is(err, scanfmt.ErrUnterminatedSet) {
			t.Errorf("expected ErrUnterminatedSet, got %v", err)
		}
	})
}

// TestOverflow tests the byte arithmetic behind the boundary inputs.
func TestOverflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		format   string
		capacity int
		n        int
		want     int
	}{
		{"capacity-1 input fits %s", "%s", 8, 7, 0},
		{"capacity input overflows %s by the terminator", "%s", 8, 8, 1},
		{"capacity+1 input overflows %s by two", "%s", 8, 9, 2},
		{"width equal to capacity overflows by one", "%8s", 8, 8, 1},
		{"width equal to capacity caps longer input", "%8s", 8, 20, 1},
		{"width below capacity never overflows", "%7s", 8, 20, 0},
		{"char width equal to capacity stores no terminator", "%8c", 8, 8, 0},
		{"char width above capacity overflows by the excess", "%10c", 8, 3, 2},
		{"single char fits one byte", "%c", 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := mustParse(t, tt.format)
			if got := Overflow(d, tt.capacity, tt.n); got != tt.want {
				t.Errorf("Overflow = %d, want %d", got, tt.want)
			}
		})
	}
}
