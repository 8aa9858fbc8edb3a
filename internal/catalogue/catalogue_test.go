package catalogue

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/probekit/internal/model"
)

// TestDefaultCatalogueAgrees tests that every embedded probe receives its
// expected classification.
func TestDefaultCatalogueAgrees(t *testing.T) {
	t.Parallel()

	c := Default()
	if len(c.Probes) == 0 {
		t.Fatal("expected embedded probes")
	}

	report := Classify(c)
	for _, e := range report.Entries {
		if e.Error != "" {
			t.Errorf("%s: unexpected error %s", e.Probe.Name, e.Error)
		}
		if !e.Agrees {
			t.Errorf("%s: classified %v, expected %v", e.Probe.Name, e.Result.Classification, e.Probe.Expected)
		}
	}
	if report.Disagreements != 0 {
		t.Errorf("expected no disagreements, got %d", report.Disagreements)
	}
	if report.SafeCount+report.VulnerableCount+report.IndeterminateCount != len(c.Probes) {
		t.Errorf("counts do not add up: %+v", report)
	}
}

// TestDefaultCatalogueProbes spot-checks classifications of well-known probes.
func TestDefaultCatalogueProbes(t *testing.T) {
	t.Parallel()

	c := Default()

	tests := []struct {
		name    string
		want    model.Classification
		finding string
	}{
		{"good_scanf_percentage_XX_s", model.Safe, model.FindingBounded},
		{"good_scanf_percentage_XX_s_with_asterisk_modifier", model.Safe, model.FindingBounded},
		{"good_scanf_percentage_XX_s_with_other_formats_2", model.Vulnerable, model.FindingOffByOne},
		{"vuln_scanf_percentage_s", model.Vulnerable, model.FindingUnboundedString},
		{"vuln_scanf_percentage_brackets", model.Vulnerable, model.FindingUnboundedBracketSet},
		{"vuln_scanf_percentage_brackets_not", model.Vulnerable, model.FindingUnboundedBracketSet},
		{"vuln_scanf_percentage_XX_s", model.Vulnerable, model.FindingOffByOne},
		{"unknown_scanf_percentage_s_malloc_arg", model.Indeterminate, model.FindingUnknownCapacity},
		{"vuln_fscanf_percentage_s_arg", model.Vulnerable, model.FindingUnboundedString},
		{"off_by_one_demo", model.Vulnerable, model.FindingOffByOne},
	}

	report := Classify(c)
	byName := make(map[string]model.CatalogueEntry, len(report.Entries))
	for _, e := range report.Entries {
		byName[e.Probe.Name] = e
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, ok := byName[tt.name]
			if !ok {
				t.Fatalf("probe %s not in catalogue", tt.name)
			}
			if e.Result.Classification != tt.want {
				t.Errorf("classification = %v, want %v", e.Result.Classification, tt.want)
			}
			if e.Finding() != tt.finding {
				t.Errorf("finding = %q, want %q", e.Finding(), tt.finding)
			}
		})
	}
}

// TestLoadValidation tests catalogue validation errors.
func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "empty document",
			doc:  "",
			want: ErrEmptyCatalogue,
		},
		{
			name: "no probes",
			doc:  "name: x\nprobes: []\n",
			want: ErrEmptyCatalogue,
		},
		{
			name: "duplicate names",
			doc: `probes:
  - {name: a, function: scanf, format: "%d", args: [{scalar: i}]}
  - {name: a, function: scanf, format: "%d", args: [{scalar: i}]}
`,
			want: ErrDuplicateProbe,
		},
		{
			name: "unknown function",
			doc: `probes:
  - {name: a, function: gets, format: "%d", args: [{scalar: i}]}
`,
			want: ErrInvalidProbe,
		},
		{
			name: "broken format",
			doc: `probes:
  - {name: a, function: scanf, format: "%[abc", args: [{scalar: i}]}
`,
			want: ErrInvalidProbe,
		},
		{
			name: "argument with both shapes",
			doc: `probes:
  - name: a
    function: scanf
    format: "%s"
    args:
      - {scalar: i, buffer: {name: b, capacity: 4, known: true}}
`,
			want: ErrInvalidProbe,
		},
		{
			name: "known buffer without capacity",
			doc: `probes:
  - name: a
    function: scanf
    format: "%s"
    args:
      - {buffer: {name: b, known: true}}
`,
			want: ErrInvalidProbe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestLoadFile tests loading from disk and naming after the file.
func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mine.yaml")
	doc := `probes:
  - name: tiny
    function: fscanf
    source: input.txt
    format: "%15s"
    expected: safe
    args:
      - buffer: {name: word, capacity: 16, known: true, origin: heap}
`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != path {
		t.Errorf("name = %q, want %q", c.Name, path)
	}
	p, err := c.Lookup("tiny")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Args[0].Buffer.Origin != model.OriginHeap {
		t.Errorf("origin = %v, want heap", p.Args[0].Buffer.Origin)
	}
	if _, err := c.Lookup("missing"); !errors.Is(err, ErrProbeNotFound) {
		t.Errorf("expected ErrProbeNotFound, got %v", err)
	}
}

// TestDigest tests that digests depend on call shape, not on names.
func TestDigest(t *testing.T) {
	t.Parallel()

	base := model.Probe{
		Name:     "a",
		Function: model.FunctionScanf,
		Format:   "%63s",
		Args:     []model.Arg{{Buffer: &model.Buffer{Name: "buf", Capacity: 64, Known: true}}},
	}
	renamed := base
	renamed.Name = "b"

	resized := base
	resized.Args = []model.Arg{{Buffer: &model.Buffer{Name: "buf", Capacity: 63, Known: true}}}

	if Digest(base) != Digest(renamed) {
		t.Error("expected renaming to keep the digest")
	}
	if Digest(base) == Digest(resized) {
		t.Error("expected a capacity change to change the digest")
	}
	if len(Digest(base)) != 16 {
		t.Errorf("expected 16 hex characters, got %q", Digest(base))
	}
}
