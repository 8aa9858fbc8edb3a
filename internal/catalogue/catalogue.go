// Package catalogue loads and classifies probe catalogues.
//
// A catalogue is a YAML document listing scanf/fscanf call sites together
// with their destination buffers and the classification each one must
// receive. The catalogue of the bounded-read article is embedded and
// returned by Default.
package catalogue

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/probekit/internal/classify"
	"github.com/nao1215/probekit/internal/model"
	"github.com/nao1215/probekit/internal/scanfmt"
)

//go:embed probes.yaml
var defaultCatalogue []byte

var (
	// ErrEmptyCatalogue is returned when a catalogue defines no probes.
	ErrEmptyCatalogue = errors.New("catalogue has no probes")

	// ErrDuplicateProbe is returned when two probes share a name.
	ErrDuplicateProbe = errors.New("duplicate probe name")

	// ErrInvalidProbe is returned when a probe definition is incomplete or malformed.
	ErrInvalidProbe = errors.New("invalid probe")

	// ErrProbeNotFound is returned by Lookup for unknown names.
	ErrProbeNotFound = errors.New("probe not found")
)

// Catalogue is an ordered set of probes.
type Catalogue struct {
	// Name identifies the catalogue in reports and run history.
	Name string `yaml:"name"`

	// Probes are the catalogued call sites, in presentation order.
	Probes []model.Probe `yaml:"probes"`
}

// Default returns the embedded catalogue.
func Default() *Catalogue {
	c, err := Load(bytes.NewReader(defaultCatalogue))
	if err != nil {
		panic(fmt.Sprintf("catalogue: embedded probes.yaml is invalid: %v", err))
	}
	return c
}

// Load decodes and validates a catalogue.
func Load(r io.Reader) (*Catalogue, error) {
	var c Catalogue
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCatalogue
		}
		return nil, fmt.Errorf("failed to decode catalogue: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile loads a catalogue from path. A catalogue without a name is named
// after the file.
func LoadFile(path string) (*Catalogue, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided catalogue path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Name == "" {
		c.Name = path
	}
	return c, nil
}

// Validate checks names, functions, format strings and argument shapes.
func (c *Catalogue) Validate() error {
	if len(c.Probes) == 0 {
		return ErrEmptyCatalogue
	}

	seen := make(map[string]bool, len(c.Probes))
	for i, p := range c.Probes {
		if p.Name == "" {
			return fmt.Errorf("%w: probe %d has no name", ErrInvalidProbe, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateProbe, p.Name)
		}
		seen[p.Name] = true

		if p.Function != model.FunctionScanf && p.Function != model.FunctionFscanf {
			return fmt.Errorf("%w: %s: unknown function %q", ErrInvalidProbe, p.Name, p.Function)
		}
		if _, err := scanfmt.Parse(p.Format); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidProbe, p.Name, err)
		}
		for j, a := range p.Args {
			if (a.Buffer == nil) == (a.Scalar == "") {
				return fmt.Errorf("%w: %s: argument %d must be either a buffer or a scalar", ErrInvalidProbe, p.Name, j)
			}
			if a.Buffer != nil && a.Buffer.Known && a.Buffer.Capacity <= 0 {
				return fmt.Errorf("%w: %s: buffer %s has a known but non-positive capacity", ErrInvalidProbe, p.Name, a.Buffer.Name)
			}
		}
	}
	return nil
}

// Lookup returns the probe called name.
func (c *Catalogue) Lookup(name string) (model.Probe, error) {
	for _, p := range c.Probes {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Probe{}, fmt.Errorf("%w: %s", ErrProbeNotFound, name)
}

// Digest returns a short SHA3-256 digest of the probe's call shape: function,
// format and arguments. Renaming a probe keeps its digest.
func Digest(p model.Probe) string {
	var sb strings.Builder
	sb.WriteString(string(p.Function))
	sb.WriteByte(0)
	sb.WriteString(p.Format)
	for _, a := range p.Args {
		sb.WriteByte(0)
		if a.Buffer == nil {
			sb.WriteString("scalar")
			continue
		}
		sb.WriteString(a.Buffer.Origin.String())
		sb.WriteByte(':')
		if a.Buffer.Known {
			sb.WriteString(strconv.Itoa(a.Buffer.Capacity))
		} else {
			sb.WriteByte('?')
		}
	}
	sum := sha3.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:8])
}

// Classify builds the classification table of c.
func Classify(c *Catalogue) *model.CatalogueReport {
	report := &model.CatalogueReport{
		Catalogue:   c.Name,
		GeneratedAt: time.Now(),
		Entries:     make([]model.CatalogueEntry, 0, len(c.Probes)),
	}

	for _, p := range c.Probes {
		entry := model.CatalogueEntry{
			Probe:  p,
			Digest: Digest(p),
		}
		res, err := classify.Probe(p)
		entry.Result = res
		if err != nil {
			entry.Error = err.Error()
			entry.Result.Classification = model.Indeterminate
		}
		entry.Agrees = err == nil && res.Classification == p.Expected
		report.Entries = append(report.Entries, entry)
	}

	report.Count()
	return report
}
