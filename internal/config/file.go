package config

import "fmt"

// ProbeConfig holds overrides for a single catalogued probe.
type ProbeConfig struct {
	// RuntimeCapacity is the buffer capacity the harness uses when the
	// probe's capacity is unknown at the call site. Zero leaves such
	// buffers unexecuted.
	RuntimeCapacity int `yaml:"runtimeCapacity,omitempty"`

	// Skip excludes the probe from harness runs.
	Skip bool `yaml:"skip,omitempty"`
}

// TraceConfig holds defaults for the trace command.
type TraceConfig struct {
	// Output is the trace file path.
	Output string `yaml:"output,omitempty"`

	// NoASLR disables address space randomization for traced programs.
	NoASLR bool `yaml:"noAslr,omitempty"`

	// Disassemble adds a disassembly column to traces.
	Disassemble bool `yaml:"disassemble,omitempty"`
}

// File represents the structure of the .probekit configuration file.
type File struct {
	// Catalogue is a probe catalogue path used instead of the embedded one.
	Catalogue string `yaml:"catalogue,omitempty"`

	// BatchSize overrides the harness concurrency.
	BatchSize int `yaml:"batchSize,omitempty"`

	// Probes maps probe names to their overrides.
	Probes map[string]ProbeConfig `yaml:"probes,omitempty"`

	// Defaults applies to every probe unless overridden in Probes.
	Defaults ProbeConfig `yaml:"defaults,omitempty"`

	// Trace holds trace command defaults.
	Trace TraceConfig `yaml:"trace,omitempty"`
}

// NewFile returns an empty configuration file.
func NewFile() *File {
	return &File{Probes: make(map[string]ProbeConfig)}
}

// GetProbeConfig returns the configuration for a probe, merging its
// overrides with the defaults.
func (f *File) GetProbeConfig(name string) ProbeConfig {
	result := f.Defaults

	if pc, ok := f.Probes[name]; ok {
		if pc.RuntimeCapacity != 0 {
			result.RuntimeCapacity = pc.RuntimeCapacity
		}
		if pc.Skip {
			result.Skip = true
		}
	}

	return result
}

// RuntimeCapacities returns the runtime capacity of every named probe that
// has one.
func (f *File) RuntimeCapacities(names []string) map[string]int {
	capacities := make(map[string]int)
	for _, name := range names {
		if c := f.GetProbeConfig(name).RuntimeCapacity; c > 0 {
			capacities[name] = c
		}
	}
	return capacities
}

// Validate checks the overrides.
func (f *File) Validate() error {
	if f.Defaults.RuntimeCapacity < 0 {
		return fmt.Errorf("%w: defaults", ErrInvalidRuntimeCapacity)
	}
	for name, pc := range f.Probes {
		if pc.RuntimeCapacity < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidRuntimeCapacity, name)
		}
	}
	if f.BatchSize < 0 {
		return ErrInvalidBatchSize
	}
	return nil
}
