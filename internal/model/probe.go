package model

// Function is the scanning function a probe calls.
type Function string

const (
	// FunctionScanf reads from standard input.
	FunctionScanf Function = "scanf"

	// FunctionFscanf reads from a file opened by the probe.
	FunctionFscanf Function = "fscanf"
)

// Probe is one catalogued call site: a single scan with a specific format
// string and destination arguments, labeled a priori.
type Probe struct {
	// Name is the probe's identifier, unique within a catalogue.
	Name string `json:"name" yaml:"name"`

	// Function is scanf or fscanf.
	Function Function `json:"function" yaml:"function"`

	// Format is the format string passed to the scanning function.
	Format string `json:"format" yaml:"format"`

	// Args are the variadic arguments in call order.
	Args []Arg `json:"args" yaml:"args"`

	// Expected is the a-priori label of the probe.
	Expected Classification `json:"expected" yaml:"expected"`

	// Section groups probes in the catalogue (good, vuln, unknown).
	Section string `json:"section,omitempty" yaml:"section,omitempty"`

	// Note is a free-form remark shown in reports.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`

	// Source is the input file an fscanf probe reads.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// ProbeResult is the classifier verdict for one string directive.
type ProbeResult struct {
	// Classification is the verdict.
	Classification Classification `json:"classification"`

	// Finding is the finding type that explains the verdict.
	Finding string `json:"finding"`

	// Directive is the classified directive.
	Directive Directive `json:"directive"`

	// Buffer is the destination the directive writes into.
	Buffer Buffer `json:"buffer"`
}

// CallResult is the classifier verdict for a whole call site.
type CallResult struct {
	// Format is the classified format string.
	Format string `json:"format"`

	// Classification is the worst classification among Results.
	// A call without string directives is Safe.
	Classification Classification `json:"classification"`

	// Results holds one entry per string directive, in format order.
	Results []ProbeResult `json:"results"`
}
