package model

import "time"

// CatalogueEntry is one row of the classification table.
type CatalogueEntry struct {
	// Probe is the classified probe.
	Probe Probe `json:"probe"`

	// Digest identifies the probe's call shape independent of its name.
	Digest string `json:"digest"`

	// Result is the classifier output.
	Result CallResult `json:"result"`

	// Agrees is false when Result.Classification differs from Probe.Expected.
	Agrees bool `json:"agrees"`

	// Error is set when the probe's format string could not be parsed.
	Error string `json:"error,omitempty"`
}

// Finding returns the finding type that decided the entry's classification.
// For entries without string directives it returns FindingBounded.
func (e CatalogueEntry) Finding() string {
	for _, r := range e.Result.Results {
		if r.Classification == e.Result.Classification {
			return r.Finding
		}
	}
	return FindingBounded
}

// CatalogueReport is the static classification of a whole catalogue.
type CatalogueReport struct {
	// Catalogue is the catalogue name.
	Catalogue string `json:"catalogue"`

	// GeneratedAt is when the table was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Entries holds one row per probe, in catalogue order.
	Entries []CatalogueEntry `json:"entries"`

	// SafeCount is the number of safe probes.
	SafeCount int `json:"safe_count"`

	// VulnerableCount is the number of vulnerable probes.
	VulnerableCount int `json:"vulnerable_count"`

	// IndeterminateCount is the number of indeterminate probes.
	IndeterminateCount int `json:"indeterminate_count"`

	// Disagreements is the number of probes whose label was not reproduced.
	Disagreements int `json:"disagreements"`
}

// Count recomputes the summary counters from Entries.
func (r *CatalogueReport) Count() {
	r.SafeCount, r.VulnerableCount, r.IndeterminateCount, r.Disagreements = 0, 0, 0, 0
	for _, e := range r.Entries {
		switch e.Result.Classification {
		case Safe:
			r.SafeCount++
		case Vulnerable:
			r.VulnerableCount++
		case Indeterminate:
			r.IndeterminateCount++
		}
		if !e.Agrees {
			r.Disagreements++
		}
	}
}

// Verdict is the harness outcome for one probe.
type Verdict string

const (
	// VerdictConfirmed means every observation matched the prediction.
	VerdictConfirmed Verdict = "confirmed"

	// VerdictMismatch means at least one observation contradicted the prediction.
	VerdictMismatch Verdict = "mismatch"

	// VerdictSkipped means the probe could not be executed, usually because
	// its capacity is unknown and no runtime capacity was configured.
	VerdictSkipped Verdict = "skipped"

	// VerdictFailed means the probe errored before producing observations.
	VerdictFailed Verdict = "failed"
)

// Observation is the outcome of feeding one boundary input to one directive.
type Observation struct {
	// Directive is the raw text of the exercised directive.
	Directive string `json:"directive"`

	// Buffer is the destination name.
	Buffer string `json:"buffer"`

	// Capacity is the capacity used for the execution.
	Capacity int `json:"capacity"`

	// InputLen is the payload length fed to the directive.
	InputLen int `json:"input_len"`

	// Written is the number of bytes the scan wrote, terminator included.
	Written int `json:"written"`

	// Overflow is the number of bytes written past the buffer.
	Overflow int `json:"overflow"`

	// AfterFirstByte is the first byte of the adjacent buffer after the scan.
	AfterFirstByte byte `json:"after_first_byte"`

	// AfterIntact reports whether the adjacent buffer bytes other than the
	// first one kept their values.
	AfterIntact bool `json:"after_intact"`

	// Expected reports whether this observation matches the prediction.
	Expected bool `json:"expected"`
}

// Overflowed reports whether the scan wrote past the buffer.
func (o Observation) Overflowed() bool {
	return o.Overflow > 0
}

// ProbeRun is the harness result for one probe.
type ProbeRun struct {
	// Probe is the probe name.
	Probe string `json:"probe"`

	// Digest identifies the probe's call shape.
	Digest string `json:"digest"`

	// Function is scanf or fscanf.
	Function Function `json:"function"`

	// Format is the probe's format string.
	Format string `json:"format"`

	// Classification is the static classification the run checked.
	Classification Classification `json:"classification"`

	// RuntimeCapacity is set when an indeterminate probe was executed with a
	// configured capacity.
	RuntimeCapacity int `json:"runtime_capacity,omitempty"`

	// Verdict is the harness outcome.
	Verdict Verdict `json:"verdict"`

	// Observations are the boundary executions, in order.
	Observations []Observation `json:"observations,omitempty"`

	// Error describes a failed run.
	Error string `json:"error,omitempty"`
}

// HarnessReport is the result of running the boundary harness over a catalogue.
type HarnessReport struct {
	// ID is the database identifier, zero until saved.
	ID int64 `json:"id,omitempty"`

	// Catalogue is the catalogue name.
	Catalogue string `json:"catalogue"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// Runs holds one entry per probe, in catalogue order.
	Runs []ProbeRun `json:"runs"`

	// Cancelled is true when the run was interrupted.
	Cancelled bool `json:"cancelled,omitempty"`
}

// CountVerdict returns how many runs ended with v.
func (r *HarnessReport) CountVerdict(v Verdict) int {
	n := 0
	for _, run := range r.Runs {
		if run.Verdict == v {
			n++
		}
	}
	return n
}

// RunsByVerdict returns the runs that ended with v.
func (r *HarnessReport) RunsByVerdict(v Verdict) []ProbeRun {
	var runs []ProbeRun
	for _, run := range r.Runs {
		if run.Verdict == v {
			runs = append(runs, run)
		}
	}
	return runs
}

// Passed reports whether no run ended in mismatch or failure.
func (r *HarnessReport) Passed() bool {
	return r.CountVerdict(VerdictMismatch) == 0 && r.CountVerdict(VerdictFailed) == 0
}
