package model

import (
	"fmt"
	"strings"
)

// Classification is the verdict of the bounded-read classifier for one
// directive or one call site.
//
// The constants are ordered by risk so that the worst of several results can
// be found with a plain comparison.
type Classification int

const (
	// Safe means the declared width can never exceed the destination capacity,
	// terminator included.
	Safe Classification = iota

	// Indeterminate means the destination capacity is not visible at the call
	// site (opaque pointer, runtime size), so no verdict is possible statically.
	Indeterminate

	// Vulnerable means some input makes the scan write past the destination.
	Vulnerable
)

// String returns the lower-case name of the classification.
func (c Classification) String() string {
	switch c {
	case Safe:
		return "safe"
	case Indeterminate:
		return "indeterminate"
	case Vulnerable:
		return "vulnerable"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// It accepts the names produced by String in any case.
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClassification parses a classification name.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe", "good":
		return Safe, nil
	case "indeterminate", "unknown":
		return Indeterminate, nil
	case "vulnerable", "vuln":
		return Vulnerable, nil
	default:
		return Safe, fmt.Errorf("unknown classification %q", s)
	}
}

// Worst returns the riskiest of the given classifications.
// With no arguments it returns Safe.
func Worst(cs ...Classification) Classification {
	worst := Safe
	for _, c := range cs {
		if c > worst {
			worst = c
		}
	}
	return worst
}

// Finding types produced by the classifier.
const (
	FindingBounded              = "bounded"
	FindingUnboundedString      = "unbounded_string"
	FindingUnboundedBracketSet  = "unbounded_bracket_set"
	FindingOffByOne             = "off_by_one"
	FindingWidthExceedsCapacity = "width_exceeds_capacity"
	FindingUnknownCapacity      = "unknown_capacity"
)

// FindingInfo contains metadata about a finding type including its
// classification, impact description, and remediation recommendation.
type FindingInfo struct {
	Classification Classification
	Title          string
	Impact         string
	Recommendation string
}

// findingInfoMapping maps finding types to their metadata.
// It is the single source of truth for how each finding is presented.
var findingInfoMapping = map[string]FindingInfo{
	FindingUnboundedString: {
		Classification: Vulnerable,
		Title:          "Unbounded %s conversion",
		Impact:         "%s copies a whole whitespace-delimited word, so any word of capacity bytes or more writes past the buffer.",
		Recommendation: "Give the conversion a width of at most capacity-1, e.g. %63s for a 64 byte buffer.",
	},
	FindingUnboundedBracketSet: {
		Classification: Vulnerable,
		Title:          "Unbounded %[ conversion",
		Impact:         "A scanset without a width copies every matching byte, whether the set is inclusive or negated.",
		Recommendation: "Add a width of at most capacity-1 to the scanset, e.g. %63[^\\n].",
	},
	FindingOffByOne: {
		Classification: Vulnerable,
		Title:          "Width equals capacity (off-by-one)",
		Impact:         "A word of exactly width bytes fills the buffer and the terminating zero lands on the first byte after it.",
		Recommendation: "Use a width of capacity-1 to leave room for the terminator.",
	},
	FindingWidthExceedsCapacity: {
		Classification: Vulnerable,
		Title:          "Width larger than capacity",
		Impact:         "The declared width allows more bytes than the buffer holds.",
		Recommendation: "Shrink the width to capacity-1 or grow the buffer.",
	},
	FindingUnknownCapacity: {
		Classification: Indeterminate,
		Title:          "Capacity unknown at call site",
		Impact:         "The buffer size is decided elsewhere, so the width cannot be checked where the scan happens.",
		Recommendation: "Pass the capacity along with the pointer and build the width from it.",
	},
	FindingBounded: {
		Classification: Safe,
		Title:          "Width below capacity",
		Impact:         "At most width bytes plus the terminator are written, which fits the buffer.",
		Recommendation: "No action needed.",
	},
}

// GetFindingInfo returns the full finding information for a finding type.
// Unknown types are reported as indeterminate.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{
		Classification: Indeterminate,
		Title:          findingType,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the call site.",
	}
}
