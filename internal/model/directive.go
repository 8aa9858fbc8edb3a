package model

// DirectiveKind describes how a format directive writes into its argument.
type DirectiveKind int

const (
	// KindLiteral is ordinary text or whitespace that input must match.
	KindLiteral DirectiveKind = iota

	// KindPlainString is %s without a width.
	KindPlainString

	// KindWidthString is %Ns.
	KindWidthString

	// KindBracketSet is %[...] or %N[...].
	KindBracketSet

	// KindSuppressed is any %*... conversion. It reads input but assigns nothing.
	KindSuppressed

	// KindNonString is every other assigning conversion (%d, %p, %n, ...).
	KindNonString

	// KindCharArray is %c or %Nc. It stores exactly width bytes, one when no
	// width is given, and no terminator.
	KindCharArray
)

// String returns the name of the kind as used in reports.
func (k DirectiveKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindPlainString:
		return "plain-string"
	case KindWidthString:
		return "width-limited-string"
	case KindBracketSet:
		return "bracket-set"
	case KindSuppressed:
		return "suppressed"
	case KindNonString:
		return "non-string"
	case KindCharArray:
		return "char-array"
	default:
		return "unknown"
	}
}

// Directive is one token of a scanf format string.
type Directive struct {
	// Kind classifies the token.
	Kind DirectiveKind `json:"kind"`

	// Raw is the exact text of the token in the format string.
	Raw string `json:"raw"`

	// Offset is the byte offset of Raw in the format string.
	Offset int `json:"offset"`

	// Width is the declared maximum field width. Valid only when HasWidth is set.
	Width int `json:"width,omitempty"`

	// HasWidth reports whether a width was declared.
	HasWidth bool `json:"has_width"`

	// Suppressed is true for %*... conversions.
	Suppressed bool `json:"suppressed,omitempty"`

	// Conversion is the conversion character ('s', '[', 'd', ...). Zero for literals.
	Conversion byte `json:"conversion,omitempty"`

	// Length is the length modifier ("l", "hh", ...), if any.
	Length string `json:"length,omitempty"`

	// Set holds the scanset members of a bracket conversion, without the
	// brackets and the leading '^'.
	Set string `json:"set,omitempty"`

	// Negated is true for %[^...] scansets.
	Negated bool `json:"negated,omitempty"`

	// Literal holds the text a KindLiteral token must match.
	Literal string `json:"literal,omitempty"`
}

// Assigns reports whether the directive consumes a destination argument.
func (d Directive) Assigns() bool {
	switch d.Kind {
	case KindPlainString, KindWidthString, KindBracketSet, KindNonString, KindCharArray:
		return true
	default:
		return false
	}
}

// WritesString reports whether the directive copies bytes plus a terminator
// into a character buffer, which is what the classifier judges.
func (d Directive) WritesString() bool {
	switch d.Kind {
	case KindPlainString, KindWidthString, KindBracketSet:
		return true
	default:
		return false
	}
}

// WritesBuffer reports whether the directive stores bytes into a character
// buffer, with or without a terminator.
func (d Directive) WritesBuffer() bool {
	return d.WritesString() || d.Kind == KindCharArray
}

// CharCount returns how many bytes a %c directive stores.
func (d Directive) CharCount() int {
	if d.HasWidth {
		return d.Width
	}
	return 1
}

// StringConversion reports whether the underlying conversion reads a string,
// even when suppressed.
func (d Directive) StringConversion() bool {
	return d.Conversion == 's' || d.Conversion == '['
}

// Accepts reports whether b may be consumed by a bracket conversion.
func (d Directive) Accepts(b byte) bool {
	in := false
	for i := 0; i < len(d.Set); {
		// a-z style ranges, as glibc implements them
		if i+2 < len(d.Set) && d.Set[i+1] == '-' {
			if d.Set[i] <= b && b <= d.Set[i+2] {
				in = true
				break
			}
			i += 3
			continue
		}
		if d.Set[i] == b {
			in = true
			break
		}
		i++
	}
	return in != d.Negated
}
