package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/probekit/internal/model"
)

// ErrNoMatchingByte is returned when a scanset accepts no printable byte.
var ErrNoMatchingByte = errors.New("scanset accepts no printable byte")

// fillCandidates are tried in order when picking a payload byte.
const fillCandidates = "CXabcdefghijklmnopqrstuvwxyzABDEFGHIJKLMNOPQRSTUVWYZ0123456789!#$%&*+-./:;<=>?@^_~"

// stopCandidates are tried in order when a string conversion needs an explicit
// end of field.
const stopCandidates = " \n\t\x00"

// fillByte returns a printable byte the directive will consume.
func fillByte(d model.Directive) (byte, error) {
	for i := 0; i < len(fillCandidates); i++ {
		b := fillCandidates[i]
		if d.Conversion == '[' && !d.Accepts(b) {
			continue
		}
		return b, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNoMatchingByte, d.Raw)
}

// stopByte returns a byte that ends the directive's field, or false if the
// directive accepts every candidate.
func stopByte(d model.Directive) (byte, bool) {
	for i := 0; i < len(stopCandidates); i++ {
		b := stopCandidates[i]
		if d.Conversion == 's' || !d.Accepts(b) {
			return b, true
		}
	}
	return 0, false
}

// buildInput produces an input line that satisfies every directive of ds
// with minimal data and feeds n payload bytes to ds[target]. A %c target
// always receives its full width.
func buildInput(ds []model.Directive, target, n int) (string, error) {
	var sb strings.Builder

	for i, d := range ds {
		switch {
		case d.Kind == model.KindLiteral:
			for j := 0; j < len(d.Literal); j++ {
				if isSpace(d.Literal[j]) {
					sb.WriteByte(' ')
					continue
				}
				sb.WriteByte(d.Literal[j])
			}
			continue
		case d.Conversion == 'n':
			continue
		case d.Conversion == 'c':
			// %c takes exactly its width, whitespace included, and needs no stop
			sb.WriteString(strings.Repeat("c", d.CharCount()))
			continue
		case !d.StringConversion():
			sb.WriteByte('1')
		default:
			b, err := fillByte(d)
			if err != nil {
				return "", err
			}
			count := 1
			if i == target {
				count = n
			}
			sb.WriteString(strings.Repeat(string(b), count))
		}

		if needsStop(ds, i) {
			if stop, ok := stopByte(d); ok {
				sb.WriteByte(stop)
			}
		}
	}

	return sb.String(), nil
}

// needsStop reports whether the field of ds[i] must be ended explicitly:
// when nothing follows, another conversion follows, or the following literal
// starts with whitespace.
func needsStop(ds []model.Directive, i int) bool {
	if i+1 >= len(ds) {
		return true
	}
	next := ds[i+1]
	if next.Kind != model.KindLiteral {
		return true
	}
	return isSpace(next.Literal[0])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
