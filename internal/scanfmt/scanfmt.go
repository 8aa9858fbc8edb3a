// Package scanfmt tokenizes C scanf format strings into directives.
//
// The parser follows the C standard's grammar for fscanf conversions:
//
//	%[*][width][length]conversion
//
// Literal text and whitespace runs are returned as KindLiteral directives so
// that an emulator can match them against input.
package scanfmt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/probekit/internal/model"
)

var (
	// ErrUnterminatedDirective is returned when the format ends inside a %-directive.
	ErrUnterminatedDirective = errors.New("unterminated conversion directive")

	// ErrUnterminatedSet is returned when a %[ scanset has no closing bracket.
	ErrUnterminatedSet = errors.New("unterminated scanset")

	// ErrUnknownConversion is returned for conversion characters scanf does not define.
	ErrUnknownConversion = errors.New("unknown conversion")
)

// lengthModifiers lists the length modifiers, longest first.
var lengthModifiers = []string{"hh", "ll", "h", "l", "j", "z", "t", "L", "q"}

// Parse tokenizes format. Errors carry the byte offset of the broken directive.
func Parse(format string) ([]model.Directive, error) {
	var (
		directives []model.Directive
		literal    strings.Builder
		litStart   int
	)

	flushLiteral := func() {
		if literal.Len() == 0 {
			return
		}
		text := literal.String()
		directives = append(directives, model.Directive{
			Kind:    model.KindLiteral,
			Raw:     text,
			Offset:  litStart,
			Literal: text,
		})
		literal.Reset()
	}

	for i := 0; i < len(format); {
		if format[i] != '%' {
			if literal.Len() == 0 {
				litStart = i
			}
			literal.WriteByte(format[i])
			i++
			continue
		}

		// %% matches a single literal percent sign
		if i+1 < len(format) && format[i+1] == '%' {
			if literal.Len() == 0 {
				litStart = i
			}
			literal.WriteByte('%')
			i += 2
			continue
		}

		flushLiteral()
		d, next, err := parseDirective(format, i)
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", i, err)
		}
		directives = append(directives, d)
		i = next
	}
	flushLiteral()

	return directives, nil
}

// parseDirective parses the conversion starting at format[start] == '%'.
// It returns the directive and the index just past it.
func parseDirective(format string, start int) (model.Directive, int, error) {
	d := model.Directive{Offset: start}
	i := start + 1

	if i < len(format) && format[i] == '*' {
		d.Suppressed = true
		i++
	}

	widthStart := i
	for i < len(format) && format[i] >= '0' && format[i] <= '9' {
		d.Width = d.Width*10 + int(format[i]-'0')
		i++
	}
	// glibc reads a zero width as no width at all
	d.HasWidth = i > widthStart && d.Width > 0
	if !d.HasWidth {
		d.Width = 0
	}

	for _, m := range lengthModifiers {
		if strings.HasPrefix(format[i:], m) {
			d.Length = m
			i += len(m)
			break
		}
	}

	if i >= len(format) {
		return d, i, ErrUnterminatedDirective
	}

	d.Conversion = format[i]
	i++

	switch d.Conversion {
	case 's':
		if d.HasWidth {
			d.Kind = model.KindWidthString
		} else {
			d.Kind = model.KindPlainString
		}
	case '[':
		end, err := parseSet(format, i, &d)
		if err != nil {
			return d, end, err
		}
		i = end
		d.Kind = model.KindBracketSet
	case 'c':
		d.Kind = model.KindCharArray
	case 'd', 'i', 'u', 'o', 'x', 'X', 'f', 'F', 'e', 'E', 'g', 'G', 'a', 'A', 'p', 'n':
		d.Kind = model.KindNonString
	default:
		return d, i, fmt.Errorf("%w %q", ErrUnknownConversion, d.Conversion)
	}

	if d.Suppressed {
		d.Kind = model.KindSuppressed
	}
	d.Raw = format[start:i]

	return d, i, nil
}

// parseSet reads scanset members starting right after '['.
// A ']' immediately after '[' or '[^' is a member, not the terminator.
func parseSet(format string, i int, d *model.Directive) (int, error) {
	if i < len(format) && format[i] == '^' {
		d.Negated = true
		i++
	}
	setStart := i
	if i < len(format) && format[i] == ']' {
		i++
	}
	for i < len(format) && format[i] != ']' {
		i++
	}
	if i >= len(format) {
		return i, ErrUnterminatedSet
	}
	d.Set = format[setStart:i]
	return i + 1, nil
}
