// Package scanf emulates the string-reading part of C's scanf family over an
// Arena, so that bounded-read mistakes can be executed and observed from Go.
//
// String conversions copy the matched bytes and a zero terminator to the
// start of the destination region without checking the region's capacity,
// exactly like the C library does. Overflowing a region is therefore a
// normal outcome, not an error.
package scanf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/probekit/internal/model"
	"github.com/nao1215/probekit/internal/scanfmt"
)

// EOF is returned as the item count when input ends before the first
// conversion, mirroring the C macro.
const EOF = -1

var (
	// ErrBadDestination is returned when a destination does not match its conversion.
	ErrBadDestination = errors.New("destination does not match conversion")

	// ErrMissingDestination is returned when there are fewer destinations than
	// assigning conversions.
	ErrMissingDestination = errors.New("missing destination")

	// ErrUnsupportedConversion is returned for conversions the emulator does not model.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
)

// Scanner reads formatted input from a byte stream. Like a C FILE, it
// keeps its position across calls.
type Scanner struct {
	r        io.ByteScanner
	consumed int
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	bs, ok := r.(io.ByteScanner)
	if !ok {
		bs = bufio.NewReader(r)
	}
	return &Scanner{r: bs}
}

// Scan reads from r according to format. See Scanner.Scan.
func Scan(r io.Reader, format string, dst ...any) (int, error) {
	return NewScanner(r).Scan(format, dst...)
}

// Sscan reads from input according to format. See Scanner.Scan.
func Sscan(input, format string, dst ...any) (int, error) {
	return NewScanner(strings.NewReader(input)).Scan(format, dst...)
}

// Scan reads input according to format and stores conversions into dst.
//
// Destinations: *Region for %s, %[ and %c; *int for %d %i %u %o %x %X and %n.
// It returns the number of assigned items, or EOF when input ends before the
// first conversion. A matching failure stops the scan early without error.
// Errors are only returned for destinations that do not fit the format.
func (s *Scanner) Scan(format string, dst ...any) (int, error) {
	ds, err := scanfmt.Parse(format)
	if err != nil {
		return 0, err
	}

	assigned := 0
	converted := false
	next := 0

	for _, d := range ds {
		if d.Kind == model.KindLiteral {
			ok, eof := s.matchLiteral(d.Literal)
			if !ok {
				if eof && !converted {
					return EOF, nil
				}
				return assigned, nil
			}
			continue
		}

		var target any
		if d.Assigns() {
			if next >= len(dst) {
				return assigned, fmt.Errorf("%w for %s", ErrMissingDestination, d.Raw)
			}
			target = dst[next]
			next++
		}

		ok, eof, err := s.convert(d, target)
		if err != nil {
			return assigned, err
		}
		if !ok {
			if eof && !converted {
				return EOF, nil
			}
			return assigned, nil
		}
		converted = true
		if d.Assigns() && d.Conversion != 'n' {
			assigned++
		}
	}

	return assigned, nil
}

func (s *Scanner) readByte() (byte, bool) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, false
	}
	s.consumed++
	return b, true
}

func (s *Scanner) unreadByte() {
	if err := s.r.UnreadByte(); err == nil {
		s.consumed--
	}
}

// skipSpace consumes whitespace and reports whether input remains.
func (s *Scanner) skipSpace() bool {
	for {
		b, ok := s.readByte()
		if !ok {
			return false
		}
		if !isSpace(b) {
			s.unreadByte()
			return true
		}
	}
}

// matchLiteral matches ordinary format text. A whitespace byte in the
// format matches any amount of input whitespace, including none.
func (s *Scanner) matchLiteral(lit string) (ok, eof bool) {
	for i := 0; i < len(lit); i++ {
		if isSpace(lit[i]) {
			s.skipSpace()
			continue
		}
		b, more := s.readByte()
		if !more {
			return false, true
		}
		if b != lit[i] {
			s.unreadByte()
			return false, false
		}
	}
	return true, false
}

// convert performs one conversion. ok is false on input or matching failure.
func (s *Scanner) convert(d model.Directive, target any) (ok, eof bool, err error) {
	switch d.Conversion {
	case 's':
		if !s.skipSpace() {
			return false, true, nil
		}
		word := s.readWhile(d, func(b byte) bool { return !isSpace(b) })
		return s.storeString(d, target, word, true)
	case '[':
		word := s.readWhile(d, d.Accepts)
		if len(word) == 0 {
			_, more := s.peek()
			return false, !more, nil
		}
		return s.storeString(d, target, word, true)
	case 'c':
		width := d.CharCount()
		var word []byte
		for len(word) < width {
			b, more := s.readByte()
			if !more {
				break
			}
			word = append(word, b)
		}
		if len(word) == 0 {
			return false, true, nil
		}
		return s.storeString(d, target, word, false)
	case 'd', 'i', 'u', 'o', 'x', 'X':
		if !s.skipSpace() {
			return false, true, nil
		}
		return s.convertInt(d, target)
	case 'n':
		if d.Suppressed {
			return true, false, nil
		}
		p, isInt := target.(*int)
		if !isInt {
			return false, false, fmt.Errorf("%w: %s wants *int, got %T", ErrBadDestination, d.Raw, target)
		}
		*p = s.consumed
		return true, false, nil
	default:
		return false, false, fmt.Errorf("%w: %s", ErrUnsupportedConversion, d.Raw)
	}
}

func (s *Scanner) peek() (byte, bool) {
	b, ok := s.readByte()
	if ok {
		s.unreadByte()
	}
	return b, ok
}

// readWhile reads bytes accepted by accept, up to the directive's width.
func (s *Scanner) readWhile(d model.Directive, accept func(byte) bool) []byte {
	var word []byte
	for !d.HasWidth || len(word) < d.Width {
		b, ok := s.readByte()
		if !ok {
			break
		}
		if !accept(b) {
			s.unreadByte()
			break
		}
		word = append(word, b)
	}
	return word
}

func (s *Scanner) storeString(d model.Directive, target any, word []byte, term bool) (ok, eof bool, err error) {
	if d.Suppressed {
		return true, false, nil
	}
	r, isRegion := target.(*Region)
	if !isRegion || r == nil {
		return false, false, fmt.Errorf("%w: %s wants *Region, got %T", ErrBadDestination, d.Raw, target)
	}
	r.write(word, term)
	return true, false, nil
}

const (
	octDigits = "01234567"
	decDigits = "0123456789"
	hexDigits = "0123456789abcdefABCDEF"
)

// convertInt reads an integer like strtol would for the conversion: %i
// picks the base from a 0x or 0 prefix, %x accepts an optional 0x prefix.
// A prefix counts against the field width.
func (s *Scanner) convertInt(d model.Directive, target any) (ok, eof bool, err error) {
	base, digits := 10, decDigits
	switch d.Conversion {
	case 'o':
		base, digits = 8, octDigits
	case 'x', 'X':
		base, digits = 16, hexDigits
	}

	var text []byte
	read := 0
	limit := func() bool { return !d.HasWidth || read < d.Width }
	next := func(accept string) bool {
		b, more := s.peek()
		if !more || !limit() || !strings.ContainsRune(accept, rune(b)) {
			return false
		}
		s.readByte()
		text = append(text, b)
		read++
		return true
	}

	next("+-")
	if (d.Conversion == 'i' || base == 16) && next("0") {
		if d.Conversion == 'i' {
			base, digits = 8, octDigits
		}
		if b, more := s.peek(); more && (b == 'x' || b == 'X') && limit() {
			// the prefix itself is not part of the number
			s.readByte()
			read++
			base, digits = 16, hexDigits
		}
	}
	for next(digits) {
	}

	v, perr := strconv.ParseInt(string(text), base, 64)
	if perr != nil {
		return false, false, nil
	}
	if d.Suppressed {
		return true, false, nil
	}
	p, isInt := target.(*int)
	if !isInt {
		return false, false, fmt.Errorf("%w: %s wants *int, got %T", ErrBadDestination, d.Raw, target)
	}
	*p = int(v)
	return true, false, nil
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
