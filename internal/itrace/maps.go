package itrace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrMalformedMaps is returned for lines that are not in /proc/<pid>/maps format.
	ErrMalformedMaps = errors.New("malformed maps line")

	// ErrNoMapping is returned when the executable is not mapped.
	ErrNoMapping = errors.New("executable mapping not found")
)

// Mapping is one line of /proc/<pid>/maps.
type Mapping struct {
	Start  uint64
	End    uint64
	Perms  string
	Offset uint64
	Path   string
}

// ParseMaps parses the contents of a /proc/<pid>/maps file.
func ParseMaps(r io.Reader) ([]Mapping, error) {
	var mappings []Mapping

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		m, err := parseMapping(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		mappings = append(mappings, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}

// parseMapping parses "start-end perms offset dev inode [path]".
func parseMapping(line string) (Mapping, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Mapping{}, fmt.Errorf("%w: %q", ErrMalformedMaps, line)
	}

	lo, hi, ok := strings.Cut(fields[0], "-")
	if !ok {
		return Mapping{}, fmt.Errorf("%w: %q", ErrMalformedMaps, line)
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: %w", ErrMalformedMaps, err)
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: %w", ErrMalformedMaps, err)
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: %w", ErrMalformedMaps, err)
	}

	m := Mapping{
		Start:  start,
		End:    end,
		Perms:  fields[1],
		Offset: offset,
	}
	// paths may contain spaces
	if len(fields) > 5 {
		m.Path = strings.Join(fields[5:], " ")
	}
	return m, nil
}

// LoadBase returns the address the file at path was loaded at: the start of
// its mapping with file offset zero.
func LoadBase(mappings []Mapping, path string) (uint64, error) {
	for _, m := range mappings {
		if m.Path == path && m.Offset == 0 {
			return m.Start, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoMapping, path)
}

// ExecutableBase returns the load base of process pid's executable.
func ExecutableBase(pid int) (uint64, error) {
	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return 0, fmt.Errorf("failed to resolve executable: %w", err)
	}

	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return 0, fmt.Errorf("failed to open maps: %w", err)
	}
	defer f.Close()

	mappings, err := ParseMaps(f)
	if err != nil {
		return 0, err
	}
	return LoadBase(mappings, exe)
}
