package scanf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrSourceNotFound is returned when an fscanf input file does not exist.
	ErrSourceNotFound = errors.New("input source not found")

	// ErrSourcePermission is returned when an fscanf input file cannot be read.
	ErrSourcePermission = errors.New("input source not readable")
)

// Source is an opened fscanf input file. The zero value is not usable; call
// OpenSource and Close it when done.
type Source struct {
	*Scanner
	path string
	file *os.File
}

// OpenSource opens path for reading. Unlike an unchecked fopen, failure is
// surfaced: the error wraps ErrSourceNotFound or ErrSourcePermission along
// with the underlying *fs.PathError.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path) //nolint:gosec // probe input path is chosen by the caller
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %w", ErrSourcePermission, err)
		default:
			return nil, err
		}
	}
	return &Source{
		Scanner: NewScanner(f),
		path:    path,
		file:    f,
	}, nil
}

// Path returns the opened path.
func (s *Source) Path() string {
	return s.path
}

// Close closes the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}
