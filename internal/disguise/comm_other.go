//go:build !linux

package disguise

// SetComm is only implemented on Linux.
func SetComm(name string) (string, error) {
	return "", ErrUnsupported
}

// Comm is only implemented on Linux.
func Comm() (string, error) {
	return "", ErrUnsupported
}
