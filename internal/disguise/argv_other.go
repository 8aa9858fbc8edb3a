//go:build !linux

package disguise

// ProcessArgv is only implemented on Linux.
func ProcessArgv() ([][]byte, error) {
	return nil, ErrUnsupported
}
