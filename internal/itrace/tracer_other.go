//go:build !(linux && amd64)

package itrace

import "context"

// Run is only implemented on linux/amd64.
func (t *Tracer) Run(_ context.Context, _ Hooks) (int, error) {
	return 0, ErrUnsupported
}

// ReadMemory is only implemented on linux/amd64.
func (t *Tracer) ReadMemory(_ uint64, _ []byte) (int, error) {
	return 0, ErrUnsupported
}
