//go:build linux

package disguise

import (
	"os"
	"unsafe"
)

// ProcessArgv returns writable views over the process's argument memory.
//
// On Linux the runtime builds os.Args without copying, so each string shares
// its bytes with the argv block the kernel placed on the initial stack.
// Writing through the returned slices changes /proc/self/cmdline and also
// the contents of os.Args; callers must be done reading os.Args first.
func ProcessArgv() ([][]byte, error) {
	argv := make([][]byte, len(os.Args))
	for i, a := range os.Args {
		if a == "" {
			continue
		}
		argv[i] = unsafe.Slice(unsafe.StringData(a), len(a)) //nolint:gosec // argv memory is writable stack memory
	}
	return argv, nil
}
