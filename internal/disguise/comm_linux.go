//go:build linux

package disguise

import (
	"bytes"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const commPath = "/proc/self/comm"

// SetComm sets the task name shown by ps -o comm and top. Names longer than
// 15 bytes are truncated the way the kernel does. It returns the name that
// was applied.
//
// The name is written to /proc/self/comm, which renames the thread group
// leader. If that fails, prctl(PR_SET_NAME) renames the calling thread.
func SetComm(name string) (string, error) {
	if len(name) > MaxCommLen {
		name = name[:MaxCommLen]
	}

	werr := os.WriteFile(commPath, []byte(name), 0)
	if werr == nil {
		return name, nil
	}

	b := append([]byte(name), 0)
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0); err != nil {
		return "", fmt.Errorf("failed to set task name: %w (write %s: %w)", err, commPath, werr)
	}
	return name, nil
}

// Comm returns the current task name.
func Comm() (string, error) {
	b, err := os.ReadFile(commPath)
	if err != nil {
		return "", fmt.Errorf("failed to read task name: %w", err)
	}
	return string(bytes.TrimRight(b, "\n")), nil
}
