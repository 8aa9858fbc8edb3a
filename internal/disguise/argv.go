// Package disguise rewrites what process listings show for the running
// program: the argument vector behind /proc/self/cmdline and the short task
// name behind /proc/self/comm.
//
// Argument rewriting works in place. The kernel copies argv into the new
// process's stack at exec time and /proc/<pid>/cmdline reads that memory
// back, so overwriting the bytes changes what ps prints. A rewrite can never
// grow an argument: every write is bounded by the original argument length.
package disguise

import (
	"errors"
	"fmt"
)

var (
	// ErrArity is returned when the program was not started with the
	// required number of arguments.
	ErrArity = errors.New("unexpected number of arguments")

	// ErrUnsupported is returned on platforms where argument memory or the
	// task name cannot be reached.
	ErrUnsupported = errors.New("not supported on this platform")
)

// DefaultTargets are written over argv[0], argv[1] and argv[2].
var DefaultTargets = []string{"hidden_prog", "xxxxxxxxxxxxxxxx", "yyyyyyyyyyyyyyyy"}

// CheckArity returns ErrArity unless args has exactly want entries, program
// name included.
func CheckArity(args []string, want int) error {
	if len(args) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrArity, len(args), want)
	}
	return nil
}

// Rewrite copies targets[i] over argv[i] for every index both slices share
// and returns how many arguments were rewritten.
//
// At most len(argv[i]) bytes are copied, so a longer target is cut short.
// When the target is shorter, the rest of the argument is zeroed and no byte
// of the original value survives.
func Rewrite(argv [][]byte, targets []string) int {
	n := min(len(argv), len(targets))
	for i := range n {
		arg := argv[i]
		c := copy(arg, targets[i])
		clear(arg[c:])
	}
	return n
}
