//go:build linux

package disguise

import (
	"os"
	"strings"
	"testing"
)

// TestProcessArgvSharesOSArgs tests that the views alias os.Args.
func TestProcessArgvSharesOSArgs(t *testing.T) {
	t.Parallel()

	argv, err := ProcessArgv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(argv) != len(os.Args) {
		t.Fatalf("got %d views for %d arguments", len(argv), len(os.Args))
	}
	for i := range argv {
		if string(argv[i]) != os.Args[i] {
			t.Errorf("view %d = %q, want %q", i, argv[i], os.Args[i])
		}
	}

	cmdline, err := os.ReadFile("/proc/self/cmdline")
	if err != nil {
		t.Skipf("cannot read cmdline: %v", err)
	}
	if !strings.HasPrefix(string(cmdline), os.Args[0]) {
		t.Errorf("cmdline %q does not start with %q", cmdline, os.Args[0])
	}
}

// TestSetComm tests renaming the task and reading the name back.
func TestSetComm(t *testing.T) {
	old, err := Comm()
	if err != nil {
		t.Skipf("cannot read task name: %v", err)
	}
	t.Cleanup(func() {
		_, _ = SetComm(old) //nolint:errcheck // best effort restore
	})

	got, err := SetComm("probekit-renamed-task")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "probekit-rename" {
		t.Errorf("applied name = %q, want it truncated to %d bytes", got, MaxCommLen)
	}

	now, err := Comm()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now != got {
		t.Errorf("Comm() = %q, want %q", now, got)
	}
}
