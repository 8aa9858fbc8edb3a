package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// TestRun tests name selection and error handling with a fake renamer.
func TestRun(t *testing.T) {
	t.Parallel()

	errDenied := errors.New("denied")

	tests := []struct {
		name    string
		args    []string
		fail    bool
		want    int
		applied string
	}{
		{"default name", []string{"hidecomm"}, false, 0, "hidden_prog"},
		{"explicit name", []string{"hidecomm", "kworker/0:1"}, false, 0, "kworker/0:1"},
		{"too many arguments", []string{"hidecomm", "a", "b"}, false, 2, ""},
		{"rename fails", []string{"hidecomm"}, true, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			setComm := func(name string) (string, error) {
				if tt.fail {
					return "", errDenied
				}
				got = name
				return name, nil
			}

			var out bytes.Buffer
			code := run(&out, tt.args, setComm, func() {})
			if code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
			if got != tt.applied {
				t.Errorf("renamed to %q, want %q", got, tt.applied)
			}
			if tt.want == 0 && !strings.Contains(out.String(), tt.applied) {
				t.Errorf("output %q does not name the task", out.String())
			}
		})
	}
}
