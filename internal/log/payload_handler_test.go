package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// TestPayloadHandler_EscapesPayloadKeys tests escaping of payload attributes.
func TestPayloadHandler_EscapesPayloadKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value any
		want  string
	}{
		{
			name:  "newline in input",
			key:   "input",
			value: "12345678\n",
			want:  `12345678\n`,
		},
		{
			name:  "terminator in buffer",
			key:   "buffer",
			value: "AAAAAAA\x00",
			want:  `AAAAAAA\0`,
		},
		{
			name:  "byte slice payload",
			key:   "payload",
			value: []byte{'C', 0x01, 0xff},
			want:  `C\x01\xff`,
		},
		{
			name:  "uppercase key",
			key:   "Data",
			value: "a\tb",
			want:  `a\tb`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewJSONLogger(&buf, true)
			logger.Info("probe", tt.key, tt.value)

			var rec map[string]any
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
			}
			if got := rec[tt.key]; got != tt.want {
				t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

// TestPayloadHandler_LeavesOtherKeys tests that ordinary attributes pass through.
func TestPayloadHandler_LeavesOtherKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, true)
	logger.Info("probe", "probe", "tab\there", "capacity", 8)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["probe"] != "tab\there" {
		t.Errorf("probe = %q, want it unescaped", rec["probe"])
	}
	if rec["capacity"] != float64(8) {
		t.Errorf("capacity = %v, want 8", rec["capacity"])
	}
}

// TestPayloadHandler_Truncates tests that long values are cut.
func TestPayloadHandler_Truncates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, true)
	logger.Info("probe", "input", strings.Repeat("C", 200))

	out := buf.String()
	if !strings.Contains(out, "...(+104 bytes)") {
		t.Errorf("expected truncation marker, got %q", out)
	}
	if strings.Contains(out, strings.Repeat("C", MaxValueLen+1)) {
		t.Error("expected the value to be cut")
	}
}

// TestPayloadHandler_WithAttrsAndGroups tests attributes attached to the logger.
func TestPayloadHandler_WithAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, true).
		With("input", "a\nb").
		WithGroup("run")
	logger.Info("probe", slog.Group("obs", "buffer", "x\x00"))

	out := buf.String()
	if !strings.Contains(out, `"input":"a\\nb"`) {
		t.Errorf("expected escaped input, got %s", out)
	}
	if !strings.Contains(out, `"buffer":"x\\0"`) {
		t.Errorf("expected escaped grouped buffer, got %s", out)
	}
}

// TestNewLogger_Levels tests the verbose switch.
func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	var quiet, verbose bytes.Buffer
	NewLogger(&quiet, false).Info("hidden")
	NewLogger(&verbose, true).Debug("shown")

	if quiet.Len() != 0 {
		t.Errorf("expected info to be suppressed, got %q", quiet.String())
	}
	if !strings.Contains(verbose.String(), "shown") {
		t.Errorf("expected debug output, got %q", verbose.String())
	}
}

// TestNewPayloadHandler_NilUsesDefault tests the nil fallback.
func TestNewPayloadHandler_NilUsesDefault(t *testing.T) {
	t.Parallel()

	if h := NewPayloadHandler(nil); h.handler == nil {
		t.Error("expected a default handler")
	}
}
