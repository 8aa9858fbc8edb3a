package itrace

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// ErrUnsupported is returned by Tracer.Run on platforms without a backend.
var ErrUnsupported = errors.New("instruction tracing is only supported on linux/amd64")

// Tracer runs a program and reports every instruction it executes.
type Tracer struct {
	argv    []string
	noASLR  bool
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	onStart func(pid int) error
	logger  *slog.Logger
	cmd     *exec.Cmd
	pid     int
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithoutASLR launches the program with address space randomization disabled,
// so absolute trigger addresses stay valid across runs.
func WithoutASLR() TracerOption {
	return func(t *Tracer) {
		t.noASLR = true
	}
}

// WithStdio sets the program's standard streams. The default is the tracer's own.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) TracerOption {
	return func(t *Tracer) {
		t.stdin = stdin
		t.stdout = stdout
		t.stderr = stderr
	}
}

// WithStartHook registers fn to run once the program is loaded and stopped
// before its first instruction.
func WithStartHook(fn func(pid int) error) TracerOption {
	return func(t *Tracer) {
		t.onStart = fn
	}
}

// WithTracerLogger sets the logger.
func WithTracerLogger(logger *slog.Logger) TracerOption {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// NewTracer returns a Tracer for argv; argv[0] is the program.
func NewTracer(argv []string, opts ...TracerOption) *Tracer {
	t := &Tracer{
		argv:   argv,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}
