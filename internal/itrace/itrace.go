// Package itrace records the instruction pointer of every instruction a
// program executes once a trigger address has been reached.
//
// Tracing backends only talk to Hooks: Instruction for each executed
// instruction and Fini once when the program ends. Recorder is the Hooks
// implementation that writes the trace, one hexadecimal address per line,
// followed by an "#eof" line.
package itrace

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// EOFMarker is the last line of every complete trace.
const EOFMarker = "#eof"

// Hooks receives events from a tracing backend.
type Hooks interface {
	// Instruction is called before the instruction at ip executes.
	Instruction(ctx context.Context, ip uint64)

	// Fini is called once, after the program exited with code.
	Fini(ctx context.Context, code int)
}

// Trigger decides when recording starts. The zero value waits for address 0,
// which never executes; use TriggerAt or NoTrigger.
type Trigger struct {
	// Triggered is true once Address has executed.
	Triggered bool

	// Address is the instruction that starts recording.
	Address uint64
}

// TriggerAt returns a trigger that starts recording after addr executes.
func TriggerAt(addr uint64) Trigger {
	return Trigger{Address: addr}
}

// NoTrigger returns a trigger that records from the first instruction.
func NoTrigger() Trigger {
	return Trigger{Triggered: true}
}

// Next advances the trigger over one executed instruction and reports whether
// ip must be recorded. The state flips once, on the trigger address itself,
// which is not recorded.
func (t Trigger) Next(ip uint64) (Trigger, bool) {
	if t.Triggered {
		return t, true
	}
	if ip == t.Address {
		t.Triggered = true
	}
	return t, false
}

// Recorder writes a trace. It is not safe for concurrent use; backends call
// hooks from a single goroutine.
type Recorder struct {
	out     io.WriteCloser
	w       *bufio.Writer
	trigger Trigger
	mem     MemoryReader
	emitted int
	err     error
	done    bool
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithDisassembly appends the Intel syntax disassembly of each recorded
// instruction, reading its bytes from mem.
func WithDisassembly(mem MemoryReader) RecorderOption {
	return func(r *Recorder) {
		r.mem = mem
	}
}

// NewRecorder returns a Recorder writing to out. Fini closes out.
func NewRecorder(out io.WriteCloser, trigger Trigger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		out:     out,
		w:       bufio.NewWriter(out),
		trigger: trigger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rearm replaces the trigger. Backends that only learn the trigger address
// after the program was loaded call it before the first instruction.
func (r *Recorder) Rearm(trigger Trigger) {
	r.trigger = trigger
}

// Instruction records ip if the trigger has fired.
func (r *Recorder) Instruction(_ context.Context, ip uint64) {
	next, emit := r.trigger.Next(ip)
	r.trigger = next
	if !emit || r.err != nil {
		return
	}

	r.emitted++
	if r.mem == nil {
		_, r.err = fmt.Fprintf(r.w, "0x%x\n", ip)
		return
	}
	_, r.err = fmt.Fprintf(r.w, "0x%x %s\n", ip, disassembleAt(r.mem, ip))
}

// Fini writes the end marker and closes the output. Calls after the first
// are ignored.
func (r *Recorder) Fini(_ context.Context, _ int) {
	if r.done {
		return
	}
	r.done = true

	if r.err == nil {
		_, r.err = fmt.Fprintln(r.w, EOFMarker)
	}
	if err := r.w.Flush(); err != nil && r.err == nil {
		r.err = err
	}
	if err := r.out.Close(); err != nil && r.err == nil {
		r.err = err
	}
}

// Triggered reports whether recording has started.
func (r *Recorder) Triggered() bool {
	return r.trigger.Triggered
}

// Emitted returns the number of recorded instructions.
func (r *Recorder) Emitted() int {
	return r.emitted
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	return r.err
}
