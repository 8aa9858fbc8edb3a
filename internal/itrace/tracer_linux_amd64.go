//go:build linux && amd64

package itrace

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	// personalityQuery makes personality(2) return the current value unchanged.
	personalityQuery = 0xffffffff

	// addrNoRandomize is ADDR_NO_RANDOMIZE from linux/personality.h.
	addrNoRandomize = 0x0040000
)

// Run starts the program and single-steps it until it exits, calling
// hooks.Instruction before every instruction and hooks.Fini with the exit
// code. A program killed by a signal reports 128 plus the signal number.
//
// Cancelling ctx kills the program; Fini is still called.
func (t *Tracer) Run(ctx context.Context, hooks Hooks) (int, error) {
	if len(t.argv) == 0 {
		return 0, errors.New("no program to trace")
	}

	// every ptrace request must come from the thread that attached
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := t.start(); err != nil {
		return 0, err
	}
	pid := t.pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return 0, fmt.Errorf("failed to wait for exec stop: %w", err)
	}
	if !ws.Stopped() {
		return 0, fmt.Errorf("program did not stop after exec: status %#x", uint32(ws))
	}
	if err := unix.PtraceSetOptions(pid, unix.PTRACE_O_EXITKILL); err != nil {
		t.logger.Debug("failed to set ptrace options", "pid", pid, "error", err)
	}

	if t.onStart != nil {
		if err := t.onStart(pid); err != nil {
			_ = unix.Kill(pid, unix.SIGKILL) //nolint:errcheck // the start hook error takes precedence
			_, _ = unix.Wait4(pid, &ws, 0, nil)
			t.release()
			return 0, err
		}
	}

	t.logger.Debug("tracing", "pid", pid, "program", t.argv[0], "no_aslr", t.noASLR)

	steps := 0
	signal := 0
	for {
		if ctx.Err() != nil {
			_ = unix.Kill(pid, unix.SIGKILL) //nolint:errcheck // the process may already be gone
			signal = 0
		}

		var regs unix.PtraceRegs
		if err := unix.PtraceGetRegs(pid, &regs); err == nil {
			hooks.Instruction(ctx, regs.Rip)
		} else if !errors.Is(err, unix.ESRCH) {
			return 0, fmt.Errorf("failed to read registers: %w", err)
		}

		if err := singleStep(pid, signal); err != nil && !errors.Is(err, unix.ESRCH) {
			return 0, fmt.Errorf("failed to single-step: %w", err)
		}
		steps++

		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return 0, fmt.Errorf("failed to wait for program: %w", err)
		}

		switch {
		case ws.Exited():
			code := ws.ExitStatus()
			t.logger.Debug("program exited", "pid", pid, "code", code, "steps", steps)
			t.release()
			hooks.Fini(ctx, code)
			return code, ctx.Err()
		case ws.Signaled():
			code := 128 + int(ws.Signal())
			t.logger.Debug("program killed", "pid", pid, "signal", ws.Signal(), "steps", steps)
			t.release()
			hooks.Fini(ctx, code)
			return code, ctx.Err()
		case ws.Stopped() && ws.StopSignal() != unix.SIGTRAP:
			// forward signals the program received while stepping
			signal = int(ws.StopSignal())
		default:
			signal = 0
		}
	}
}

// start forks and execs the program stopped under ptrace.
func (t *Tracer) start() error {
	cmd := exec.Command(t.argv[0], t.argv[1:]...) //nolint:gosec // tracing a user-chosen program is the purpose
	cmd.Stdin = t.stdin
	cmd.Stdout = t.stdout
	cmd.Stderr = t.stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if t.noASLR {
		old, _, errno := unix.Syscall(unix.SYS_PERSONALITY, personalityQuery, 0, 0)
		if errno == 0 {
			_, _, _ = unix.Syscall(unix.SYS_PERSONALITY, old|addrNoRandomize, 0, 0)
			defer unix.Syscall(unix.SYS_PERSONALITY, old, 0, 0) //nolint:errcheck // restores the tracer's own personality
		} else {
			t.logger.Warn("failed to disable ASLR", "error", errno)
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", t.argv[0], err)
	}
	t.cmd = cmd
	t.pid = cmd.Process.Pid
	return nil
}

// release finishes the exec.Cmd of a program already reaped with Wait4, so
// that the goroutines copying non-file stdio streams drain and exit.
func (t *Tracer) release() {
	if t.cmd == nil {
		return
	}
	// the status is gone, so Wait reports ECHILD once the copies are done
	if err := t.cmd.Wait(); err != nil && !errors.Is(err, unix.ECHILD) {
		t.logger.Debug("failed to release program", "pid", t.pid, "error", err)
	}
	t.cmd = nil
}

// ReadMemory reads the traced program's memory at addr.
func (t *Tracer) ReadMemory(addr uint64, buf []byte) (int, error) {
	if t.pid == 0 {
		return 0, errors.New("program not started")
	}
	return unix.PtracePeekText(t.pid, uintptr(addr), buf)
}

// singleStep resumes pid for one instruction, delivering signal if non-zero.
func singleStep(pid, signal int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SINGLESTEP, uintptr(pid), 0, uintptr(signal), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
