// Package main provides hidecomm, which changes its task name (the comm
// field shown by ps -o comm, top and /proc/<pid>/comm) and waits to be
// inspected.
//
// Usage:
//
//	hidecomm [NAME]
//
// NAME defaults to hidden_prog and is truncated to 15 bytes.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/probekit/internal/disguise"
	plog "github.com/nao1215/probekit/internal/log"
)

// sleepFor is how long the disguised process stays around.
const sleepFor = 1000 * time.Second

func main() {
	os.Exit(run(os.Stdout, os.Args, disguise.SetComm, waitForSignal))
}

// run renames the task with setComm and calls wait. It returns the process
// exit status.
func run(out io.Writer, args []string, setComm func(string) (string, error), wait func()) int {
	logger := plog.NewLogger(os.Stderr, os.Getenv("PROBEKIT_VERBOSE") != "")

	if len(args) > 2 {
		fmt.Fprintln(out, "usage: hidecomm [NAME]")
		return 2
	}
	name := disguise.DefaultTargets[0]
	if len(args) == 2 {
		name = args[1]
	}

	applied, err := setComm(name)
	if err != nil {
		logger.Error("failed to rename task", "name", name, "error", err)
		return 1
	}
	if applied != name {
		logger.Warn("task name truncated", "name", name, "applied", applied, "max", disguise.MaxCommLen)
	}
	fmt.Fprintf(out, "pid %d is now %q\n", os.Getpid(), applied)

	if wait != nil {
		wait()
	}
	return 0
}

// waitForSignal blocks for sleepFor or until SIGINT or SIGTERM.
func waitForSignal() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(sleepFor):
	}
}
