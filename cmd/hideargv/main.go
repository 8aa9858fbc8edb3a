// Package main provides hideargv, which rewrites its own arguments in place
// so that ps and /proc/<pid>/cmdline show different values, then waits to
// be inspected.
//
// Usage:
//
//	hideargv ARG1 ARG2
//
// With any other number of arguments it prints "I want 3 arguments" and exits
// with status 255 without touching argument memory.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/probekit/internal/disguise"
	plog "github.com/nao1215/probekit/internal/log"
)

// wantArgs is the required argument count, program name included.
const wantArgs = 3

// sleepFor is how long the disguised process stays around.
const sleepFor = 1000 * time.Second

func main() {
	logger := plog.NewLogger(os.Stderr, os.Getenv("PROBEKIT_VERBOSE") != "")

	if err := disguise.CheckArity(os.Args, wantArgs); err != nil {
		os.Exit(run(os.Stdout, logger, os.Args, nil, nil))
	}

	argv, err := disguise.ProcessArgv()
	if err != nil {
		logger.Error("cannot reach argument memory", "error", err)
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, logger, os.Args, argv, waitForSignal))
}

// run checks the arity of args, rewrites argv with the default targets and
// calls wait. It returns the process exit status.
func run(out io.Writer, logger *slog.Logger, args []string, argv [][]byte, wait func()) int {
	if err := disguise.CheckArity(args, wantArgs); err != nil {
		fmt.Fprint(out, "I want 3 arguments")
		logger.Debug("refusing to rewrite arguments", "error", err)
		return -1
	}

	n := disguise.Rewrite(argv, disguise.DefaultTargets)
	logger.Debug("arguments rewritten", "count", n, "pid", os.Getpid())

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
