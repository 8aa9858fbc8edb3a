package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/itrace"
)

// errTriggerConflict is returned when both trigger flags are given.
var errTriggerConflict = errors.New("--trigger and --offset are mutually exclusive")

// NewTraceCmd creates the trace command.
func NewTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace [flags] -- PROGRAM [ARG...]",
		Short: "Record every instruction a program executes after a trigger address",
		Long: `Trace runs PROGRAM under ptrace, single-stepping every instruction.
Once the trigger instruction has executed, the address of every following
instruction is written to the output file, one per line as 0x<hex>. The
trigger instruction itself is not recorded. When the program exits the line
"#eof" is appended.

The trigger is either an absolute address (--trigger) or an offset from the
load base of the executable (--offset), which is resolved from
/proc/<pid>/maps once the program is loaded and therefore survives address
space randomization. Without either, every instruction is recorded.

Only linux/amd64 is supported.

Examples:
  # Record everything after offset 0x1139 of a PIE binary
  probekit trace --offset 0x1139 -- ./victim

  # Absolute trigger with ASLR disabled, with disassembly
  probekit trace --no-aslr --disasm --trigger 0x555555555139 -o out.trace -- ./victim arg`,
		Args: cobra.MinimumNArgs(1),
		RunE: runTraceCmd,
	}

	cmd.Flags().String("trigger", "", "Absolute address that starts recording (hex)")
	cmd.Flags().String("offset", "", "Offset from the executable's load base that starts recording (hex)")
	cmd.Flags().StringP("output", "o", "", "Trace output file (default: trace.out)")
	cmd.Flags().Bool("no-aslr", false, "Disable address space randomization for the program")
	cmd.Flags().Bool("disasm", false, "Append the Intel syntax disassembly of each instruction")

	return cmd
}

// runTraceCmd executes the trace command.
func runTraceCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		if cfg.TraceOutput, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("no-aslr") {
		if cfg.TraceNoASLR, err = flags.GetBool("no-aslr"); err != nil {
			return err
		}
	}
	if flags.Changed("disasm") {
		if cfg.TraceDisassemble, err = flags.GetBool("disasm"); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := setupLogger(cmd)

	triggerFlag, err := flags.GetString("trigger")
	if err != nil {
		return err
	}
	offsetFlag, err := flags.GetString("offset")
	if err != nil {
		return err
	}
	if triggerFlag != "" && offsetFlag != "" {
		return errTriggerConflict
	}

	trigger := itrace.NoTrigger()
	if triggerFlag != "" {
		addr, err := parseAddress(triggerFlag)
		if err != nil {
			return fmt.Errorf("invalid --trigger: %w", err)
		}
		trigger = itrace.TriggerAt(addr)
	}
	var offset uint64
	if offsetFlag != "" {
		if offset, err = parseAddress(offsetFlag); err != nil {
			return fmt.Errorf("invalid --offset: %w", err)
		}
	}

	if dir := filepath.Dir(cfg.TraceOutput); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.TraceOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	// Fini closes f on success; this covers the paths that never reach it.
	defer f.Close() //nolint:errcheck // double close after Fini is harmless

	var recorder *itrace.Recorder
	tracerOpts := []itrace.TracerOption{
		itrace.WithTracerLogger(logger),
		itrace.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}
	if cfg.TraceNoASLR {
		tracerOpts = append(tracerOpts, itrace.WithoutASLR())
	}
	if offsetFlag != "" {
		tracerOpts = append(tracerOpts, itrace.WithStartHook(func(pid int) error {
			base, err := itrace.ExecutableBase(pid)
			if err != nil {
				return fmt.Errorf("failed to resolve --offset: %w", err)
			}
			logger.Debug("trigger resolved", "base", fmt.Sprintf("%#x", base), "trigger", fmt.Sprintf("%#x", base+offset))
			recorder.Rearm(itrace.TriggerAt(base + offset))
			return nil
		}))
	}
	tracer := itrace.NewTracer(args, tracerOpts...)

	var recOpts []itrace.RecorderOption
	if cfg.TraceDisassemble {
		recOpts = append(recOpts, itrace.WithDisassembly(tracer))
	}
	recorder = itrace.NewRecorder(f, trigger, recOpts...)

	ctx, cancel := signalContext(logger)
	defer cancel()

	code, err := tracer.Run(ctx, recorder)
	if err != nil {
		return fmt.Errorf("trace failed: %w", err)
	}
	if err := recorder.Err(); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %d instructions to %s (exit status %d)\n",
		recorder.Emitted(), cfg.TraceOutput, code)
	if !recorder.Triggered() {
		logger.Warn("trigger address never executed", "trigger", triggerFlag+offsetFlag)
	}
	return nil
}

// parseAddress parses a hexadecimal address with or without a 0x prefix.
func parseAddress(s string) (uint64, error) {
	return strconv.ParseUint(trimHexPrefix(s), 16, 64)
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
