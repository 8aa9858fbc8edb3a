package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/probekit/internal/scanf"
)

// offByOneCapacity is the size of each of the three adjacent buffers.
const offByOneCapacity = 8

// NewOffByOneCmd creates the offbyone command.
func NewOffByOneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offbyone",
		Short: "Demonstrate the off-by-one write of scanf(\"%8s\") into char[8]",
		Long: `Offbyone lays out three adjacent 8 byte buffers

  buf_before = "AAAAAAA"   buf = "XXXXXXX"   buf_after = "BBBBBBB"

reads one word from standard input with scanf("%8s", buf) and prints the
three buffers. An input of 8 or more characters fills buf completely and the
terminator lands in buf_after[0], so buf_after prints as an empty line.

The exit status is the value scanf returned: 1 after a successful read, and
255 (-1) when standard input is empty.

Examples:
  echo AAAAAAAA | probekit offbyone
  echo short | probekit offbyone`,
		Args: cobra.NoArgs,
		RunE: runOffByOneCmd,
	}

	cmd.Flags().StringP("format", "f", "%8s", "Format string used for the read")

	return cmd
}

// runOffByOneCmd executes the offbyone command.
func runOffByOneCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd)

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	arena := scanf.NewArena()
	before := arena.Alloc("buf_before", cString('A'))
	buf := arena.Alloc("buf", cString('X'))
	after := arena.Alloc("buf_after", cString('B'))

	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Enter a string: ")

	ret, err := scanf.Scan(cmd.InOrStdin(), format, buf)
	if err != nil {
		return fmt.Errorf("scanf(%q): %w", format, err)
	}

	fmt.Fprintln(out, before.String())
	fmt.Fprintln(out, buf.String())
	fmt.Fprintln(out, after.String())

	logger.Debug("off-by-one read",
		"format", format,
		"written", buf.Written(),
		"overflow", buf.Overflow(),
		"buffer", string(arena.Region("buf").Bytes()),
	)

	if ret != 0 {
		return &exitCodeError{code: ret}
	}
	return nil
}

// cString returns an initialized char[offByOneCapacity]: fill bytes and a
// terminator.
func cString(fill byte) []byte {
	b := make([]byte, offByOneCapacity)
	for i := range offByOneCapacity - 1 {
		b[i] = fill
	}
	return b
}
