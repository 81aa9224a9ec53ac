package clibase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sctools/internal/writers"
)

// Execute runs root with argv and returns the process exit code.
//
// Exit codes: 0 ok, 1 a run completed with failures, 2 usage, 3 runtime/IO,
// 130 interrupted. Empty argv prints help. Stdout is buffered and a broken
// pipe on flush is not an error.
func Execute(ctx context.Context, root *cobra.Command, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)
	if len(argv) == 0 {
		argv = []string{"--help"}
	}
	root.SetArgs(argv)
	root.SetOut(outw)
	root.SetErr(stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return Usage(err) })

	err := root.ExecuteContext(ctx)
	code := CodeOf(err)
	if errors.Is(err, context.Canceled) || (ctx.Err() != nil && code != 0) {
		code = 130
	}
	if ferr := outw.Flush(); ferr != nil && !writers.IsBrokenPipe(ferr) {
		_, _ = fmt.Fprintln(stderr, ferr)
		if code == 0 {
			code = 3
		}
	}
	if err != nil {
		var ee *ExitError
		if !errors.As(err, &ee) || ee.Err != nil {
			_, _ = fmt.Fprintln(stderr, "error:", err)
		}
		if code == 2 {
			_, _ = fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.CommandPath())
		}
	}
	return code
}
