// Package appshell wires signal handling and process exit around a command.
package appshell

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// RunFunc is the shape of every command entry point.
type RunFunc func(ctx context.Context, argv []string, stdout, stderr io.Writer) int

// Main runs run with the process arguments and exits with its code.
func Main(run RunFunc) {
	os.Exit(Run(run, os.Args[1:], os.Stdout, os.Stderr))
}

// Run calls run with a context canceled on SIGINT or SIGTERM. An interrupted
// run that still reports success exits 130.
func Run(run RunFunc, argv []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, argv, stdout, stderr)
	if ctx.Err() != nil && code == 0 {
		code = 130
	}
	return code
}
