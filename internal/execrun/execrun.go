// Package execrun runs external commands and reports their exit status.
//
// There is no timeout and no retry: a command runs until it exits or the
// context (normally the process signal context) is cancelled.
package execrun

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	"sctools/internal/logging"
)

// ExitNotRun is reported when the command could not be started at all
// (binary missing, bad working directory), matching the shell's 127.
const ExitNotRun = 127

const stderrTail = 4 << 10

// Command is one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of one command.
type Result struct {
	ExitCode   int
	Elapsed    time.Duration
	Err        error
	StderrTail string
}

// OK reports a zero exit status.
func (r Result) OK() bool { return r.ExitCode == 0 && r.Err == nil }

// Runner is the capability stages need. Tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, c Command) Result
}

// ExecRunner runs commands with os/exec. The command's stdout goes to
// Stdout, or line by line to Log at debug level when Stdout is nil.
type ExecRunner struct {
	Log    *zap.Logger
	Stdout io.Writer
}

// Run executes c and blocks until it exits.
func (r ExecRunner) Run(ctx context.Context, c Command) Result {
	log := logging.OrNop(r.Log)
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	tail := &tailBuffer{max: stderrTail}
	cmd.Stderr = tail
	cmd.Stdout = r.Stdout
	if r.Stdout == nil {
		w := &zapio.Writer{Log: log.With(zap.String("cmd", c.Name)), Level: zapcore.DebugLevel}
		defer w.Close()
		cmd.Stdout = w
	}

	log.Debug("exec", zap.String("cmd", c.String()), zap.String("dir", c.Dir))
	start := time.Now()
	err := cmd.Run()
	res := Result{Elapsed: time.Since(start), StderrTail: tail.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 { // killed by signal
			res.ExitCode = 1
			res.Err = err
		}
	default:
		res.ExitCode = ExitNotRun
		res.Err = err
	}
	if ctx.Err() != nil && res.Err == nil && res.ExitCode != 0 {
		res.Err = ctx.Err()
	}
	log.Debug("exit", zap.String("cmd", c.Name), zap.Int("code", res.ExitCode), zap.Duration("elapsed", res.Elapsed))
	return res
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return strings.TrimSpace(string(t.buf)) }
