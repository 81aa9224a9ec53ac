// Package stagelog appends one "<stage>, <status>" line per invoked stage to a
// plain text file in the working directory.
//
// The file is opened in append mode for every line. There is no locking:
// one run owns its working directory.
package stagelog

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ExecTimeStage is the name of the closing wall-clock line.
const ExecTimeStage = "__exec_time"

// Logger writes to a single log file.
type Logger struct {
	Path string
}

// New returns a Logger for path.
func New(path string) *Logger { return &Logger{Path: path} }

// Stage records an integer status (exit code).
func (l *Logger) Stage(name string, code int) error {
	return l.append(name, strconv.Itoa(code))
}

// Elapsed records the run's wall time in seconds.
func (l *Logger) Elapsed(d time.Duration) error {
	return l.append(ExecTimeStage, strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
}

func (l *Logger) append(name, status string) error {
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("stage log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s, %s\n", name, status); err != nil {
		_ = f.Close()
		return fmt.Errorf("stage log: %w", err)
	}
	return f.Close()
}

// Line is one parsed log entry.
type Line struct {
	Stage  string
	Status string
}

// ReadLines parses a stage log.
func ReadLines(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Line
	sc := bufio.NewScanner(f)
	ln := 0
	for sc.Scan() {
		ln++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		name, status, ok := strings.Cut(s, ", ")
		if !ok {
			return nil, fmt.Errorf("%s:%d: bad stage line %q", path, ln, s)
		}
		out = append(out, Line{Stage: name, Status: status})
	}
	return out, sc.Err()
}
