// Package outrigger builds the command lines of the splice-event tool and
// knows where it leaves its results.
package outrigger

import (
	"path/filepath"

	"sctools/internal/execrun"
)

// DefaultSubtypes are the event types uploaded after validation.
var DefaultSubtypes = []string{"se", "mxe"}

// KnownSubtype reports whether s is an event type the tool produces.
func KnownSubtype(s string) bool {
	switch s {
	case "se", "mxe", "a3ss", "a5ss", "afe", "ale", "ri":
		return true
	}
	return false
}

// Tool names the binary.
type Tool struct {
	Binary string
}

func (t Tool) bin() string {
	if t.Binary == "" {
		return "outrigger"
	}
	return t.Binary
}

// Index builds the event index from a splice-junction table.
func (t Tool) Index(wkdir, sjOutTab, gtf string) execrun.Command {
	return execrun.Command{
		Name: t.bin(),
		Args: []string{"index", "--sj-out-tab", sjOutTab, "--gtf", gtf},
		Dir:  wkdir,
	}
}

// Validate checks splice sites of indexed events against the genome.
func (t Tool) Validate(wkdir, genome, fasta string) execrun.Command {
	if genome == "" {
		genome = "hg38"
	}
	return execrun.Command{
		Name: t.bin(),
		Args: []string{"validate", "--genome", genome, "--fasta", fasta},
		Dir:  wkdir,
	}
}

// EventsPath is the validated events table for one subtype.
func EventsPath(wkdir, subtype string) string {
	return filepath.Join(wkdir, "outrigger_output", "index", subtype, "validated", "events.csv")
}
