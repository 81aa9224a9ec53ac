package execrun

import (
	"context"
	"sync"
)

// Recorder is a Runner that records commands and answers from a table keyed
// by command name and first argument ("aws s3", "outrigger index"). Missing
// entries succeed. It is used by tests across packages.
type Recorder struct {
	mu    sync.Mutex
	Codes map[string]int
	Hook  func(Command) // optional side effect, e.g. create an output file
	Calls []Command
}

func (r *Recorder) Run(_ context.Context, c Command) Result {
	r.mu.Lock()
	r.Calls = append(r.Calls, c)
	code := r.Codes[key(c)]
	hook := r.Hook
	r.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	return Result{ExitCode: code}
}

// Names returns the recorded commands as "name arg0" keys.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		out = append(out, key(c))
	}
	return out
}

func key(c Command) string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + c.Args[0]
}
