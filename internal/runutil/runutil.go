// internal/runutil/runutil.go
package runutil

import "runtime"

// EffectiveWorkers returns n, or GOMAXPROCS when n <= 0, capped at jobs
// (and never below 1).
func EffectiveWorkers(n, jobs int) int {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if jobs > 0 && n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}
