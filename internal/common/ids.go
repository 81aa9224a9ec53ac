// internal/common/ids.go
package common

import "strconv"

// MakeUnique appends "-1", "-2", ... to repeated names. The first occurrence
// keeps its name and generated names never collide with names already
// present: [X X X-1] becomes [X X-2 X-1].
func MakeUnique(names []string) []string {
	taken := make(map[string]struct{}, len(names))
	for _, n := range names {
		taken[n] = struct{}{}
	}
	seen := make(map[string]struct{}, len(names))
	next := make(map[string]int)
	out := make([]string, len(names))
	for i, n := range names {
		if _, dup := seen[n]; !dup {
			seen[n] = struct{}{}
			out[i] = n
			continue
		}
		k := next[n]
		for {
			k++
			cand := n + "-" + strconv.Itoa(k)
			if _, ok := taken[cand]; !ok {
				taken[cand] = struct{}{}
				seen[cand] = struct{}{}
				out[i] = cand
				break
			}
		}
		next[n] = k
	}
	return out
}

// IndexOf maps each name to its position. Later duplicates win.
func IndexOf(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}
