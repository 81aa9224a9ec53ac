// internal/common/sort.go
package common

import (
	"sort"
	"strconv"
)

// LessLabel orders labels numerically when both parse as integers
// ("2" < "10"), numbers before text, and text lexically.
func LessLabel(a, b string) bool {
	ia, ea := strconv.Atoi(a)
	ib, eb := strconv.Atoi(b)
	switch {
	case ea == nil && eb == nil:
		return ia < ib
	case ea == nil:
		return true
	case eb == nil:
		return false
	}
	return a < b
}

// SortLabels sorts labels in place with LessLabel.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool { return LessLabel(labels[i], labels[j]) })
}

// Levels returns the distinct values of labels in LessLabel order.
func Levels(labels []string) []string {
	out := Distinct(labels)
	SortLabels(out)
	return out
}

// Distinct de-duplicates in first-seen order without trimming.
func Distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
