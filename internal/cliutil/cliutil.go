// Package cliutil holds small helpers for command-line argument handling.
package cliutil

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"sctools/internal/common"
	"sctools/internal/xio"
)

func hasGlobMeta(s string) bool { return strings.ContainsAny(s, "*?[") }

// ExpandPositionals expands any globs among path-like positionals. A glob
// matching nothing is an error.
func ExpandPositionals(posArgs []string) ([]string, error) {
	var out []string
	for _, a := range posArgs {
		if !hasGlobMeta(a) {
			out = append(out, a)
			continue
		}
		m, err := filepath.Glob(a)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %v", a, err)
		}
		if len(m) == 0 {
			return nil, fmt.Errorf("no input matched %q", a)
		}
		out = append(out, m...)
	}
	return out, nil
}

// ReadList returns the non-empty, non-comment lines of path, trimmed.
// Gzipped files are read transparently.
func ReadList(path string) ([]string, error) {
	rc, err := xio.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var out []string
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, l)
	}
	return out, sc.Err()
}

// Terms gathers items from positionals and an optional list file, in that
// order, trimmed and without repeats.
func Terms(args []string, listFile string) ([]string, error) {
	out := append([]string(nil), args...)
	if listFile != "" {
		more, err := ReadList(listFile)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	return common.UniqueTrimmed(out), nil
}
