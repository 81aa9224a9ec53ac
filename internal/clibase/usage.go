// internal/clibase/usage.go
package clibase

import (
	"fmt"
	"strings"

	"sctools/internal/version"
)

// Banner is the long description header shared by the tools.
func Banner(name, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s – %s\n\n", name, summary)
	fmt.Fprintln(&b, "License: MIT")
	fmt.Fprintf(&b, "Version: %s", version.Version)
	return b.String()
}

// Examples formats example invocations for a cobra Example field.
func Examples(lines ...string) string {
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
