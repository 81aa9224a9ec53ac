// cmd/scx/main.go
package main

import (
	"sctools/internal/appshell"
	"sctools/internal/scxapp"
)

func main() { appshell.Main(scxapp.RunContext) }
