// cmd/outrigger-validate/main.go
package main

import (
	"sctools/internal/appshell"
	"sctools/internal/validateapp"
)

func main() { appshell.Main(validateapp.RunContext) }
