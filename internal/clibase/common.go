// internal/clibase/common.go
package clibase

import (
	"github.com/spf13/pflag"

	"sctools/internal/config"
	"sctools/internal/output"
)

// Common holds CLI fields shared by outrigger-validate and scx.
type Common struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// Output
	Output   string // text|csv|json|jsonl
	NoHeader bool
}

// Register wires shared flags onto fs (normally a root command's persistent
// flag set).
func Register(fs *pflag.FlagSet, c *Common) {
	fs.StringVarP(&c.ConfigPath, "config", "c", "", "YAML config file (defaults apply when absent)")
	fs.StringVar(&c.LogLevel, "log-level", "", "log level: debug | info | warn | error [config]")
	fs.StringVar(&c.LogFormat, "log-format", "", "log format: console | json [config]")
	fs.StringVarP(&c.Output, "output", "o", output.FormatText, "output format: text | csv | json | jsonl")
	fs.BoolVar(&c.NoHeader, "no-header", false, "suppress the header line in text/csv output")
}

// Header reports whether delimited output carries a header line.
func (c *Common) Header() bool { return !c.NoHeader }

// LoadConfig reads the config file and applies the shared flag overrides.
func (c *Common) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, Exit(3, err)
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}
	if err := output.CheckFormat(c.Output); err != nil {
		return nil, Usage(err)
	}
	return cfg, nil
}
