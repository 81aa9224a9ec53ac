// Package config loads the YAML configuration shared by outrigger-validate and scx.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"sctools/internal/outrigger"
)

// Config holds all settings. Command-line flags override file values, which
// override the defaults below.
type Config struct {
	// Splice validation
	Workdir   string   `yaml:"workdir"`
	GTF       string   `yaml:"gtf"`
	FASTA     string   `yaml:"fasta"`
	Genome    string   `yaml:"genome"`
	Dest      string   `yaml:"dest"`
	LogFile   string   `yaml:"log_file"`
	Subtypes  []string `yaml:"subtypes"`
	Preflight bool     `yaml:"preflight"`
	HistoryDB string   `yaml:"history_db"`

	Tools    ToolsConfig    `yaml:"tools"`
	Logging  LoggingConfig  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// ToolsConfig names external binaries.
type ToolsConfig struct {
	AWS       string `yaml:"aws"`
	Outrigger string `yaml:"outrigger"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// AnalysisConfig replaces the interactive prompts of an analysis session
// with documented defaults.
type AnalysisConfig struct {
	MinCounts  float64    `yaml:"min_counts"`
	MinGenes   int        `yaml:"min_genes"`
	MinDisp    float64    `yaml:"min_disp"`
	MinMean    float64    `yaml:"min_mean"`
	MaxMean    float64    `yaml:"max_mean"`
	NPCs       int        `yaml:"n_pcs"`
	Neighbors  int        `yaml:"neighbors"`
	Resolution float64    `yaml:"resolution"`
	ScanStep   float64    `yaml:"scan_step"`
	Rank       RankConfig `yaml:"rank"`
	S3Region   string     `yaml:"s3_region"`
	UniProtURL string     `yaml:"uniprot_url"`
	Store      string     `yaml:"store"`   // matrix store used by scx
	Workers    int        `yaml:"workers"` // 0 means GOMAXPROCS
	Seed       uint64     `yaml:"louvain_seed"`
}

// RankConfig holds differential-expression defaults.
type RankConfig struct {
	Method string `yaml:"method"`
	NGenes int    `yaml:"n_genes"`
}

// Default returns the configuration the pipeline ran with before it was
// configurable.
func Default() *Config {
	return &Config{
		Workdir:  "/home/ubuntu/wkdir",
		GTF:      "/home/ubuntu/data/HG38-PLUS/genes/genes.gtf",
		FASTA:    "/home/ubuntu/data/HG38-PLUS/fasta/genome.fa",
		Genome:   "hg38",
		Dest:     "s3://daniel.le-work/MEL_project/DL20190111_outrigger",
		LogFile:  "log.txt",
		Subtypes: append([]string(nil), outrigger.DefaultSubtypes...),
		Tools:    ToolsConfig{AWS: "aws", Outrigger: "outrigger"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Analysis: AnalysisConfig{
			MinCounts:  50000,
			MinGenes:   500,
			MinDisp:    0.1,
			MinMean:    1e-3,
			MaxMean:    1e3,
			NPCs:       15,
			Neighbors:  30,
			Resolution: 0.5,
			ScanStep:   0.05,
			Rank:       RankConfig{Method: "wilcoxon", NGenes: 100},
			S3Region:   "us-west-2",
			UniProtURL: "https://rest.uniprot.org/uniprotkb/search",
			Store:      "sctools.db",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCTOOLS_WORKDIR"); v != "" {
		c.Workdir = v
	}
	if v := os.Getenv("SCTOOLS_DEST"); v != "" {
		c.Dest = v
	}
	if v := os.Getenv("SCTOOLS_HISTORY_DB"); v != "" {
		c.HistoryDB = v
	}
	if v := os.Getenv("SCTOOLS_STORE"); v != "" {
		c.Analysis.Store = v
	}
	if v := os.Getenv("SCTOOLS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// LogPath is the stage log inside the working directory.
func (c *Config) LogPath() string { return filepath.Join(c.Workdir, c.LogFile) }

// Validate checks the splice-validation settings.
func (c *Config) Validate() error {
	switch {
	case c.Workdir == "":
		return errors.New("workdir is required")
	case c.GTF == "":
		return errors.New("gtf is required")
	case c.FASTA == "":
		return errors.New("fasta is required")
	case c.Dest == "":
		return errors.New("dest is required")
	case c.LogFile == "":
		return errors.New("log_file is required")
	case len(c.Subtypes) == 0:
		return errors.New("at least one subtype is required")
	}
	for _, s := range c.Subtypes {
		if !outrigger.KnownSubtype(s) {
			return fmt.Errorf("unknown event subtype %q", s)
		}
	}
	return c.Analysis.Validate()
}

// Validate checks the analysis defaults.
func (a AnalysisConfig) Validate() error {
	switch {
	case a.NPCs < 1:
		return errors.New("analysis.n_pcs must be ≥ 1")
	case a.Neighbors < 1:
		return errors.New("analysis.neighbors must be ≥ 1")
	case a.Resolution <= 0:
		return errors.New("analysis.resolution must be > 0")
	case a.ScanStep <= 0 || a.ScanStep >= 1:
		return errors.New("analysis.scan_step must be in (0, 1)")
	case a.MinMean >= a.MaxMean:
		return errors.New("analysis.min_mean must be < max_mean")
	case a.Rank.NGenes < 1:
		return errors.New("analysis.rank.n_genes must be ≥ 1")
	case a.Store == "":
		return errors.New("analysis.store is required")
	}
	return nil
}
