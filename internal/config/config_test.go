package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/home/ubuntu/wkdir", cfg.Workdir)
	assert.Equal(t, []string{"se", "mxe"}, cfg.Subtypes)
	assert.Equal(t, 15, cfg.Analysis.NPCs)
	assert.Equal(t, 0.5, cfg.Analysis.Resolution)
	assert.Equal(t, "/home/ubuntu/wkdir/log.txt", cfg.LogPath())
	require.NoError(t, cfg.Validate())
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SCTOOLS_WORKDIR", "SCTOOLS_DEST", "SCTOOLS_HISTORY_DB", "SCTOOLS_STORE", "SCTOOLS_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cfg", "sctools.yaml")
	cfg := Default()
	cfg.Workdir = "/scratch/run1"
	cfg.Subtypes = []string{"se"}
	cfg.Analysis.Rank.Method = "t-test"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/scratch/run1", loaded.Workdir)
	assert.Equal(t, []string{"se"}, loaded.Subtypes)
	assert.Equal(t, "t-test", loaded.Analysis.Rank.Method)
	assert.Equal(t, 30, loaded.Analysis.Neighbors)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dest: s3://other/bucket\nanalysis:\n  n_pcs: 20\n  louvain_seed: 11\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3://other/bucket", cfg.Dest)
	assert.Equal(t, 20, cfg.Analysis.NPCs)
	assert.Equal(t, uint64(11), cfg.Analysis.Seed)
	assert.Equal(t, 30, cfg.Analysis.Neighbors)
	assert.Equal(t, 0.05, cfg.Analysis.ScanStep)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workdir: [unterminated\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCTOOLS_WORKDIR", "/env/wk")
	t.Setenv("SCTOOLS_HISTORY_DB", "/env/h.db")
	t.Setenv("SCTOOLS_STORE", "/env/m.db")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/wk", cfg.Workdir)
	assert.Equal(t, "/env/h.db", cfg.HistoryDB)
	assert.Equal(t, "/env/m.db", cfg.Analysis.Store)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"no workdir", func(c *Config) { c.Workdir = "" }},
		{"no subtypes", func(c *Config) { c.Subtypes = nil }},
		{"bad subtype", func(c *Config) { c.Subtypes = []string{"zz"} }},
		{"bad step", func(c *Config) { c.Analysis.ScanStep = 1 }},
		{"bad means", func(c *Config) { c.Analysis.MinMean = 5; c.Analysis.MaxMean = 1 }},
		{"no store", func(c *Config) { c.Analysis.Store = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
