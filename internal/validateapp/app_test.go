package validateapp

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sctools/internal/execrun"
	"sctools/internal/stagelog"
	"sctools/pkg/api"
)

const sample = "s3://bucket/runs/SAMPLE_PLATE01_L001.homo.SJ.out.tab"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SCTOOLS_WORKDIR", "SCTOOLS_DEST", "SCTOOLS_HISTORY_DB", "SCTOOLS_STORE", "SCTOOLS_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, rec execrun.Runner, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := RunWith(context.Background(), args, &out, &errb, rec)
	return code, out.String(), errb.String()
}

func TestRun_Success(t *testing.T) {
	clearEnv(t)
	wk := filepath.Join(t.TempDir(), "wk")
	rec := &execrun.Recorder{}

	code, out, errOut := run(t, rec, "--workdir", wk, "--dest", "s3://dest/events", "--log-level", "warn", sample)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "parse_path\tsucceeded")
	assert.Contains(t, out, "mxe_upload\tsucceeded")
	assert.True(t, strings.HasPrefix(out, "seq\tstage\tstatus"))

	lines, err := stagelog.ReadLines(filepath.Join(wk, "log.txt"))
	require.NoError(t, err)
	require.Len(t, lines, 7)
	assert.Equal(t, stagelog.ExecTimeStage, lines[6].Stage)

	assert.Equal(t, []string{"aws s3", "outrigger index", "outrigger validate", "aws s3", "aws s3"}, rec.Names())
	last := rec.Calls[len(rec.Calls)-1]
	assert.Equal(t, "s3://dest/events/", last.Args[len(last.Args)-1])
}

func TestRun_StageFailureExitsOne(t *testing.T) {
	clearEnv(t)
	rec := &execrun.Recorder{Codes: map[string]int{"outrigger validate": 1}}
	code, out, _ := run(t, rec, "--workdir", t.TempDir(), "--log-level", "error", "-o", "json", sample)
	require.Equal(t, 1, code)

	var stages []api.StageV1
	require.NoError(t, json.Unmarshal([]byte(out), &stages))
	require.Len(t, stages, 6)
	assert.Equal(t, "failed", stages[3].Status)
	assert.Equal(t, "skipped", stages[4].Status)
	assert.Contains(t, stages[4].Reason, "run_validate")
}

func TestRun_MalformedPath(t *testing.T) {
	clearEnv(t)
	rec := &execrun.Recorder{}
	code, _, _ := run(t, rec, "--workdir", t.TempDir(), "--log-level", "error", "s3://bucket/nounderscore.tab")
	assert.Equal(t, 1, code)
	assert.Empty(t, rec.Calls)
}

func TestRun_Usage(t *testing.T) {
	clearEnv(t)
	cases := []struct {
		name string
		args []string
		want int
	}{
		{"help on empty", nil, 0},
		{"two paths", []string{"s3://a/A_B.tab", "s3://a/C_D.tab"}, 2},
		{"no path", []string{"--workdir", "/tmp"}, 2},
		{"unknown flag", []string{"--bogus", sample}, 2},
		{"bad output", []string{"-o", "fasta", sample}, 2},
		{"bad subtype", []string{"--workdir", "/tmp", "--subtypes", "zz", sample}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &execrun.Recorder{}
			code, _, errOut := run(t, rec, tc.args...)
			assert.Equal(t, tc.want, code, errOut)
			assert.Empty(t, rec.Calls)
		})
	}
}

func TestRun_Version(t *testing.T) {
	code, out, _ := run(t, nil, "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "outrigger-validate")
}

func TestHistory(t *testing.T) {
	clearEnv(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	rec := &execrun.Recorder{}

	code, _, errOut := run(t, rec, "--workdir", t.TempDir(), "--history-db", db, "--log-level", "error", sample)
	require.Equal(t, 0, code, errOut)

	code, out, errOut := run(t, nil, "history", "--history-db", db, "-o", "json")
	require.Equal(t, 0, code, errOut)
	var runs []api.RunV1
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.True(t, runs[0].OK)
	assert.Equal(t, sample, runs[0].Input)

	code, out, errOut = run(t, nil, "history", "--history-db", db, "--run", runs[0].ID, "-o", "jsonl")
	require.Equal(t, 0, code, errOut)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 6)

	code, _, _ = run(t, nil, "history", "--history-db", db, "--run", "missing")
	assert.Equal(t, 1, code)
}

func TestHistory_NoDatabase(t *testing.T) {
	clearEnv(t)
	code, _, errOut := run(t, nil, "history")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "no history database")
}
