package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sctools/internal/execrun"
	"sctools/internal/history"
	"sctools/internal/stagelog"
)

const input = "s3://bucket.with.dots/runs/SAMPLE_PLATE01_L001.fastq.gz"

type copyCall struct{ Src, Dst string }

type fakeCopier struct {
	mu    sync.Mutex
	calls []copyCall
	fail  func(src, dst string) int
}

func (f *fakeCopier) Copy(_ context.Context, src, dst string) execrun.Result {
	f.mu.Lock()
	f.calls = append(f.calls, copyCall{src, dst})
	f.mu.Unlock()
	if f.fail != nil {
		return execrun.Result{ExitCode: f.fail(src, dst)}
	}
	return execrun.Result{}
}

func newPipeline(t *testing.T, r *execrun.Recorder, c *fakeCopier) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "stages.log")
	return &Pipeline{
		Cfg: Config{
			Workdir:  dir,
			GTF:      "/ref/genes.gtf",
			FASTA:    "/ref/genome.fa",
			Dest:     "s3://dest/events",
			Subtypes: []string{"se", "mxe"},
		},
		Runner:   r,
		Storage:  c,
		StageLog: stagelog.New(logPath),
	}, logPath
}

func stageNames(t *testing.T, path string) []string {
	t.Helper()
	lines, err := stagelog.ReadLines(path)
	require.NoError(t, err)
	var out []string
	for _, l := range lines {
		out = append(out, l.Stage+"="+l.Status)
	}
	return out
}

func TestRun_AllStagesSucceed(t *testing.T) {
	rec := &execrun.Recorder{}
	cp := &fakeCopier{}
	p, logPath := newPipeline(t, rec, cp)

	rep, err := p.Run(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, "SAMPLE_PLATE01_L001", rep.Prefixes.FilePrefix)

	got := stageNames(t, logPath)
	require.Len(t, got, 7)
	want := []string{
		"parse_path=0", "s3_download=0", "run_outrigger=0", "run_validate=0",
		"se_upload=0", "mxe_upload=0",
	}
	if diff := cmp.Diff(want, got[:6]); diff != "" {
		t.Fatalf("stage log mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, strings.HasPrefix(got[6], stagelog.ExecTimeStage+"="))

	require.Len(t, rec.Calls, 2)
	assert.Contains(t, rec.Calls[0].Args, "SAMPLE_PLATE01_L001.homo.SJ.out.tab")
	assert.Contains(t, rec.Calls[1].Args, "hg38")
	assert.Equal(t, p.Cfg.Workdir, rec.Calls[0].Dir)

	wantCopies := []copyCall{
		{input, p.Cfg.Workdir + "/"},
		{filepath.Join(p.Cfg.Workdir, "outrigger_output/index/se/validated/events.csv"), "s3://dest/events/"},
		{filepath.Join(p.Cfg.Workdir, "outrigger_output/index/mxe/validated/events.csv"), "s3://dest/events/"},
	}
	if diff := cmp.Diff(wantCopies, cp.calls); diff != "" {
		t.Fatalf("copies mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_MalformedPathSkipsEverything(t *testing.T) {
	rec := &execrun.Recorder{}
	cp := &fakeCopier{}
	p, logPath := newPipeline(t, rec, cp)

	rep, err := p.Run(context.Background(), "s3://bucket/noprefix.fastq.gz")
	require.NoError(t, err)
	assert.False(t, rep.OK())

	parse, ok := rep.Stage(StageParse)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, parse.Status)
	assert.Equal(t, 1, parse.ExitCode)

	for _, name := range []string{StageDownload, StageIndex, StageValidate, "se_upload", "mxe_upload"} {
		r, ok := rep.Stage(name)
		require.True(t, ok, name)
		assert.Equal(t, StatusSkipped, r.Status, name)
		assert.ErrorIs(t, r.Reason, ErrUpstreamFailed)
	}
	assert.Empty(t, rec.Calls)
	assert.Empty(t, cp.calls)

	got := stageNames(t, logPath)
	require.Len(t, got, 2)
	assert.Equal(t, "parse_path=1", got[0])
}

func TestRun_IndexFailureStopsDownstream(t *testing.T) {
	rec := &execrun.Recorder{Codes: map[string]int{"outrigger index": 2}}
	cp := &fakeCopier{}
	p, logPath := newPipeline(t, rec, cp)

	rep, err := p.Run(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, rep.OK())

	got := stageNames(t, logPath)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"parse_path=0", "s3_download=0", "run_outrigger=2"}, got[:3])

	v, _ := rep.Stage(StageValidate)
	assert.Equal(t, StatusSkipped, v.Status)
	assert.Equal(t, []string{"outrigger index"}, rec.Names())
	assert.Len(t, cp.calls, 1)
}

func TestRun_OneUploadFailureDoesNotBlockOther(t *testing.T) {
	rec := &execrun.Recorder{}
	cp := &fakeCopier{fail: func(src, _ string) int {
		if strings.Contains(src, "/se/") {
			return 1
		}
		return 0
	}}
	p, logPath := newPipeline(t, rec, cp)

	rep, err := p.Run(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, rep.OK())

	se, _ := rep.Stage("se_upload")
	mxe, _ := rep.Stage("mxe_upload")
	assert.Equal(t, StatusFailed, se.Status)
	assert.Equal(t, StatusSucceeded, mxe.Status)

	got := stageNames(t, logPath)
	assert.Equal(t, "se_upload=1", got[4])
	assert.Equal(t, "mxe_upload=0", got[5])
}

func TestRun_DownloadFailureSkipsToolStages(t *testing.T) {
	rec := &execrun.Recorder{}
	cp := &fakeCopier{fail: func(src, _ string) int {
		if src == input {
			return 1
		}
		return 0
	}}
	p, logPath := newPipeline(t, rec, cp)

	rep, err := p.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, rec.Calls)
	d, _ := rep.Stage(StageDownload)
	assert.Equal(t, StatusFailed, d.Status)
	assert.Len(t, stageNames(t, logPath), 3)
}

func TestRun_CanceledContext(t *testing.T) {
	rec := &execrun.Recorder{}
	cp := &fakeCopier{}
	p, logPath := newPipeline(t, rec, cp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := p.Run(ctx, input)
	require.ErrorIs(t, err, context.Canceled)
	for _, s := range rep.Stages {
		assert.Equal(t, StatusSkipped, s.Status, s.Name)
	}
	got := stageNames(t, logPath)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], stagelog.ExecTimeStage))
}

func TestRun_StageLogUnwritable(t *testing.T) {
	rec := &execrun.Recorder{}
	p, _ := newPipeline(t, rec, &fakeCopier{})
	p.StageLog = stagelog.New(filepath.Join(t.TempDir(), "missing", "stages.log"))

	_, err := p.Run(context.Background(), input)
	require.Error(t, err)
}

func TestRun_RecordsHistory(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rec := &execrun.Recorder{Codes: map[string]int{"outrigger validate": 1}}
	p, _ := newPipeline(t, rec, &fakeCopier{})
	p.History = store

	rep, err := p.Run(context.Background(), input)
	require.NoError(t, err)
	require.NotEmpty(t, rep.RunID)

	runs, err := store.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].OK)
	assert.False(t, runs[0].FinishedAt.IsZero())

	stages, err := store.Stages(context.Background(), rep.RunID)
	require.NoError(t, err)
	require.Len(t, stages, 6)
	assert.Equal(t, "run_validate", stages[3].Name)
	assert.Equal(t, "failed", stages[3].Status)
	assert.Equal(t, "skipped", stages[4].Status)
}

func TestRun_ElapsedUsesClock(t *testing.T) {
	rec := &execrun.Recorder{}
	p, logPath := newPipeline(t, rec, &fakeCopier{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	p.Now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	rep, err := p.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Greater(t, rep.Elapsed, time.Duration(0))

	lines, err := stagelog.ReadLines(logPath)
	require.NoError(t, err)
	last := lines[len(lines)-1]
	assert.Equal(t, stagelog.ExecTimeStage, last.Stage)
	assert.NotEqual(t, "0", last.Status)
}

func TestRun_PreflightFailureBlocksIndex(t *testing.T) {
	rec := &execrun.Recorder{}
	p, logPath := newPipeline(t, rec, &fakeCopier{})
	p.Cfg.Preflight = true
	p.Cfg.GTF = filepath.Join(t.TempDir(), "absent.gtf")

	rep, err := p.Run(context.Background(), input)
	require.NoError(t, err)
	pf, ok := rep.Stage(StagePreflight)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, pf.Status)
	d, _ := rep.Stage(StageDownload)
	assert.Equal(t, StatusSucceeded, d.Status)
	ix, _ := rep.Stage(StageIndex)
	assert.Equal(t, StatusSkipped, ix.Status)
	assert.Empty(t, rec.Calls)

	got := stageNames(t, logPath)
	assert.Equal(t, []string{"parse_path=0", "preflight_refs=1", "s3_download=0"}, got[:3])
}

func TestCheckReferences(t *testing.T) {
	dir := t.TempDir()
	gtf := filepath.Join(dir, "genes.gtf")
	fa := filepath.Join(dir, "genome.fa")
	lines := []string{
		"chr1\tHAVANA\tgene\t11869\t14409\t.\t+\t.\tgene_id \"G1\"",
		"chr1\tHAVANA\texon\t11869\t12227\t.\t+\t.\tgene_id \"G1\"",
		"chr2\tHAVANA\tgene\t100\t900\t.\t-\t.\tgene_id \"G2\"",
	}
	require.NoError(t, os.WriteFile(gtf, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	require.NoError(t, os.WriteFile(fa, []byte(">chr1 primary\nACGT\n>chr2\nGG\n"), 0o644))

	refs, err := CheckReferences(context.Background(), gtf, fa)
	require.NoError(t, err)
	assert.Equal(t, References{Features: 3, Genes: 2, FirstContig: "chr1"}, refs)

	_, err = CheckReferences(context.Background(), gtf, filepath.Join(dir, "nope.fa"))
	require.Error(t, err)
}

func TestResult(t *testing.T) {
	code, err := result(execrun.Result{ExitCode: 3, StderrTail: "boom"})
	assert.Equal(t, 3, code)
	assert.EqualError(t, err, "exit status 3: boom")

	sentinel := errors.New("not found")
	code, err = result(execrun.Result{ExitCode: execrun.ExitNotRun, Err: sentinel})
	assert.Equal(t, execrun.ExitNotRun, code)
	assert.ErrorIs(t, err, sentinel)

	code, err = result(execrun.Result{})
	assert.Zero(t, code)
	assert.NoError(t, err)
}
