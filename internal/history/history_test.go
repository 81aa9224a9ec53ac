package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	id, err := s.BeginRun(ctx, "s3://b/A_B_C.fq.gz")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	require.NoError(t, s.RecordStage(ctx, id, Stage{Seq: 0, Name: "parse_path", Status: "succeeded"}))
	require.NoError(t, s.RecordStage(ctx, id, Stage{Seq: 1, Name: "s3_download", Status: "failed", ExitCode: 1, Reason: "exit status 1", Elapsed: 250 * time.Millisecond}))
	require.NoError(t, s.FinishRun(ctx, id, false))

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "s3://b/A_B_C.fq.gz", runs[0].Input)
	assert.False(t, runs[0].OK)
	assert.True(t, runs[0].FinishedAt.After(runs[0].StartedAt))

	stages, err := s.Stages(ctx, id)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "s3_download", stages[1].Name)
	assert.Equal(t, 250*time.Millisecond, stages[1].Elapsed)
}

func TestRuns_NewestFirstAndLimit(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	first, err := s.BeginRun(ctx, "a")
	require.NoError(t, err)
	second, err := s.BeginRun(ctx, "b")
	require.NoError(t, err)

	runs, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)

	all, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{second, first}, []string{all[0].ID, all[1].ID})
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	assert.ErrorIs(t, s.FinishRun(ctx, "missing", true), ErrNotFound)
	_, err := s.Stages(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
