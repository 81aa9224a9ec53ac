package stagelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_AppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	l := New(path)
	require.NoError(t, l.Stage("parse_path", 0))
	require.NoError(t, l.Stage("s3_download", 1))
	require.NoError(t, l.Elapsed(1500*time.Millisecond))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "parse_path, 0\ns3_download, 1\n__exec_time, 1.5\n", string(raw))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []Line{{"parse_path", "0"}, {"s3_download", "1"}, {ExecTimeStage, "1.5"}}, lines)
}

func TestLogger_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("old, 0\n"), 0o644))
	require.NoError(t, New(path).Stage("new", 2))
	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestLogger_MissingDir(t *testing.T) {
	err := New(filepath.Join(t.TempDir(), "nope", "log.txt")).Stage("x", 0)
	assert.Error(t, err)
}

func TestReadLines_Bad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))
	_, err := ReadLines(path)
	assert.Error(t, err)
}
