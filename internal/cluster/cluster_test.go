package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"sctools/internal/adata"
)

// cliques returns a graph of fully connected groups with no edges between
// groups.
func cliques(sizes ...int) *adata.Neighbors {
	g := &adata.Neighbors{}
	base := 0
	for _, s := range sizes {
		for i := 0; i < s; i++ {
			for j := i + 1; j < s; j++ {
				g.Edges = append(g.Edges, adata.Edge{I: base + i, J: base + j, W: 1})
			}
		}
		base += s
	}
	g.N = base
	return g
}

func TestLouvain_DisjointCliques(t *testing.T) {
	labels, err := Louvain{}.Cluster(context.Background(), cliques(3, 5, 4), 1)
	require.NoError(t, err)
	want := []string{
		"2", "2", "2",
		"0", "0", "0", "0", "0",
		"1", "1", "1", "1",
	}
	assert.Equal(t, want, labels)
	assert.Equal(t, 3, Count(labels))
}

// ring links every node to the nodes up to reach steps away on a cycle.
// It has no dominant community split.
func ring(n, reach int) *adata.Neighbors {
	g := &adata.Neighbors{N: n}
	for i := 0; i < n; i++ {
		for d := 1; d <= reach; d++ {
			j := (i + d) % n
			g.Edges = append(g.Edges, adata.Edge{I: min(i, j), J: max(i, j), W: 1})
		}
	}
	return g
}

func TestLouvain_SameSeedSameLabels(t *testing.T) {
	g := ring(60, 2)
	for _, seed := range []uint64{0, 7} {
		first, err := Louvain{Seed: seed}.Cluster(context.Background(), g, 1)
		require.NoError(t, err)
		for run := 0; run < 20; run++ {
			got, err := Louvain{Seed: seed}.Cluster(context.Background(), g, 1)
			require.NoError(t, err)
			require.Equal(t, first, got, "seed %d run %d", seed, run)
		}
	}
}

func TestLouvain_Errors(t *testing.T) {
	_, err := Louvain{}.Cluster(context.Background(), nil, 1)
	require.ErrorIs(t, err, ErrNoGraph)
	_, err = Louvain{}.Cluster(context.Background(), cliques(2), 0)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Louvain{}.Cluster(ctx, cliques(2), 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLabelBySize_TieBreak(t *testing.T) {
	got := labelBySize(4, [][]int{{2, 3}, {0, 1}})
	assert.Equal(t, []string{"0", "0", "1", "1"}, got)
}

type fixed []string

func (f fixed) Cluster(context.Context, *adata.Neighbors, float64) ([]string, error) { return f, nil }

func TestAssign(t *testing.T) {
	ad, err := adata.New(mat.NewDense(3, 1, []float64{1, 2, 3}), []string{"a", "b", "c"}, []string{"G"})
	require.NoError(t, err)
	require.NoError(t, Assign(context.Background(), ad, fixed{"1", "0", "1"}, 0.5, ""))
	col, ok := ad.Obs.Col(DefaultKey)
	require.True(t, ok)
	assert.Equal(t, []string{"1", "0", "1"}, col.Str)
	assert.Equal(t, []string{"0", "1"}, col.Categories)
	assert.Equal(t, 0.5, ad.Uns["louvain_resolution"])

	require.Error(t, Assign(context.Background(), ad, fixed{"1"}, 0.5, "short"))
}
