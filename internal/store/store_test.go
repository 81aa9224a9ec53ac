package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"sctools/internal/adata"
)

func sample(t *testing.T) *adata.AnnData {
	t.Helper()
	x := mat.NewDense(3, 2, []float64{
		0, 1.5,
		2, 0,
		0, 0,
	})
	ad, err := adata.New(x, []string{"c1", "c2", "c3"}, []string{"G1", "G2"})
	require.NoError(t, err)
	require.NoError(t, ad.Obs.SetCategorical("louvain", []string{"1", "0", "1"}))
	require.NoError(t, ad.Obs.SetNumeric("n_counts", []float64{1.5, 2, 0}))
	require.NoError(t, ad.Obs.SetStrings("plate", []string{"P1", "P2", "P1"}))
	require.NoError(t, ad.Var.SetStrings("gene_symbols", []string{"G1", "G2"}))
	ad.Obsm["X_pca"] = mat.NewDense(3, 1, []float64{-1, 0.5, 0.5})
	ad.Varm["PCs"] = mat.NewDense(2, 1, []float64{0.6, -0.8})
	ad.Graph = &adata.Neighbors{N: 3, K: 2, NPCs: 1, Edges: []adata.Edge{{I: 0, J: 2, W: 0.5}, {I: 1, J: 2, W: 1}}}
	ad.Uns["pca_variance_ratio"] = []float64{1}
	ad.Uns["louvain_resolution"] = 0.5
	ad.Uns["source"] = "counts.csv"
	return ad
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.db")
	in := sample(t)
	require.NoError(t, Save(ctx, path, in))

	out, err := Load(ctx, path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(in.X, out.X))
	assert.Equal(t, in.Obs.Names, out.Obs.Names)
	assert.Equal(t, in.Var.Names, out.Var.Names)
	assert.Equal(t, in.Obs.Columns(), out.Obs.Columns())
	for _, name := range in.Obs.Columns() {
		a, _ := in.Obs.Col(name)
		b, ok := out.Obs.Col(name)
		require.True(t, ok)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("column %s (-want +got):\n%s", name, diff)
		}
	}
	assert.True(t, mat.Equal(in.Obsm["X_pca"], out.Obsm["X_pca"]))
	assert.True(t, mat.Equal(in.Varm["PCs"], out.Varm["PCs"]))
	if diff := cmp.Diff(in.Graph, out.Graph); diff != "" {
		t.Errorf("graph (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in.Uns, out.Uns); diff != "" {
		t.Errorf("uns (-want +got):\n%s", diff)
	}
}

func TestSave_Overwrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, Save(ctx, path, sample(t)))

	small, err := adata.New(mat.NewDense(1, 1, []float64{7}), []string{"only"}, []string{"G"})
	require.NoError(t, err)
	require.NoError(t, Save(ctx, path, small))

	out, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, adata.Summary{Cells: 1, Genes: 1}, out.Summary())
	assert.Nil(t, out.Graph)
	assert.Empty(t, out.Obsm)
	assert.Equal(t, 7.0, out.X.At(0, 0))
}

func TestSaveLoad_Empty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.db")
	empty, err := adata.New(nil, nil, []string{"G1", "G2"})
	require.NoError(t, err)
	require.NoError(t, Save(ctx, path, empty))
	out, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, out.NObs())
	assert.Equal(t, 2, out.NVars())
	assert.True(t, out.X.IsEmpty())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSave_UnsupportedUns(t *testing.T) {
	ad := sample(t)
	ad.Uns["weird"] = struct{}{}
	require.Error(t, Save(context.Background(), filepath.Join(t.TempDir(), "m.db"), ad))
}

func TestFloatBlob(t *testing.T) {
	v := []float64{0, -1.25, 3e100}
	got, err := floatsFromBlob(floatBlob(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)
	_, err = floatsFromBlob([]byte{1, 2, 3})
	require.Error(t, err)
}
