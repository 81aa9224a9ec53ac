package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"sctools/internal/adata"
)

func matrix(t *testing.T) *adata.AnnData {
	t.Helper()
	x := mat.NewDense(4, 3, []float64{
		1, 10, 4,
		2, 20, 4,
		3, 30, 4,
		0, 0, 0,
	})
	ad, err := adata.New(x, []string{"c1", "c2", "c3", "c4"}, []string{"A", "B", "C"})
	require.NoError(t, err)
	return ad
}

func TestFilterCellsMinCounts(t *testing.T) {
	ad := matrix(t)
	out, err := FilterCellsMinCounts(ad, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, out.Obs.Names)
	nc, ok := out.Obs.Col(NCountsColumn)
	require.True(t, ok)
	assert.Equal(t, []float64{26, 37}, nc.Num)

	_, ok = ad.Obs.Col(NCountsColumn)
	assert.False(t, ok, "input must not be modified")

	_, err = FilterCellsMinCounts(ad, 1e9)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestFilterCellsMinGenes(t *testing.T) {
	out, err := FilterCellsMinGenes(matrix(t), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NObs())
	ng, _ := out.Obs.Col(NGenesColumn)
	assert.Equal(t, []float64{3, 3, 3}, ng.Num)
}

func TestMeanBins(t *testing.T) {
	assert.Equal(t, []int{0, 0, 1, 19}, meanBins([]float64{0, 1, 1.5, 20}, 20))
	assert.Equal(t, []int{0, 0}, meanBins([]float64{3, 3}, 20))
}

func TestDispersions_LoneGenesNormaliseToOne(t *testing.T) {
	x := mat.NewDense(3, 3, []float64{
		1, 10, 4,
		2, 20, 4,
		3, 30, 4,
	})
	d := Dispersions(x)
	assert.InDelta(t, math.Log1p(2), d.Means[0], 1e-12)
	assert.InDelta(t, math.Log(0.5), d.Disp[0], 1e-12)
	assert.InDelta(t, math.Log(5), d.Disp[1], 1e-12)
	assert.True(t, math.IsNaN(d.Disp[2]))
	assert.InDelta(t, 1, d.Norm[0], 1e-12)
	assert.InDelta(t, 1, d.Norm[1], 1e-12)
	assert.True(t, math.IsNaN(d.Norm[2]))
}

func TestFilterGenesDispersion(t *testing.T) {
	ad, err := FilterCellsMinCounts(matrix(t), 1)
	require.NoError(t, err)
	out, err := FilterGenesDispersion(ad, 0.5, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out.Var.Names)
	assert.Equal(t, []string{MeansColumn, DispersionsColumn, DispNormColumn}, out.Var.Columns())

	_, err = FilterGenesDispersion(ad, 0.5, 5, 10)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestScale(t *testing.T) {
	ad := matrix(t)
	Scale(ad)
	col := make([]float64, 4)
	for j := 0; j < 3; j++ {
		mat.Col(col, j, ad.X)
		mean, std := stat.MeanStdDev(col, nil)
		assert.InDelta(t, 0, mean, 1e-12)
		assert.InDelta(t, 1, std, 1e-12)
	}

	flat, err := adata.New(mat.NewDense(2, 1, []float64{7, 7}), []string{"a", "b"}, []string{"G"})
	require.NoError(t, err)
	Scale(flat)
	assert.Equal(t, []float64{0, 0}, flat.GeneValues(0))
}

func TestLog1p(t *testing.T) {
	ad := matrix(t)
	Log1p(ad)
	assert.InDelta(t, math.Log(2), ad.X.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, ad.X.At(3, 0))
}

func TestProcess(t *testing.T) {
	out, rep, err := Process(matrix(t), Params{MinCounts: 1, MinGenes: 1, MinDisp: 0.5, MinMean: 0, MaxMean: 10})
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	assert.Equal(t, 1, rep.FilteredCells())
	assert.Equal(t, 1, rep.FilteredGenes())
	assert.Equal(t, adata.Summary{Cells: 3, Genes: 2}, rep.After)

	col := make([]float64, 3)
	mat.Col(col, 0, out.X)
	assert.InDelta(t, 0, stat.Mean(col, nil), 1e-12)
}
