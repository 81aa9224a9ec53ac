// Package preprocess filters cells and genes and normalises expression:
// count and gene-number cell filters, a Seurat-flavour dispersion gene
// filter, log1p and per-gene standard scaling.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"sctools/internal/adata"
)

// Column names written to obs and var.
const (
	NCountsColumn     = "n_counts"
	NGenesColumn      = "n_genes"
	MeansColumn       = "means"
	DispersionsColumn = "dispersions"
	DispNormColumn    = "dispersions_norm"
)

// DispersionBins is the number of equal-width mean bins used to normalise
// dispersions.
const DispersionBins = 20

// ErrEmpty is returned when filtering removes every cell or gene.
var ErrEmpty = errors.New("no cells or genes left after filtering")

// Params are the filter thresholds.
type Params struct {
	MinCounts float64
	MinGenes  int
	MinDisp   float64
	MinMean   float64
	MaxMean   float64
}

// Report counts what Process removed.
type Report struct {
	Before, After adata.Summary
}

// FilteredCells is the number of cells removed.
func (r Report) FilteredCells() int { return r.Before.Cells - r.After.Cells }

// FilteredGenes is the number of genes removed.
func (r Report) FilteredGenes() int { return r.Before.Genes - r.After.Genes }

// Process runs the filters and transforms on a copy of ad.
func Process(ad *adata.AnnData, p Params) (*adata.AnnData, Report, error) {
	rep := Report{Before: ad.Summary()}
	if ad.X.IsEmpty() {
		return nil, rep, ErrEmpty
	}

	out, err := FilterCellsMinCounts(ad, p.MinCounts)
	if err != nil {
		return nil, rep, err
	}
	if out, err = FilterCellsMinGenes(out, p.MinGenes); err != nil {
		return nil, rep, err
	}
	if out, err = FilterGenesDispersion(out, p.MinDisp, p.MinMean, p.MaxMean); err != nil {
		return nil, rep, err
	}
	Log1p(out)
	Scale(out)
	rep.After = out.Summary()
	return out, rep, nil
}

// FilterCellsMinCounts keeps cells whose total count is at least min and
// records obs["n_counts"].
func FilterCellsMinCounts(ad *adata.AnnData, min float64) (*adata.AnnData, error) {
	n := ad.NObs()
	counts := make([]float64, n)
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		counts[i] = sum(ad.X.RawRowView(i))
		mask[i] = counts[i] >= min
	}
	return withColumn(ad, mask, NCountsColumn, counts)
}

// FilterCellsMinGenes keeps cells expressing at least min genes and records
// obs["n_genes"].
func FilterCellsMinGenes(ad *adata.AnnData, min int) (*adata.AnnData, error) {
	n := ad.NObs()
	genes := make([]float64, n)
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		k := 0
		for _, v := range ad.X.RawRowView(i) {
			if v > 0 {
				k++
			}
		}
		genes[i] = float64(k)
		mask[i] = k >= min
	}
	return withColumn(ad, mask, NGenesColumn, genes)
}

// Dispersion holds the per-gene statistics of the dispersion filter.
type Dispersion struct {
	Means []float64 // log1p of the mean
	Disp  []float64 // log of variance/mean; NaN for zero dispersion
	Norm  []float64 // dispersion normalised within its mean bin
}

// Dispersions computes Seurat-flavour normalised dispersions over raw
// counts.
func Dispersions(x *mat.Dense) Dispersion {
	r, c := x.Dims()
	d := Dispersion{Means: make([]float64, c), Disp: make([]float64, c), Norm: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, variance := stat.MeanVariance(col, nil)
		if mean == 0 {
			mean = 1e-12
		}
		disp := variance / mean
		if disp == 0 {
			disp = math.NaN()
		}
		d.Disp[j] = math.Log(disp)
		d.Means[j] = math.Log1p(mean)
	}

	bins := meanBins(d.Means, DispersionBins)
	groups := make([][]float64, DispersionBins)
	for j, b := range bins {
		if !math.IsNaN(d.Disp[j]) {
			groups[b] = append(groups[b], d.Disp[j])
		}
	}
	binMean := make([]float64, DispersionBins)
	binStd := make([]float64, DispersionBins)
	for b, g := range groups {
		switch len(g) {
		case 0:
			binMean[b], binStd[b] = math.NaN(), math.NaN()
		case 1:
			// A lone gene normalises to 1.
			binMean[b], binStd[b] = 0, g[0]
		default:
			binMean[b], binStd[b] = stat.MeanStdDev(g, nil)
		}
	}
	for j, b := range bins {
		d.Norm[j] = (d.Disp[j] - binMean[b]) / binStd[b]
	}
	return d
}

// meanBins assigns values to n equal-width, right-closed bins spanning
// [min, max].
func meanBins(vals []float64, n int) []int {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]int, len(vals))
	width := (hi - lo) / float64(n)
	if width == 0 || math.IsInf(width, 0) || math.IsNaN(width) {
		return out
	}
	for i, v := range vals {
		b := int(math.Ceil((v-lo)/width)) - 1
		if b < 0 {
			b = 0
		}
		if b >= n {
			b = n - 1
		}
		out[i] = b
	}
	return out
}

// FilterGenesDispersion keeps genes with minMean < mean < maxMean and
// normalised dispersion > minDisp, recording the statistics on var.
func FilterGenesDispersion(ad *adata.AnnData, minDisp, minMean, maxMean float64) (*adata.AnnData, error) {
	if ad.X.IsEmpty() {
		return nil, ErrEmpty
	}
	d := Dispersions(ad.X)
	mask := make([]bool, ad.NVars())
	for j := range mask {
		m, n := d.Means[j], d.Norm[j]
		mask[j] = m > minMean && m < maxMean && n > minDisp
	}
	work := ad.Copy()
	for _, c := range []struct {
		name string
		vals []float64
	}{
		{MeansColumn, d.Means},
		{DispersionsColumn, d.Disp},
		{DispNormColumn, d.Norm},
	} {
		if err := work.Var.SetNumeric(c.name, c.vals); err != nil {
			return nil, err
		}
	}
	return nonEmpty(work.SubsetVar(mask))
}

// Log1p replaces X with log(1+X) in place.
func Log1p(ad *adata.AnnData) {
	if ad.X.IsEmpty() {
		return
	}
	ad.X.Apply(func(_, _ int, v float64) float64 { return math.Log1p(v) }, ad.X)
}

// Scale centres every gene to zero mean and unit (sample) variance in
// place. Genes with zero variance are only centred.
func Scale(ad *adata.AnnData) {
	if ad.X.IsEmpty() {
		return
	}
	r, c := ad.X.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, ad.X)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := range col {
			col[i] = (col[i] - mean) / std
		}
		ad.X.SetCol(j, col)
	}
}

// withColumn subsets cells by mask and records vals for the survivors.
func withColumn(ad *adata.AnnData, mask []bool, name string, vals []float64) (*adata.AnnData, error) {
	out, err := nonEmpty(ad.SubsetObs(mask))
	if err != nil {
		return nil, err
	}
	kept := make([]float64, 0, out.NObs())
	for i, ok := range mask {
		if ok {
			kept = append(kept, vals[i])
		}
	}
	if err := out.Obs.SetNumeric(name, kept); err != nil {
		return nil, err
	}
	return out, nil
}

func nonEmpty(ad *adata.AnnData, err error) (*adata.AnnData, error) {
	if err != nil {
		return nil, err
	}
	if ad.NObs() == 0 || ad.NVars() == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrEmpty, ad.Summary())
	}
	return ad, nil
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
