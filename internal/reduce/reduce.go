// Package reduce computes principal components and the cell neighbour
// graph used for clustering.
package reduce

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"sctools/internal/adata"
)

// Keys written by PCA.
const (
	EmbeddingKey     = "X_pca"
	LoadingsKey      = "PCs"
	VarianceKey      = "pca_variance"
	VarianceRatioKey = "pca_variance_ratio"
)

var (
	// ErrNoPCA is returned when an operation needs PCA results first.
	ErrNoPCA = errors.New("pca has not been computed")
	// ErrTooSmall is returned when there are too few cells or genes.
	ErrTooSmall = errors.New("matrix too small")
)

// PCA projects cells onto the first nComps principal components (capped
// at min(cells, genes) - 1, at least 1). Scores are sign-flipped to
// match Seurat. It writes obsm["X_pca"], varm["PCs"] and the explained
// variance to uns.
func PCA(ad *adata.AnnData, nComps int) error {
	if ad.X.IsEmpty() || ad.NObs() < 2 {
		return fmt.Errorf("%w: %s", ErrTooSmall, ad.Summary())
	}
	n, d := ad.X.Dims()
	limit := min(n, d) - 1
	if limit < 1 {
		limit = 1
	}
	if nComps <= 0 || nComps > limit {
		nComps = limit
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(ad.X, nil); !ok {
		return errors.New("pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	loadings := mat.DenseCopyOf(vecs.Slice(0, d, 0, nComps))

	centered := mat.DenseCopyOf(ad.X)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, centered)
		m := stat.Mean(col, nil)
		floats.AddConst(-m, col)
		centered.SetCol(j, col)
	}
	var scores mat.Dense
	scores.Mul(centered, loadings)
	scores.Scale(-1, &scores)

	total := floats.Sum(vars)
	ratio := make([]float64, nComps)
	for i := range ratio {
		if total > 0 {
			ratio[i] = vars[i] / total
		}
	}
	ad.Obsm[EmbeddingKey] = &scores
	ad.Varm[LoadingsKey] = loadings
	ad.Uns[VarianceKey] = append([]float64(nil), vars[:nComps]...)
	ad.Uns[VarianceRatioKey] = ratio
	return nil
}

// Neighbors builds a k-nearest-neighbour graph (k counts the cell itself)
// in the space of the first nPCs components. Edges join every cell to its
// k-1 nearest others and are weighted by the Jaccard overlap of the two
// neighbourhoods.
func Neighbors(ad *adata.AnnData, nPCs, k int) error {
	emb, ok := ad.Obsm[EmbeddingKey]
	if !ok || emb.IsEmpty() {
		return ErrNoPCA
	}
	n, c := emb.Dims()
	if nPCs <= 0 || nPCs > c {
		nPCs = c
	}
	if k < 2 {
		return fmt.Errorf("neighbors: k must be ≥ 2, got %d", k)
	}
	if k > n {
		k = n
	}

	hood := make([][]int, n)
	type cand struct {
		j int
		d float64
	}
	cands := make([]cand, 0, n)
	for i := 0; i < n; i++ {
		a := emb.RawRowView(i)[:nPCs]
		cands = cands[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cands = append(cands, cand{j, floats.Distance(a, emb.RawRowView(j)[:nPCs], 2)})
		}
		sort.Slice(cands, func(x, y int) bool {
			if cands[x].d != cands[y].d {
				return cands[x].d < cands[y].d
			}
			return cands[x].j < cands[y].j
		})
		h := []int{i}
		for _, cd := range cands[:k-1] {
			h = append(h, cd.j)
		}
		sort.Ints(h)
		hood[i] = h
	}

	type pair struct{ i, j int }
	seen := make(map[pair]struct{})
	g := &adata.Neighbors{N: n, K: k, NPCs: nPCs}
	for i := 0; i < n; i++ {
		for _, j := range hood[i] {
			if j == i {
				continue
			}
			p := pair{min(i, j), max(i, j)}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			g.Edges = append(g.Edges, adata.Edge{I: p.i, J: p.j, W: jaccard(hood[p.i], hood[p.j])})
		}
	}
	sort.Slice(g.Edges, func(x, y int) bool {
		if g.Edges[x].I != g.Edges[y].I {
			return g.Edges[x].I < g.Edges[y].I
		}
		return g.Edges[x].J < g.Edges[y].J
	})
	ad.Graph = g
	return nil
}

// jaccard of two sorted index sets.
func jaccard(a, b []int) float64 {
	inter, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// PCContribution returns, for every principal component, the gene's
// loading divided by the largest loading of that component.
func PCContribution(ad *adata.AnnData, gene string) ([]float64, error) {
	load, ok := ad.Varm[LoadingsKey]
	if !ok || load.IsEmpty() {
		return nil, ErrNoPCA
	}
	g, ok := ad.VarIndex(gene)
	if !ok {
		return nil, fmt.Errorf("unknown gene: %s", gene)
	}
	_, c := load.Dims()
	out := make([]float64, c)
	col := make([]float64, ad.NVars())
	for pc := 0; pc < c; pc++ {
		mat.Col(col, pc, load)
		if m := floats.Max(col); m != 0 {
			out[pc] = load.At(g, pc) / m
		}
	}
	return out, nil
}
