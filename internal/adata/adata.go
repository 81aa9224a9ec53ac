// Package adata holds the annotated expression matrix: a cells × genes
// matrix with per-cell (obs) and per-gene (var) metadata frames sharing its
// row and column keys.
//
// Operations that filter return new matrices. Only annotation helpers
// append columns to an existing frame in place.
package adata

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when matrix and frame dimensions disagree.
var ErrShape = errors.New("shape mismatch")

// Edge is an undirected weighted edge between cells I < J.
type Edge struct {
	I, J int
	W    float64
}

// Neighbors is a cell-cell kNN graph.
type Neighbors struct {
	N     int // number of cells
	K     int
	NPCs  int
	Edges []Edge
}

// take returns the subgraph induced by idx, reindexed.
func (g *Neighbors) take(idx []int) *Neighbors {
	pos := make(map[int]int, len(idx))
	for k, i := range idx {
		pos[i] = k
	}
	out := &Neighbors{N: len(idx), K: g.K, NPCs: g.NPCs}
	for _, e := range g.Edges {
		a, okA := pos[e.I]
		b, okB := pos[e.J]
		if !okA || !okB {
			continue
		}
		if a > b {
			a, b = b, a
		}
		out.Edges = append(out.Edges, Edge{I: a, J: b, W: e.W})
	}
	return out
}

// AnnData is an annotated expression matrix. X is empty (IsEmpty) when
// there are no cells or no genes.
type AnnData struct {
	X    *mat.Dense
	Obs  *Frame
	Var  *Frame
	Obsm map[string]*mat.Dense // cell embeddings, rows = cells
	Varm map[string]*mat.Dense // gene loadings, rows = genes
	Uns  map[string]any
	// Graph is the neighbour graph, or nil before Neighbors ran.
	Graph *Neighbors
}

// New builds an AnnData over x. x may be nil for an empty matrix.
func New(x *mat.Dense, obsNames, varNames []string) (*AnnData, error) {
	if x == nil {
		x = &mat.Dense{}
	}
	a := &AnnData{
		X:    x,
		Obs:  NewFrame(obsNames),
		Var:  NewFrame(varNames),
		Obsm: map[string]*mat.Dense{},
		Varm: map[string]*mat.Dense{},
		Uns:  map[string]any{},
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NObs is the number of cells.
func (a *AnnData) NObs() int { return a.Obs.Len() }

// NVars is the number of genes.
func (a *AnnData) NVars() int { return a.Var.Len() }

// Validate checks the shape and key invariants.
func (a *AnnData) Validate() error {
	n, m := a.NObs(), a.NVars()
	if err := checkDims("X", a.X, n, m); err != nil {
		return err
	}
	if err := a.Obs.validate("obs"); err != nil {
		return err
	}
	if err := a.Var.validate("var"); err != nil {
		return err
	}
	for k, e := range a.Obsm {
		if err := checkRows("obsm["+k+"]", e, n); err != nil {
			return err
		}
	}
	for k, e := range a.Varm {
		if err := checkRows("varm["+k+"]", e, m); err != nil {
			return err
		}
	}
	if a.Graph != nil && a.Graph.N != n {
		return fmt.Errorf("%w: graph has %d nodes, %d cells", ErrShape, a.Graph.N, n)
	}
	return nil
}

func checkDims(what string, x *mat.Dense, n, m int) error {
	if x == nil || x.IsEmpty() {
		if n != 0 && m != 0 {
			return fmt.Errorf("%w: %s is empty but frames are %d×%d", ErrShape, what, n, m)
		}
		return nil
	}
	r, c := x.Dims()
	if r != n || c != m {
		return fmt.Errorf("%w: %s is %d×%d, frames are %d×%d", ErrShape, what, r, c, n, m)
	}
	return nil
}

func checkRows(what string, x *mat.Dense, n int) error {
	if x == nil || x.IsEmpty() {
		if n != 0 {
			return fmt.Errorf("%w: %s is empty, want %d rows", ErrShape, what, n)
		}
		return nil
	}
	if r, _ := x.Dims(); r != n {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrShape, what, r, n)
	}
	return nil
}

// ObsIndex returns the row of a cell identifier.
func (a *AnnData) ObsIndex(name string) (int, bool) {
	for i, n := range a.Obs.Names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// VarIndex returns the column of a gene symbol.
func (a *AnnData) VarIndex(name string) (int, bool) {
	for i, n := range a.Var.Names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// At returns X[i, j]. X must not be empty.
func (a *AnnData) At(i, j int) float64 { return a.X.At(i, j) }

// GeneValues copies column j of X.
func (a *AnnData) GeneValues(j int) []float64 {
	out := make([]float64, a.NObs())
	if a.X.IsEmpty() {
		return out
	}
	mat.Col(out, j, a.X)
	return out
}

// SubsetObs keeps the cells where mask is true.
func (a *AnnData) SubsetObs(mask []bool) (*AnnData, error) {
	if len(mask) != a.NObs() {
		return nil, fmt.Errorf("%w: mask has %d entries, %d cells", ErrShape, len(mask), a.NObs())
	}
	return a.TakeObs(maskIndex(mask)), nil
}

// SubsetVar keeps the genes where mask is true.
func (a *AnnData) SubsetVar(mask []bool) (*AnnData, error) {
	if len(mask) != a.NVars() {
		return nil, fmt.Errorf("%w: mask has %d entries, %d genes", ErrShape, len(mask), a.NVars())
	}
	return a.TakeVar(maskIndex(mask)), nil
}

// TakeObs returns a deep copy holding cells idx, in that order.
func (a *AnnData) TakeObs(idx []int) *AnnData {
	out := &AnnData{
		X:    takeRows(a.X, idx),
		Obs:  a.Obs.Take(idx),
		Var:  a.Var.Copy(),
		Obsm: make(map[string]*mat.Dense, len(a.Obsm)),
		Varm: make(map[string]*mat.Dense, len(a.Varm)),
		Uns:  copyUns(a.Uns),
	}
	for k, v := range a.Obsm {
		out.Obsm[k] = takeRows(v, idx)
	}
	for k, v := range a.Varm {
		out.Varm[k] = cloneDense(v)
	}
	if a.Graph != nil {
		out.Graph = a.Graph.take(idx)
	}
	return out
}

// TakeVar returns a deep copy holding genes idx, in that order. Embeddings
// derived from the old gene set are kept; loadings are subset with the genes.
func (a *AnnData) TakeVar(idx []int) *AnnData {
	out := &AnnData{
		X:    takeCols(a.X, idx),
		Obs:  a.Obs.Copy(),
		Var:  a.Var.Take(idx),
		Obsm: make(map[string]*mat.Dense, len(a.Obsm)),
		Varm: make(map[string]*mat.Dense, len(a.Varm)),
		Uns:  copyUns(a.Uns),
	}
	for k, v := range a.Obsm {
		out.Obsm[k] = cloneDense(v)
	}
	for k, v := range a.Varm {
		out.Varm[k] = takeRows(v, idx)
	}
	if a.Graph != nil {
		out.Graph = a.Graph.take(seq(a.NObs()))
	}
	return out
}

// Copy returns a deep copy.
func (a *AnnData) Copy() *AnnData { return a.TakeObs(seq(a.NObs())) }

// ObsmKeys lists embedding names in sorted order.
func (a *AnnData) ObsmKeys() []string {
	keys := make([]string, 0, len(a.Obsm))
	for k := range a.Obsm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary is the cell and gene count.
type Summary struct {
	Cells int
	Genes int
}

func (s Summary) String() string { return fmt.Sprintf("Cells: %d, Genes: %d", s.Cells, s.Genes) }

// Summary reports the matrix size.
func (a *AnnData) Summary() Summary { return Summary{Cells: a.NObs(), Genes: a.NVars()} }

func maskIndex(mask []bool) []int {
	idx := make([]int, 0, len(mask))
	for i, ok := range mask {
		if ok {
			idx = append(idx, i)
		}
	}
	return idx
}

func takeRows(x *mat.Dense, idx []int) *mat.Dense {
	if x == nil || x.IsEmpty() || len(idx) == 0 {
		return &mat.Dense{}
	}
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		out.SetRow(k, x.RawRowView(i))
	}
	return out
}

func takeCols(x *mat.Dense, idx []int) *mat.Dense {
	if x == nil || x.IsEmpty() || len(idx) == 0 {
		return &mat.Dense{}
	}
	r, _ := x.Dims()
	out := mat.NewDense(r, len(idx), nil)
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		dst := out.RawRowView(i)
		for k, j := range idx {
			dst[k] = row[j]
		}
	}
	return out
}

func cloneDense(x *mat.Dense) *mat.Dense {
	if x == nil || x.IsEmpty() {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(x)
}

func copyUns(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case []float64:
			out[k] = append([]float64(nil), t...)
		case []string:
			out[k] = append([]string(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}
