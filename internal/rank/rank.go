// Package rank finds the genes that best distinguish each group of cells
// from all other cells.
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"sctools/internal/adata"
	"sctools/internal/cluster"
	"sctools/internal/common"
)

// Test methods.
const (
	Wilcoxon          = "wilcoxon"
	TTest             = "t-test"
	TTestOverestimVar = "t-test_overestim_var"
)

// Methods lists the supported tests.
var Methods = []string{Wilcoxon, TTest, TTestOverestimVar}

var (
	// ErrMethod is returned for an unknown test method.
	ErrMethod = errors.New("unknown rank method")
	// ErrSmallGroup is returned when a group or its complement has fewer
	// than two cells.
	ErrSmallGroup = errors.New("group too small to test")
)

// Params select the grouping and the test.
type Params struct {
	GroupBy   string // obs column, cluster.DefaultKey when empty
	Method    string // Wilcoxon when empty
	NGenes    int    // genes kept per group, all when <= 0
	RankByAbs bool   // order by |score|
}

// Group holds the ranked genes of one group, best first.
type Group struct {
	Name           string
	Genes          []string
	Scores         []float64
	LogFoldChanges []float64
	PValues        []float64
	PValuesAdj     []float64
}

// Result is the ranking of every group against the rest.
type Result struct {
	GroupBy string
	Method  string
	Groups  []Group
}

// Genes ranks the genes of ad for every level of the GroupBy column, each
// level tested against all remaining cells. X is expected to be log1p
// scaled; fold changes are computed on expm1 of the group means.
func Genes(ad *adata.AnnData, p Params) (*Result, error) {
	if p.GroupBy == "" {
		p.GroupBy = cluster.DefaultKey
	}
	if p.Method == "" {
		p.Method = Wilcoxon
	}
	switch p.Method {
	case Wilcoxon, TTest, TTestOverestimVar:
	default:
		return nil, fmt.Errorf("%w: %q", ErrMethod, p.Method)
	}
	col, ok := ad.Obs.Col(p.GroupBy)
	if !ok {
		return nil, fmt.Errorf("no obs column %q", p.GroupBy)
	}
	if ad.X.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrSmallGroup, ad.Summary())
	}
	labels := col.Strings()
	names := col.Categories
	if len(names) == 0 {
		names = common.Levels(labels)
	}

	res := &Result{GroupBy: p.GroupBy, Method: p.Method}
	nGenes := ad.NVars()
	x := ad.X
	for _, g := range names {
		in := make([]bool, len(labels))
		ng := 0
		for i, l := range labels {
			if l == g {
				in[i] = true
				ng++
			}
		}
		if ng == 0 {
			continue
		}
		if ng < 2 || len(labels)-ng < 2 {
			return nil, fmt.Errorf("%w: %s=%s has %d of %d cells", ErrSmallGroup, p.GroupBy, g, ng, len(labels))
		}

		scores := make([]float64, nGenes)
		pvals := make([]float64, nGenes)
		lfc := make([]float64, nGenes)
		vals := make([]float64, len(labels))
		for j := 0; j < nGenes; j++ {
			mat.Col(vals, j, x)
			grp, rest := partition(vals, in)
			switch p.Method {
			case Wilcoxon:
				scores[j], pvals[j] = wilcoxon(grp, rest)
			default:
				scores[j], pvals[j] = welch(grp, rest, p.Method == TTestOverestimVar)
			}
			lfc[j] = logFoldChange(stat.Mean(grp, nil), stat.Mean(rest, nil))
		}
		adj := benjaminiHochberg(pvals)

		order := make([]int, nGenes)
		for j := range order {
			order[j] = j
		}
		key := func(j int) float64 {
			if p.RankByAbs {
				return math.Abs(scores[j])
			}
			return scores[j]
		}
		sort.SliceStable(order, func(a, b int) bool { return key(order[a]) > key(order[b]) })
		if p.NGenes > 0 && p.NGenes < len(order) {
			order = order[:p.NGenes]
		}

		grp := Group{Name: g}
		for _, j := range order {
			grp.Genes = append(grp.Genes, ad.Var.Names[j])
			grp.Scores = append(grp.Scores, scores[j])
			grp.LogFoldChanges = append(grp.LogFoldChanges, lfc[j])
			grp.PValues = append(grp.PValues, pvals[j])
			grp.PValuesAdj = append(grp.PValuesAdj, adj[j])
		}
		res.Groups = append(res.Groups, grp)
	}
	return res, nil
}

func partition(vals []float64, in []bool) (grp, rest []float64) {
	for i, v := range vals {
		if in[i] {
			grp = append(grp, v)
		} else {
			rest = append(rest, v)
		}
	}
	return grp, rest
}

// welch is Welch's t-test. With overestim the rest variance is divided by
// the group size, which inflates it for small groups.
func welch(grp, rest []float64, overestim bool) (score, pval float64) {
	mg, vg := stat.MeanVariance(grp, nil)
	mr, vr := stat.MeanVariance(rest, nil)
	ng, nr := float64(len(grp)), float64(len(rest))
	if overestim {
		nr = ng
	}
	sg, sr := vg/ng, vr/nr
	denom := math.Sqrt(sg + sr)
	score = (mg - mr) / denom
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, 1
	}
	df := (sg + sr) * (sg + sr) / (sg*sg/(ng-1) + sr*sr/(nr-1))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pval = 2 * t.Survival(math.Abs(score))
	if math.IsNaN(pval) {
		pval = 1
	}
	return score, pval
}

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// wilcoxon is the rank-sum test with a normal approximation and no tie
// correction.
func wilcoxon(grp, rest []float64) (score, pval float64) {
	all := make([]float64, 0, len(grp)+len(rest))
	all = append(append(all, grp...), rest...)
	r := ranks(all)
	sum := 0.0
	for i := range grp {
		sum += r[i]
	}
	ng, nr := float64(len(grp)), float64(len(rest))
	score = (sum - ng*(ng+nr+1)/2) / math.Sqrt(ng*nr*(ng+nr+1)/12)
	return score, 2 * stdNormal.Survival(math.Abs(score))
}

// ranks returns 1-based ranks, ties sharing their average rank.
func ranks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })
	out := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && v[idx[j]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		i = j
	}
	return out
}

func logFoldChange(meanGroup, meanRest float64) float64 {
	return math.Log2((math.Expm1(meanGroup) + 1e-9) / (math.Expm1(meanRest) + 1e-9))
}

// benjaminiHochberg adjusts p-values for the false discovery rate.
func benjaminiHochberg(p []float64) []float64 {
	n := len(p)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
	out := make([]float64, n)
	prev := 1.0
	for k := n - 1; k >= 0; k-- {
		i := idx[k]
		v := min(prev, p[i]*float64(n)/float64(k+1))
		out[i] = v
		prev = v
	}
	return out
}
