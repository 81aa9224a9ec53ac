package resscan

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"sctools/internal/common"
)

// TestFraction is the held-out share of cells.
const TestFraction = 0.33

// Seed fixes the train/test shuffle.
const Seed = 42

// split returns shuffled train and test row indices for n rows.
func split(n int) (train, test []int) {
	nTest := int(math.Ceil(TestFraction * float64(n)))
	perm := rand.New(rand.NewPCG(Seed, Seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

// Agreement scores how well labels x predict labels y: a majority-vote
// classifier per x level is fitted on a training split and scored by
// support-weighted F1 on the held-out split. It is 0 when y has a single
// level.
func Agreement(x, y []string) float64 {
	if len(x) != len(y) || len(common.Distinct(y)) < 2 {
		return 0
	}
	train, test := split(len(y))
	if len(train) == 0 || len(test) == 0 {
		return 0
	}

	votes := make(map[string]map[string]int)
	overall := make(map[string]int)
	for _, i := range train {
		v := votes[x[i]]
		if v == nil {
			v = make(map[string]int)
			votes[x[i]] = v
		}
		v[y[i]]++
		overall[y[i]]++
	}
	fallback := majority(overall)
	rule := make(map[string]string, len(votes))
	for lvl, v := range votes {
		rule[lvl] = majority(v)
	}

	truth := make([]string, len(test))
	pred := make([]string, len(test))
	for k, i := range test {
		truth[k] = y[i]
		p, ok := rule[x[i]]
		if !ok {
			p = fallback
		}
		pred[k] = p
	}
	return WeightedF1(truth, pred)
}

// majority returns the most frequent label, the lowest label on ties.
func majority(counts map[string]int) string {
	best, bestN := "", -1
	for l, n := range counts {
		if n > bestN || (n == bestN && common.LessLabel(l, best)) {
			best, bestN = l, n
		}
	}
	return best
}

// WeightedF1 is the per-class F1 averaged with weights equal to each true
// class's support.
func WeightedF1(truth, pred []string) float64 {
	if len(truth) == 0 {
		return 0
	}
	tp := make(map[string]int)
	fp := make(map[string]int)
	support := make(map[string]int)
	for i := range truth {
		support[truth[i]]++
		if truth[i] == pred[i] {
			tp[truth[i]]++
		} else {
			fp[pred[i]]++
		}
	}
	sum := 0.0
	for c, n := range support {
		prec, rec := 0.0, float64(tp[c])/float64(n)
		if d := tp[c] + fp[c]; d > 0 {
			prec = float64(tp[c]) / float64(d)
		}
		if prec+rec > 0 {
			sum += float64(n) * 2 * prec * rec / (prec + rec)
		}
	}
	return sum / float64(len(truth))
}

// CategoricalR2 is the held-out R² of predicting y from the levels of x by
// the per-level training mean.
func CategoricalR2(x []string, y []float64) float64 {
	if len(x) != len(y) || len(y) < 2 {
		return 0
	}
	train, test := split(len(y))
	if len(train) == 0 || len(test) == 0 {
		return 0
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	trainY := make([]float64, len(train))
	for k, i := range train {
		sums[x[i]] += y[i]
		counts[x[i]]++
		trainY[k] = y[i]
	}
	fallback := stat.Mean(trainY, nil)

	est := make([]float64, len(test))
	obs := make([]float64, len(test))
	for k, i := range test {
		obs[k] = y[i]
		if n := counts[x[i]]; n > 0 {
			est[k] = sums[x[i]] / float64(n)
		} else {
			est[k] = fallback
		}
	}
	if len(obs) == 1 || stat.Variance(obs, nil) == 0 {
		for k := range obs {
			if est[k] != obs[k] {
				return 0
			}
		}
		return 1
	}
	return stat.RSquaredFrom(est, obs, nil)
}
