// Package subset restricts annotated matrices to the cells whose metadata
// match a set of criteria. Within a key any listed value matches; every key
// must match.
package subset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"sctools/internal/adata"
	"sctools/internal/logging"
)

// ErrUnknownKey is returned when a criterion names a missing obs column.
var ErrUnknownKey = errors.New("unknown obs column")

// Criterion accepts rows whose Key column holds any of Values.
type Criterion struct {
	Key    string
	Values []string
}

// Criteria are ANDed in order.
type Criteria []Criterion

// FromMap builds criteria with keys in sorted order.
func FromMap(m map[string][]string) Criteria {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Criteria, 0, len(keys))
	for _, k := range keys {
		out = append(out, Criterion{Key: k, Values: append([]string(nil), m[k]...)})
	}
	return out
}

// Parse reads "key=v1,v2" terms.
func Parse(terms []string) (Criteria, error) {
	out := make(Criteria, 0, len(terms))
	for _, t := range terms {
		k, v, ok := strings.Cut(t, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("bad criterion %q: want key=value[,value...]", t)
		}
		var vals []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				vals = append(vals, s)
			}
		}
		out = append(out, Criterion{Key: k, Values: vals})
	}
	return out, nil
}

// Label renders the criteria as "key.v1-v2_key2.v", used in file names.
func (c Criteria) Label() string {
	parts := make([]string, len(c))
	for i, cr := range c {
		parts[i] = cr.Key + "." + strings.Join(cr.Values, "-")
	}
	return strings.Join(parts, "_")
}

// Predicate reports whether row i is kept.
type Predicate func(i int) bool

// In matches rows whose value in col is one of values. An empty list
// matches nothing.
func In(col *adata.Column, values []string) Predicate {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return func(i int) bool {
		_, ok := set[col.String(i)]
		return ok
	}
}

// And matches rows accepted by every p. With no predicates it matches all rows.
func And(ps ...Predicate) Predicate {
	return func(i int) bool {
		for _, p := range ps {
			if !p(i) {
				return false
			}
		}
		return true
	}
}

// Compile turns c into a predicate over the rows of f.
func (c Criteria) Compile(f *adata.Frame) (Predicate, error) {
	ps := make([]Predicate, 0, len(c))
	for _, cr := range c {
		col, ok := f.Col(cr.Key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, cr.Key)
		}
		ps = append(ps, In(col, cr.Values))
	}
	return And(ps...), nil
}

// Mask evaluates c over the rows of f.
func (c Criteria) Mask(f *adata.Frame, log *zap.Logger) ([]bool, error) {
	log = logging.OrNop(log)
	p, err := c.Compile(f)
	if err != nil {
		return nil, err
	}
	if ce := log.Check(zap.DebugLevel, "criterion"); ce != nil {
		for _, cr := range c {
			col, _ := f.Col(cr.Key)
			for _, v := range cr.Values {
				n := 0
				in := In(col, []string{v})
				for i := 0; i < f.Len(); i++ {
					if in(i) {
						n++
					}
				}
				log.Debug("criterion", zap.String("key", cr.Key), zap.String("value", v), zap.Int("matched", n))
			}
		}
	}
	mask := make([]bool, f.Len())
	for i := range mask {
		mask[i] = p(i)
	}
	return mask, nil
}

// Obs returns the cells of ad matching c.
func Obs(ad *adata.AnnData, c Criteria, log *zap.Logger) (*adata.AnnData, error) {
	mask, err := c.Mask(ad.Obs, log)
	if err != nil {
		return nil, err
	}
	out, err := ad.SubsetObs(mask)
	if err != nil {
		return nil, err
	}
	logging.OrNop(log).Info("subset", zap.Stringer("result", out.Summary()))
	return out, nil
}

// Matched evaluates c on sub and returns the cells of raw whose names
// survive in the filtered sub. raw and sub share a key space; raw need not
// carry the criteria columns.
func Matched(raw, sub *adata.AnnData, c Criteria, log *zap.Logger) (*adata.AnnData, error) {
	kept, err := Obs(sub, c, log)
	if err != nil {
		return nil, err
	}
	names := kept.Obs.Index()
	mask := make([]bool, raw.NObs())
	for i, n := range raw.Obs.Names {
		_, mask[i] = names[n]
	}
	out, err := raw.SubsetObs(mask)
	if err != nil {
		return nil, err
	}
	logging.OrNop(log).Info("matched subset", zap.Stringer("result", out.Summary()))
	return out, nil
}
