// Package classify propagates labels from clustered cells back to an
// unfiltered matrix.
package classify

import (
	"errors"
	"fmt"

	"sctools/internal/adata"
	"sctools/internal/cluster"
)

// Unknown is the label given to cells no assignment matched.
const Unknown = "unknown"

// Assignment gives Label to cells in any of Clusters.
type Assignment struct {
	Label    string
	Clusters []string
}

// Type labels the cells of raw whose name appears in clustered with one
// of an assignment's cluster values in column clusterKey (cluster.DefaultKey
// when empty). Assignments apply in order, so later ones win. The labels
// are written to raw's obs column col and returned.
func Type(raw, clustered *adata.AnnData, assignments []Assignment, col, clusterKey string) ([]string, error) {
	if clusterKey == "" {
		clusterKey = cluster.DefaultKey
	}
	cc, ok := clustered.Obs.Col(clusterKey)
	if !ok {
		return nil, fmt.Errorf("clustered matrix has no %q column", clusterKey)
	}
	if col == "" {
		return nil, errors.New("classify: empty column name")
	}

	labels := make([]string, raw.NObs())
	for i := range labels {
		labels[i] = Unknown
	}
	rawIdx := raw.Obs.Index()
	for _, a := range assignments {
		want := make(map[string]struct{}, len(a.Clusters))
		for _, c := range a.Clusters {
			want[c] = struct{}{}
		}
		for i, name := range clustered.Obs.Names {
			if _, hit := want[cc.String(i)]; !hit {
				continue
			}
			if j, ok := rawIdx[name]; ok {
				labels[j] = a.Label
			}
		}
	}
	if err := raw.Obs.SetCategorical(col, labels); err != nil {
		return nil, err
	}
	return labels, nil
}
