// Package cluster assigns cells to communities of the neighbour graph.
package cluster

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"sctools/internal/adata"
)

// DefaultKey is the obs column written by Assign.
const DefaultKey = "louvain"

// ErrNoGraph is returned when the neighbour graph has not been computed.
var ErrNoGraph = errors.New("neighbour graph has not been computed")

// Clusterer labels every node of a neighbour graph.
type Clusterer interface {
	Cluster(ctx context.Context, g *adata.Neighbors, resolution float64) ([]string, error)
}

// Louvain maximises weighted modularity at the given resolution. Every
// call draws its node visiting order from a fresh source seeded with Seed,
// so equal inputs give equal labels.
type Louvain struct {
	Seed uint64
}

// Cluster returns one label per cell. Labels are "0", "1", ... ordered by
// community size, largest first; ties go to the community holding the
// lowest cell index.
func (l Louvain) Cluster(ctx context.Context, g *adata.Neighbors, resolution float64) ([]string, error) {
	if g == nil {
		return nil, ErrNoGraph
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resolution <= 0 {
		return nil, errors.New("cluster: resolution must be > 0")
	}
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < g.N; i++ {
		wg.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		if e.I == e.J {
			continue
		}
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(e.I), simple.Node(e.J), e.W))
	}

	comms := community.Modularize(wg, resolution, rand.NewSource(l.Seed)).Communities()
	groups := make([][]int, 0, len(comms))
	for _, c := range comms {
		ids := make([]int, len(c))
		for k, n := range c {
			ids[k] = int(n.ID())
		}
		sort.Ints(ids)
		groups = append(groups, ids)
	}
	return labelBySize(g.N, groups), nil
}

func labelBySize(n int, groups [][]int) []string {
	sort.Slice(groups, func(a, b int) bool {
		if len(groups[a]) != len(groups[b]) {
			return len(groups[a]) > len(groups[b])
		}
		return groups[a][0] < groups[b][0]
	})
	labels := make([]string, n)
	for k, ids := range groups {
		l := strconv.Itoa(k)
		for _, id := range ids {
			labels[id] = l
		}
	}
	return labels
}

// Assign clusters ad's neighbour graph and writes the labels to the
// categorical obs column key (DefaultKey when empty).
func Assign(ctx context.Context, ad *adata.AnnData, c Clusterer, resolution float64, key string) error {
	if key == "" {
		key = DefaultKey
	}
	labels, err := c.Cluster(ctx, ad.Graph, resolution)
	if err != nil {
		return err
	}
	ad.Uns[key+"_resolution"] = resolution
	return ad.Obs.SetCategorical(key, labels)
}

// Count returns the number of distinct labels.
func Count(labels []string) int {
	seen := make(map[string]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}
