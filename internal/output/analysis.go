package output

import (
	"sctools/internal/adata"
	"sctools/internal/common"
	"sctools/internal/resscan"
	"sctools/internal/uniprot"
	"sctools/pkg/api"
)

// ToAPISummary describes ad.
func ToAPISummary(ad *adata.AnnData) api.SummaryV1 {
	return api.SummaryV1{
		Cells:      ad.NObs(),
		Genes:      ad.NVars(),
		ObsColumns: ad.Obs.Columns(),
		ObsmKeys:   ad.ObsmKeys(),
		HasGraph:   ad.Graph != nil,
	}
}

// ToAPILabelCounts counts the cells per value of obs column col, in label
// order.
func ToAPILabelCounts(col *adata.Column) []api.LabelCountV1 {
	vals := col.Strings()
	counts := make(map[string]int)
	for _, v := range vals {
		counts[v]++
	}
	out := make([]api.LabelCountV1, 0, len(counts))
	for _, l := range common.Levels(vals) {
		out = append(out, api.LabelCountV1{Column: col.Name, Label: l, Cells: counts[l]})
	}
	return out
}

// ToAPIScan converts a resolution scan curve.
func ToAPIScan(pts []resscan.Point) []api.ScanPointV1 {
	out := make([]api.ScanPointV1, 0, len(pts))
	for _, p := range pts {
		out = append(out, api.ScanPointV1{Resolution: p.Resolution, Score: p.Score, Clusters: p.Clusters, R2: p.R2})
	}
	return out
}

// ToAPIPCContribution numbers components from 1.
func ToAPIPCContribution(gene string, contrib []float64) []api.PCContributionV1 {
	out := make([]api.PCContributionV1, 0, len(contrib))
	for i, c := range contrib {
		out = append(out, api.PCContributionV1{Gene: gene, PC: i + 1, Contribution: c})
	}
	return out
}

// ToAPILookups converts protein annotations.
func ToAPILookups(list []uniprot.Annotation) []api.LookupV1 {
	out := make([]api.LookupV1, 0, len(list))
	for _, a := range list {
		out = append(out, api.LookupV1{Gene: a.Gene, Function: a.Function, GOMolecularFunction: a.GOMolecularFunction})
	}
	return out
}
