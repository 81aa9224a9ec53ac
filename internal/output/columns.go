package output

import (
	"strconv"
	"strings"

	"sctools/pkg/api"
)

// Float renders v in the shortest form that round-trips.
func Float(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

var StageColumns = Columns[api.StageV1]{
	Names: []string{"seq", "stage", "status", "exit_code", "elapsed_s", "reason"},
	Cells: func(s api.StageV1) []string {
		return []string{strconv.Itoa(s.Seq), s.Stage, s.Status, strconv.Itoa(s.ExitCode), Float(s.ElapsedSeconds), s.Reason}
	},
}

var RunColumns = Columns[api.RunV1]{
	Names: []string{"id", "input", "started_at", "finished_at", "ok"},
	Cells: func(r api.RunV1) []string {
		return []string{r.ID, r.Input, r.StartedAt, r.FinishedAt, strconv.FormatBool(r.OK)}
	},
}

var RankColumns = Columns[api.RankRowV1]{
	Names: []string{"group", "rank", "gene", "score", "logfoldchange", "pval", "pval_adj"},
	Cells: func(r api.RankRowV1) []string {
		return []string{r.Group, strconv.Itoa(r.Rank), r.Gene, Float(r.Score), Float(r.LogFoldChange), Float(r.PValue), Float(r.PValueAdj)}
	},
}

var ScanColumns = Columns[api.ScanPointV1]{
	Names: []string{"resolution", "score", "clusters"},
	Cells: func(p api.ScanPointV1) []string {
		return []string{Float(p.Resolution), Float(p.Score), strconv.Itoa(p.Clusters)}
	},
}

// ScanR2Columns adds the explained variance of a continuous obs column.
var ScanR2Columns = Columns[api.ScanPointV1]{
	Names: []string{"resolution", "score", "clusters", "r2"},
	Cells: func(p api.ScanPointV1) []string {
		r2 := ""
		if p.R2 != nil {
			r2 = Float(*p.R2)
		}
		return append(ScanColumns.Cells(p), r2)
	},
}

var PCContributionColumns = Columns[api.PCContributionV1]{
	Names: []string{"gene", "pc", "contribution"},
	Cells: func(p api.PCContributionV1) []string {
		return []string{p.Gene, strconv.Itoa(p.PC), Float(p.Contribution)}
	},
}

var LookupColumns = Columns[api.LookupV1]{
	Names: []string{"gene", "function", "go_molecular_function"},
	Cells: func(l api.LookupV1) []string {
		return []string{l.Gene, l.Function, l.GOMolecularFunction}
	},
}

var SummaryColumns = Columns[api.SummaryV1]{
	Names: []string{"cells", "genes", "obs_columns", "obsm_keys", "has_graph"},
	Cells: func(s api.SummaryV1) []string {
		return []string{strconv.Itoa(s.Cells), strconv.Itoa(s.Genes), strings.Join(s.ObsColumns, ","), strings.Join(s.ObsmKeys, ","), strconv.FormatBool(s.HasGraph)}
	},
}

var LabelCountColumns = Columns[api.LabelCountV1]{
	Names: []string{"column", "label", "cells"},
	Cells: func(l api.LabelCountV1) []string {
		return []string{l.Column, l.Label, strconv.Itoa(l.Cells)}
	},
}
