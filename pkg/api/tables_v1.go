// pkg/api/tables_v1.go
package api

// StageV1 is the stable schema for one pipeline stage outcome.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
type StageV1 struct {
	RunID          string  `json:"run_id,omitempty"`
	Seq            int     `json:"seq"`
	Stage          string  `json:"stage"`
	Status         string  `json:"status"` // "succeeded" | "failed" | "skipped"
	ExitCode       int     `json:"exit_code"`
	Reason         string  `json:"reason,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_s"`
}

// RunV1 is one recorded pipeline run.
type RunV1 struct {
	ID         string `json:"id"`
	Input      string `json:"input"`
	StartedAt  string `json:"started_at"`            // RFC 3339
	FinishedAt string `json:"finished_at,omitempty"` // empty while running
	OK         bool   `json:"ok"`
}

// RankRowV1 is one ranked gene of one group.
type RankRowV1 struct {
	Group         string  `json:"group"`
	Rank          int     `json:"rank"` // 0-based
	Gene          string  `json:"gene"`
	Score         float64 `json:"score"`
	LogFoldChange float64 `json:"logfoldchange"`
	PValue        float64 `json:"pval"`
	PValueAdj     float64 `json:"pval_adj"`
}

// ScanPointV1 is the agreement between clusterings at the previous and
// this resolution.
type ScanPointV1 struct {
	Resolution float64  `json:"resolution"`
	Score      float64  `json:"score"`
	Clusters   int      `json:"clusters"`
	R2         *float64 `json:"r2,omitempty"`
}

// PCContributionV1 is a gene's relative loading on one principal component.
type PCContributionV1 struct {
	Gene         string  `json:"gene"`
	PC           int     `json:"pc"` // 1-based
	Contribution float64 `json:"contribution"`
}

// LookupV1 is a protein annotation for a gene symbol; "NA" marks missing data.
type LookupV1 struct {
	Gene                string `json:"gene"`
	Function            string `json:"function"`
	GOMolecularFunction string `json:"go_molecular_function"`
}

// SummaryV1 describes an annotated matrix.
type SummaryV1 struct {
	Cells      int      `json:"cells"`
	Genes      int      `json:"genes"`
	ObsColumns []string `json:"obs_columns,omitempty"`
	ObsmKeys   []string `json:"obsm_keys,omitempty"`
	HasGraph   bool     `json:"has_graph"`
}

// LabelCountV1 is the number of cells carrying one label.
type LabelCountV1 struct {
	Column string `json:"column"`
	Label  string `json:"label"`
	Cells  int    `json:"cells"`
}
