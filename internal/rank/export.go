package rank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"sctools/internal/logging"
	"sctools/internal/objstore"
	"sctools/internal/output"
	"sctools/internal/subset"
	"sctools/internal/writers"
	"sctools/pkg/api"
)

// Table is the names table: one column per group, one row per rank.
type Table struct {
	Groups []string
	Rows   [][]string
}

// NamesTable lays the ranked gene names out by rank. Groups with fewer
// genes leave trailing cells empty.
func (r *Result) NamesTable() *Table {
	t := &Table{}
	depth := 0
	for _, g := range r.Groups {
		t.Groups = append(t.Groups, g.Name)
		depth = max(depth, len(g.Genes))
	}
	for k := 0; k < depth; k++ {
		row := make([]string, len(r.Groups))
		for c, g := range r.Groups {
			if k < len(g.Genes) {
				row[c] = g.Genes[k]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Groups: t.Groups, Rows: t.Rows[:n]}
}

// Rows flattens the result to one record per group and rank.
func (r *Result) Rows() []api.RankRowV1 {
	var out []api.RankRowV1
	for _, g := range r.Groups {
		for k, gene := range g.Genes {
			out = append(out, api.RankRowV1{
				Group:         g.Name,
				Rank:          k,
				Gene:          gene,
				Score:         g.Scores[k],
				LogFoldChange: g.LogFoldChanges[k],
				PValue:        g.PValues[k],
				PValueAdj:     g.PValuesAdj[k],
			})
		}
	}
	return out
}

// indexed rows carry the rank as a leading index column.
func (t *Table) indexed() ([]string, [][]string) {
	header := append([]string{""}, t.Groups...)
	rows := make([][]string, len(t.Rows))
	for k, r := range t.Rows {
		rows[k] = append([]string{strconv.Itoa(k)}, r...)
	}
	return header, rows
}

// WriteCSV writes the table with a leading rank index column.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	header, rows := t.indexed()
	cols := output.Columns[[]string]{Names: header, Cells: func(r []string) []string { return r }}
	if err := writers.WriteAll(f, output.FormatCSV, true, cols, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FileName is the export name for a table computed on cells matching c.
func FileName(c subset.Criteria) string {
	return "GeneRank_" + c.Label() + ".csv"
}

// Pusher uploads exported rank tables.
type Pusher struct {
	Storage objstore.Copier
	Region  string
	Log     *zap.Logger
}

// Push writes t to wkdir, copies it to s3://<s3dir>/, removes the local
// copy and returns the public download link. A failed upload keeps the
// local file and reports the exit status.
func (p *Pusher) Push(ctx context.Context, t *Table, c subset.Criteria, wkdir, s3dir string) (string, error) {
	log := logging.OrNop(p.Log)
	name := FileName(c)
	local := filepath.Join(wkdir, name)
	if err := t.WriteCSV(local); err != nil {
		return "", fmt.Errorf("write %s: %w", local, err)
	}
	res := p.Storage.Copy(ctx, local, objstore.DirURL(s3dir))
	if !res.OK() {
		if res.Err != nil {
			return "", fmt.Errorf("upload %s: %w", name, res.Err)
		}
		return "", fmt.Errorf("upload %s: exit status %d: %s", name, res.ExitCode, res.StderrTail)
	}
	if err := os.Remove(local); err != nil {
		log.Warn("could not remove local copy", zap.String("path", local), zap.Error(err))
	}
	link := objstore.DownloadLink(p.Region, s3dir, name)
	log.Info("pushed rank table", zap.String("file", name), zap.String("link", link))
	return link, nil
}
