package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"sctools/internal/adata"
	"sctools/internal/common"
)

// Column names written by this package.
const (
	GeneSymbolsColumn = "gene_symbols"
	CountIdxColumn    = "count_idx"
)

var (
	// ErrUnknownGene is returned when a gene symbol is not in the matrix.
	ErrUnknownGene = errors.New("unknown gene")
	// ErrUnknownColumn is returned when an annotation column is missing.
	ErrUnknownColumn = errors.New("unknown annotation column")
	// ErrRowCount is returned when an annotation table cannot be aligned.
	ErrRowCount = errors.New("annotation rows do not match cells")
)

// CreateFromTable builds a matrix from a raw table whose rows are genes
// and whose columns are cells. The result is cells × genes; repeated gene
// symbols are made unique and the originals kept in var["gene_symbols"].
func CreateFromTable(t *Table) (*adata.AnnData, error) {
	if len(t.Header) < 1 {
		return nil, ErrEmptyTable
	}
	cells := append([]string(nil), t.Header[1:]...)
	genes := t.Keys()
	var x *mat.Dense
	if len(cells) > 0 && len(genes) > 0 {
		x = mat.NewDense(len(cells), len(genes), nil)
		for g, row := range t.Rows {
			if len(row) != len(t.Header) {
				return nil, fmt.Errorf("row %d (%s): %d fields, want %d", g+2, row[0], len(row), len(t.Header))
			}
			for c, s := range row[1:] {
				v, err := parseCount(s)
				if err != nil {
					return nil, fmt.Errorf("row %d (%s), column %s: %w", g+2, row[0], cells[c], err)
				}
				x.Set(c, g, v)
			}
		}
	}
	ad, err := adata.New(x, cells, common.MakeUnique(genes))
	if err != nil {
		return nil, err
	}
	if err := ad.Var.SetStrings(GeneSymbolsColumn, genes); err != nil {
		return nil, err
	}
	return ad, nil
}

func parseCount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Label maps an obs column name to an annotation table column.
type Label struct {
	Name   string
	Column string
}

// AppendAnnotations copies annotation columns onto ad.Obs in place and adds
// count_idx. Rows are aligned by key when the annotation's first column
// holds every cell identifier, otherwise by position (which requires equal
// row counts). Columns whose values all parse as numbers become numeric;
// others become categorical.
func AppendAnnotations(ad *adata.AnnData, anno *Table, labels []Label) error {
	rows, err := alignRows(ad, anno)
	if err != nil {
		return err
	}
	for _, l := range labels {
		j, ok := anno.Column(l.Column)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, l.Column)
		}
		vals := make([]string, len(rows))
		for i, r := range rows {
			if j < len(anno.Rows[r]) {
				vals[i] = anno.Rows[r][j]
			}
		}
		if nums, ok := allNumeric(vals); ok {
			err = ad.Obs.SetNumeric(l.Name, nums)
		} else {
			err = ad.Obs.SetCategorical(l.Name, vals)
		}
		if err != nil {
			return err
		}
	}
	idx := make([]float64, ad.NObs())
	for i := range idx {
		idx[i] = float64(i)
	}
	return ad.Obs.SetNumeric(CountIdxColumn, idx)
}

func alignRows(ad *adata.AnnData, anno *Table) ([]int, error) {
	n := ad.NObs()
	rows := make([]int, n)
	keys := common.IndexOf(anno.Keys())
	byKey := n > 0
	for i, name := range ad.Obs.Names {
		r, ok := keys[name]
		if !ok {
			byKey = false
			break
		}
		rows[i] = r
	}
	if byKey {
		return rows, nil
	}
	if len(anno.Rows) != n {
		return nil, fmt.Errorf("%w: %d annotation rows, %d cells", ErrRowCount, len(anno.Rows), n)
	}
	for i := range rows {
		rows[i] = i
	}
	return rows, nil
}

func allNumeric(vals []string) ([]float64, bool) {
	out := make([]float64, len(vals))
	for i, s := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, len(vals) > 0
}

// RemoveERCC drops spike-in genes whose symbol contains "ERCC" and returns
// the filtered copy with the number of genes removed.
func RemoveERCC(ad *adata.AnnData) (*adata.AnnData, int) {
	keep := make([]int, 0, ad.NVars())
	for j, g := range ad.Var.Names {
		if !strings.Contains(g, "ERCC") {
			keep = append(keep, j)
		}
	}
	return ad.TakeVar(keep), ad.NVars() - len(keep)
}

// GeneExpression returns log10 of a gene's values per cell. Infinite
// results (zero expression) become 0.
func GeneExpression(ad *adata.AnnData, gene string) ([]float64, error) {
	j, ok := ad.VarIndex(gene)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGene, gene)
	}
	vals := ad.GeneValues(j)
	for i, v := range vals {
		l := math.Log10(v)
		if math.IsInf(l, 0) {
			l = 0
		}
		vals[i] = l
	}
	return vals, nil
}

// AppendMarkers adds one obs column of log10 expression per gene, in place.
// It returns the genes that are not in the matrix.
func AppendMarkers(ad *adata.AnnData, genes []string) ([]string, error) {
	var missing []string
	for _, g := range genes {
		vals, err := GeneExpression(ad, g)
		if errors.Is(err, ErrUnknownGene) {
			missing = append(missing, g)
			continue
		}
		if err != nil {
			return missing, err
		}
		if err := ad.Obs.SetNumeric(g, vals); err != nil {
			return missing, err
		}
	}
	return missing, nil
}

// ErrGeneMismatch is returned when tables to concatenate list different genes.
var ErrGeneMismatch = errors.New("tables list different genes")

// Concat stacks the cells of freshly ingested matrices that share one gene
// list, such as per-plate count tables. Var metadata comes from the first
// matrix; obs columns are not carried over.
func Concat(ads ...*adata.AnnData) (*adata.AnnData, error) {
	switch len(ads) {
	case 0:
		return nil, ErrEmptyTable
	case 1:
		return ads[0], nil
	}
	first := ads[0]
	var cells []string
	for k, ad := range ads {
		if k > 0 && !equalStrings(ad.Var.Names, first.Var.Names) {
			return nil, fmt.Errorf("%w: table %d", ErrGeneMismatch, k+1)
		}
		cells = append(cells, ad.Obs.Names...)
	}
	var x *mat.Dense
	if len(cells) > 0 && first.NVars() > 0 {
		x = mat.NewDense(len(cells), first.NVars(), nil)
		row := 0
		for _, ad := range ads {
			for i := 0; i < ad.NObs(); i++ {
				x.SetRow(row, ad.X.RawRowView(i))
				row++
			}
		}
	}
	out, err := adata.New(x, cells, first.Var.Names)
	if err != nil {
		return nil, err
	}
	out.Var = first.Var.Copy()
	return out, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
