package scxapp

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctools/internal/adata"
	"sctools/internal/clibase"
	"sctools/internal/cliutil"
	"sctools/internal/ingest"
	"sctools/internal/output"
	"sctools/pkg/api"
)

func (a *app) ingestCmd() *cobra.Command {
	var (
		annotation string
		labels     []string
		keepERCC   bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <counts.csv|tsv[.gz]>...",
		Short: "Create the matrix store from gene × cell count tables",
		Long: "Reads one or more count tables (rows = genes, columns = cells), stacks their cells,\n" +
			"optionally appends annotation columns and drops ERCC spike-ins.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			paths, err := cliutil.ExpandPositionals(args)
			if err != nil {
				return clibase.Usage(err)
			}
			lbls, err := parseLabels(labels)
			if err != nil {
				return clibase.Usage(err)
			}
			if len(lbls) > 0 && annotation == "" {
				return clibase.Usagef("--label needs --annotation")
			}

			parts := make([]*adata.AnnData, 0, len(paths))
			for _, p := range paths {
				t, err := ingest.ReadTable(p)
				if err != nil {
					return clibase.Exit(3, err)
				}
				ad, err := ingest.CreateFromTable(t)
				if err != nil {
					return failed(fmt.Errorf("%s: %w", p, err))
				}
				s.log.Info("ingested", zap.String("table", p), zap.Stringer("matrix", ad.Summary()))
				parts = append(parts, ad)
			}
			ad, err := ingest.Concat(parts...)
			if err != nil {
				return failed(err)
			}
			if annotation != "" {
				anno, err := ingest.ReadTable(annotation)
				if err != nil {
					return clibase.Exit(3, err)
				}
				if err := ingest.AppendAnnotations(ad, anno, lbls); err != nil {
					return failed(err)
				}
			}
			if !keepERCC {
				var n int
				ad, n = ingest.RemoveERCC(ad)
				s.log.Info("removed ERCC genes", zap.Int("filtered", n))
			}
			ad.Uns["source"] = strings.Join(paths, ",")
			if err := s.save(cmd.Context(), "", ad); err != nil {
				return err
			}
			return emit(cmd, a.common, output.SummaryColumns, []api.SummaryV1{output.ToAPISummary(ad)})
		},
	}
	f := cmd.Flags()
	f.StringVar(&annotation, "annotation", "", "annotation table keyed by cell (first column)")
	f.StringArrayVar(&labels, "label", nil, "obs column from an annotation column: name=column or column (repeatable)")
	f.BoolVar(&keepERCC, "keep-ercc", false, "keep ERCC spike-in genes")
	return cmd
}

func parseLabels(in []string) ([]ingest.Label, error) {
	out := make([]ingest.Label, 0, len(in))
	for _, l := range in {
		name, col, ok := strings.Cut(l, "=")
		if !ok {
			col = name
		}
		name, col = strings.TrimSpace(name), strings.TrimSpace(col)
		if name == "" || col == "" {
			return nil, fmt.Errorf("bad label %q: want name=column", l)
		}
		out = append(out, ingest.Label{Name: name, Column: col})
	}
	return out, nil
}

func (a *app) markersCmd() *cobra.Command {
	var listFile string
	cmd := &cobra.Command{
		Use:   "markers [gene]...",
		Short: "Append log10 expression of marker genes as obs columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			genes, err := cliutil.Terms(args, listFile)
			if err != nil {
				return clibase.Exit(3, err)
			}
			if len(genes) == 0 {
				return clibase.Usagef("no marker genes given")
			}
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			missing, err := ingest.AppendMarkers(ad, genes)
			if err != nil {
				return failed(err)
			}
			if len(missing) > 0 {
				s.log.Warn("marker genes not found", zap.Strings("genes", missing))
			}
			if err := s.save(cmd.Context(), "", ad); err != nil {
				return err
			}
			return emit(cmd, a.common, output.SummaryColumns, []api.SummaryV1{output.ToAPISummary(ad)})
		},
	}
	cmd.Flags().StringVar(&listFile, "genes-file", "", "file with one gene symbol per line")
	return cmd
}
