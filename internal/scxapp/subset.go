package scxapp

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctools/internal/adata"
	"sctools/internal/classify"
	"sctools/internal/clibase"
	"sctools/internal/cluster"
	"sctools/internal/output"
	"sctools/internal/subset"
	"sctools/pkg/api"
)

func (a *app) subsetCmd() *cobra.Command {
	var (
		where []string
		raw   string
		save  string
	)
	cmd := &cobra.Command{
		Use:   "subset",
		Short: "Keep the cells matching obs criteria",
		Long: "Each --where key=v1,v2 keeps cells whose key column is one of the values; several\n" +
			"--where flags must all match. With --raw, the criteria are evaluated on the store and\n" +
			"the cells with the surviving names are taken from the raw store instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := subset.Parse(where)
			if err != nil {
				return clibase.Usage(err)
			}
			if len(c) == 0 {
				return clibase.Usagef("no --where criteria given")
			}
			if save == "" {
				return clibase.Usagef("--save is required")
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
			var out *adata.AnnData
			if raw != "" {
				r, err := s.load(cmd.Context(), raw)
				if err != nil {
					return err
				}
				out, err = subset.Matched(r, ad, c, s.log)
				if err != nil {
					return failed(err)
				}
			} else {
				out, err = subset.Obs(ad, c, s.log)
				if err != nil {
					return failed(err)
				}
			}
			out.Uns["subset"] = c.Label()
			if err := s.save(cmd.Context(), save, out); err != nil {
				return err
			}
			return emit(cmd, a.common, output.SummaryColumns, []api.SummaryV1{output.ToAPISummary(out)})
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&where, "where", "w", nil, "criterion key=v1,v2 (repeatable)")
	f.StringVar(&raw, "raw", "", "take the matching cells from this store")
	f.StringVar(&save, "save", "", "store for the subset (required)")
	return cmd
}

func (a *app) classifyCmd() *cobra.Command {
	var (
		clustered  string
		assign     []string
		column     string
		clusterKey string
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Label cells by the clusters they fell into",
		Long: "Reads cluster labels from --clustered and writes a categorical obs column to the\n" +
			"store. Each --assign Label=c1,c2 labels the cells of those clusters; later\n" +
			"assignments win, unassigned cells are \"unknown\".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := parseAssignments(assign)
			if err != nil {
				return clibase.Usage(err)
			}
			if clustered == "" {
				return clibase.Usagef("--clustered is required")
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
			cl, err := s.load(cmd.Context(), clustered)
			if err != nil {
				return err
			}
			labels, err := classify.Type(ad, cl, list, column, clusterKey)
			if err != nil {
				return failed(err)
			}
			s.log.Info("classified", zap.String("column", column), zap.Int("unknown", countOf(labels, classify.Unknown)))
			if err := s.save(cmd.Context(), "", ad); err != nil {
				return err
			}
			col, _ := ad.Obs.Col(column)
			return emit(cmd, a.common, output.LabelCountColumns, output.ToAPILabelCounts(col))
		},
	}
	f := cmd.Flags()
	f.StringVar(&clustered, "clustered", "", "store carrying the cluster labels (required)")
	f.StringArrayVarP(&assign, "assign", "a", nil, "Label=c1,c2 (repeatable)")
	f.StringVar(&column, "column", "cell_type", "obs column to write")
	f.StringVar(&clusterKey, "cluster-key", cluster.DefaultKey, "cluster column in --clustered")
	return cmd
}

func parseAssignments(in []string) ([]classify.Assignment, error) {
	out := make([]classify.Assignment, 0, len(in))
	for _, s := range in {
		label, list, ok := strings.Cut(s, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("bad assignment %q: want Label=c1,c2", s)
		}
		var clusters []string
		for _, c := range strings.Split(list, ",") {
			if c = strings.TrimSpace(c); c != "" {
				clusters = append(clusters, c)
			}
		}
		out = append(out, classify.Assignment{Label: label, Clusters: clusters})
	}
	return out, nil
}

func countOf(vals []string, v string) int {
	n := 0
	for _, s := range vals {
		if s == v {
			n++
		}
	}
	return n
}
