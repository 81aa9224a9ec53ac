package scxapp

import (
	"github.com/spf13/cobra"

	"sctools/internal/clibase"
	"sctools/internal/cliutil"
	"sctools/internal/output"
	"sctools/internal/reduce"
	"sctools/internal/uniprot"
	"sctools/pkg/api"
)

func (a *app) pcContribCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pc-contrib <gene>...",
		Short: "Show each gene's loading relative to the top loading of every component",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			var rows []api.PCContributionV1
			for _, g := range args {
				c, err := reduce.PCContribution(ad, g)
				if err != nil {
					return failed(err)
				}
				rows = append(rows, output.ToAPIPCContribution(g, c)...)
			}
			return emit(cmd, a.common, output.PCContributionColumns, rows)
		},
	}
}

func (a *app) lookupCmd() *cobra.Command {
	var (
		listFile string
		workers  int
		baseURL  string
	)
	cmd := &cobra.Command{
		Use:   "lookup [gene]...",
		Short: "Fetch UniProt function annotations for human gene symbols",
		Long:  "Genes that cannot be looked up are reported with NA fields.",
		RunE: func(cmd *cobra.Command, args []string) error {
			genes, err := cliutil.Terms(args, listFile)
			if err != nil {
				return clibase.Exit(3, err)
			}
			if len(genes) == 0 {
				return clibase.Usagef("no genes given")
			}
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			if baseURL == "" {
				baseURL = s.cfg.Analysis.UniProtURL
			}
			if !cmd.Flags().Changed("workers") {
				workers = min(s.cfg.Analysis.Workers, 4)
				if workers <= 0 {
					workers = 4
				}
			}

			c := uniprot.New(baseURL, len(genes), s.log)
			list, err := c.LookupAll(cmd.Context(), genes, workers)
			if err != nil {
				return failed(err)
			}
			return emit(cmd, a.common, output.LookupColumns, output.ToAPILookups(list))
		},
	}
	f := cmd.Flags()
	f.StringVar(&listFile, "genes-file", "", "file with one gene symbol per line")
	f.IntVarP(&workers, "workers", "j", 4, "concurrent requests")
	f.StringVar(&baseURL, "uniprot-url", "", "search endpoint [config]")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Describe the matrix store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			return emit(cmd, a.common, output.SummaryColumns, []api.SummaryV1{output.ToAPISummary(ad)})
		},
	}
}
