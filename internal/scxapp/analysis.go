package scxapp

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctools/internal/adata"
	"sctools/internal/clibase"
	"sctools/internal/cluster"
	"sctools/internal/output"
	"sctools/internal/preprocess"
	"sctools/internal/reduce"
	"sctools/internal/resscan"
	"sctools/internal/subset"
	"sctools/pkg/api"
)

func (a *app) processCmd() *cobra.Command {
	var (
		p    preprocess.Params
		save string
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Filter cells and genes, log-transform and scale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			an := s.cfg.Analysis
			params := preprocess.Params{MinCounts: an.MinCounts, MinGenes: an.MinGenes, MinDisp: an.MinDisp, MinMean: an.MinMean, MaxMean: an.MaxMean}
			f := cmd.Flags()
			if f.Changed("min-counts") {
				params.MinCounts = p.MinCounts
			}
			if f.Changed("min-genes") {
				params.MinGenes = p.MinGenes
			}
			if f.Changed("min-disp") {
				params.MinDisp = p.MinDisp
			}
			if f.Changed("min-mean") {
				params.MinMean = p.MinMean
			}
			if f.Changed("max-mean") {
				params.MaxMean = p.MaxMean
			}
			if params.MinMean >= params.MaxMean {
				return clibase.Usagef("--min-mean must be below --max-mean")
			}

			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			out, rep, err := preprocess.Process(ad, params)
			if err != nil {
				return failed(err)
			}
			s.log.Info("processed",
				zap.Float64("min_counts", params.MinCounts),
				zap.Int("min_genes", params.MinGenes),
				zap.Float64("min_disp", params.MinDisp),
				zap.Float64("min_mean", params.MinMean),
				zap.Float64("max_mean", params.MaxMean),
				zap.Int("filtered_cells", rep.FilteredCells()),
				zap.Int("filtered_genes", rep.FilteredGenes()))
			if err := s.save(cmd.Context(), save, out); err != nil {
				return err
			}
			return emit(cmd, a.common, output.SummaryColumns, []api.SummaryV1{output.ToAPISummary(out)})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&p.MinCounts, "min-counts", 0, "minimum counts per cell [config]")
	f.IntVar(&p.MinGenes, "min-genes", 0, "minimum expressed genes per cell [config]")
	f.Float64Var(&p.MinDisp, "min-disp", 0, "minimum normalised dispersion [config]")
	f.Float64Var(&p.MinMean, "min-mean", 0, "minimum mean expression [config]")
	f.Float64Var(&p.MaxMean, "max-mean", 0, "maximum mean expression [config]")
	f.StringVar(&save, "save", "", "write the processed matrix here instead of the input store")
	return cmd
}

func (a *app) pcaCmd() *cobra.Command {
	var nComps, nPCs, neighbors int
	cmd := &cobra.Command{
		Use:   "pca",
		Short: "Compute principal components and the neighbour graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			f := cmd.Flags()
			if !f.Changed("n-pcs") {
				nPCs = s.cfg.Analysis.NPCs
			}
			if !f.Changed("neighbors") {
				neighbors = s.cfg.Analysis.Neighbors
			}
			if nPCs < 1 || neighbors < 2 {
				return clibase.Usagef("--n-pcs must be ≥ 1 and --neighbors ≥ 2")
			}

			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			if err := reduce.PCA(ad, nComps); err != nil {
				return failed(err)
			}
			if err := reduce.Neighbors(ad, nPCs, neighbors); err != nil {
				return failed(err)
			}
			s.log.Info("neighbour graph",
				zap.Int("n_pcs", ad.Graph.NPCs),
				zap.Int("neighbors", ad.Graph.K),
				zap.Int("edges", len(ad.Graph.Edges)))
			if err := s.save(cmd.Context(), "", ad); err != nil {
				return err
			}
			return emit(cmd, a.common, output.SummaryColumns, []api.SummaryV1{output.ToAPISummary(ad)})
		},
	}
	f := cmd.Flags()
	f.IntVar(&nComps, "n-comps", 50, "principal components to compute")
	f.IntVar(&nPCs, "n-pcs", 0, "components used for the neighbour graph [config]")
	f.IntVar(&neighbors, "neighbors", 0, "neighbourhood size, counting the cell itself [config]")
	return cmd
}

func (a *app) clusterCmd() *cobra.Command {
	var (
		resolution float64
		key        string
		seed       uint64
	)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Assign Louvain clusters at one resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			if !cmd.Flags().Changed("resolution") {
				resolution = s.cfg.Analysis.Resolution
			}
			if !cmd.Flags().Changed("seed") {
				seed = s.cfg.Analysis.Seed
			}
			if resolution <= 0 {
				return clibase.Usagef("--resolution must be > 0")
			}

			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			if err := cluster.Assign(cmd.Context(), ad, a.clusterer(seed), resolution, key); err != nil {
				return failed(err)
			}
			col, _ := ad.Obs.Col(key)
			s.log.Info("clustered", zap.Float64("resolution", resolution), zap.Int("clusters", len(col.Categories)))
			if err := s.save(cmd.Context(), "", ad); err != nil {
				return err
			}
			return emit(cmd, a.common, output.LabelCountColumns, output.ToAPILabelCounts(col))
		},
	}
	f := cmd.Flags()
	f.Float64Var(&resolution, "resolution", 0, "community detection resolution [config]")
	f.StringVar(&key, "key", cluster.DefaultKey, "obs column for the cluster labels")
	f.Uint64Var(&seed, "seed", 0, "Louvain random seed [config louvain_seed]")
	return cmd
}

func (a *app) scanCmd() *cobra.Command {
	var (
		step       float64
		workers    int
		seed       uint64
		continuous string
	)
	cmd := &cobra.Command{
		Use:   "scan-res",
		Short: "Score cluster agreement between adjacent resolutions",
		Long: "Clusters at step, 2·step, … below 1.0 and reports, for each resolution, how well the\n" +
			"previous clustering predicts it. Use the curve to pick --resolution for cluster.\n" +
			"--continuous adds the held-out R² of a numeric obs column explained by each clustering.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			f := cmd.Flags()
			if !f.Changed("step") {
				step = s.cfg.Analysis.ScanStep
			}
			if !f.Changed("workers") {
				workers = s.cfg.Analysis.Workers
			}
			if !f.Changed("seed") {
				seed = s.cfg.Analysis.Seed
			}
			if _, err := resscan.Resolutions(step); err != nil {
				return clibase.Usage(err)
			}

			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			opt := resscan.Options{Workers: workers, Log: s.log}
			cols := output.ScanColumns
			if continuous != "" {
				if opt.Continuous, err = numericObs(ad, continuous); err != nil {
					return failed(err)
				}
				cols = output.ScanR2Columns
			}
			if ad.Graph == nil {
				return failed(cluster.ErrNoGraph)
			}
			pts, err := resscan.Scan(cmd.Context(), ad.Graph, a.clusterer(seed), step, opt)
			if err != nil {
				return failed(err)
			}
			return emit(cmd, a.common, cols, output.ToAPIScan(pts))
		},
	}
	f := cmd.Flags()
	f.Float64Var(&step, "step", 0, "resolution step [config]")
	f.IntVarP(&workers, "workers", "j", 0, "concurrent clusterings, 0 = GOMAXPROCS [config]")
	f.Uint64Var(&seed, "seed", 0, "Louvain random seed [config louvain_seed]")
	f.StringVar(&continuous, "continuous", "", "numeric obs column to score each clustering against")
	return cmd
}

func numericObs(ad *adata.AnnData, name string) ([]float64, error) {
	col, ok := ad.Obs.Col(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", subset.ErrUnknownKey, name)
	}
	if !col.IsNumeric() {
		return nil, fmt.Errorf("obs column %s is not numeric", name)
	}
	return col.Num, nil
}
