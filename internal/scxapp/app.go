// Package scxapp is the scx command: single-cell expression analysis steps
// over a matrix store, one subcommand per step.
package scxapp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctools/internal/adata"
	"sctools/internal/clibase"
	"sctools/internal/cluster"
	"sctools/internal/config"
	"sctools/internal/execrun"
	"sctools/internal/logging"
	"sctools/internal/output"
	"sctools/internal/store"
	"sctools/internal/version"
	"sctools/internal/writers"
)

// Deps replaces collaborators in tests. Zero fields use the real ones.
type Deps struct {
	Runner    execrun.Runner    // object-storage uploads
	Clusterer cluster.Clusterer // community detection
}

type app struct {
	common clibase.Common
	store  string
	deps   Deps
	stderr io.Writer
}

// RunContext is the entry point used by cmd/scx.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	return RunWith(ctx, argv, stdout, stderr, Deps{})
}

// Run is RunContext with a background context.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

// RunWith runs scx with explicit collaborators.
func RunWith(ctx context.Context, argv []string, stdout, stderr io.Writer, d Deps) int {
	a := &app{deps: d, stderr: stderr}
	return clibase.Execute(ctx, a.rootCmd(), argv, stdout, stderr)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "scx <command> [flags]",
		Short:   "Single-cell expression analysis helpers",
		Long:    clibase.Banner("scx", "single-cell expression analysis helpers"),
		Version: version.Version,
		Example: clibase.Examples(
			"scx ingest counts/*.csv.gz --annotation anno.csv --label plate=plate_id",
			"scx process && scx pca && scx scan-res --step 0.1",
			"scx cluster --resolution 0.4",
			"scx subset --where louvain=0,3 --save mel.db",
			"scx rank -s mel.db --push --where louvain=0,3 --s3-dir bucket/ranks",
		),
		Args: cobra.NoArgs,
	}
	pf := root.PersistentFlags()
	clibase.Register(pf, &a.common)
	pf.StringVarP(&a.store, "store", "s", "", "matrix store file [config analysis.store]")

	root.AddCommand(
		a.ingestCmd(),
		a.markersCmd(),
		a.processCmd(),
		a.pcaCmd(),
		a.clusterCmd(),
		a.scanCmd(),
		a.subsetCmd(),
		a.classifyCmd(),
		a.rankCmd(),
		a.pcContribCmd(),
		a.lookupCmd(),
		a.summaryCmd(),
	)
	return root
}

// session is what every step needs once flags are parsed.
type session struct {
	cfg *config.Config
	log *zap.Logger
}

func (a *app) session(cmd *cobra.Command) (*session, error) {
	cfg, err := a.common.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("store") {
		cfg.Analysis.Store = a.store
	}
	if err := cfg.Analysis.Validate(); err != nil {
		return nil, clibase.Exit(3, fmt.Errorf("config: %w", err))
	}
	log, err := logging.New(a.stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, clibase.Usage(err)
	}
	return &session{cfg: cfg, log: log}, nil
}

func (s *session) close() { _ = s.log.Sync() }

func (s *session) load(ctx context.Context, path string) (*adata.AnnData, error) {
	if path == "" {
		path = s.cfg.Analysis.Store
	}
	ad, err := store.Load(ctx, path)
	if err != nil {
		return nil, clibase.Exit(3, err)
	}
	s.log.Debug("loaded", zap.String("store", path), zap.Stringer("matrix", ad.Summary()))
	return ad, nil
}

func (s *session) save(ctx context.Context, path string, ad *adata.AnnData) error {
	if path == "" {
		path = s.cfg.Analysis.Store
	}
	if err := store.Save(ctx, path, ad); err != nil {
		return clibase.Exit(3, err)
	}
	s.log.Info("saved", zap.String("store", path), zap.Stringer("matrix", ad.Summary()))
	return nil
}

func emit[T any](cmd *cobra.Command, c clibase.Common, cols output.Columns[T], rows []T) error {
	if err := writers.WriteAll(cmd.OutOrStdout(), c.Output, c.Header(), cols, rows); err != nil {
		return clibase.Exit(3, err)
	}
	return nil
}

// failed maps an analysis error to exit status 1, keeping cancellation.
func failed(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return clibase.Exit(1, err)
}

func (a *app) clusterer(seed uint64) cluster.Clusterer {
	if a.deps.Clusterer != nil {
		return a.deps.Clusterer
	}
	return cluster.Louvain{Seed: seed}
}

func (a *app) runner(log *zap.Logger) execrun.Runner {
	if a.deps.Runner != nil {
		return a.deps.Runner
	}
	return execrun.ExecRunner{Log: log, Stdout: a.stderr}
}
