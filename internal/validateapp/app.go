// Package validateapp is the outrigger-validate command: download one
// aligned sample, build and validate its splice-event index, and upload the
// validated event tables.
package validateapp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sctools/internal/clibase"
	"sctools/internal/config"
	"sctools/internal/execrun"
	"sctools/internal/history"
	"sctools/internal/logging"
	"sctools/internal/objstore"
	"sctools/internal/outrigger"
	"sctools/internal/output"
	"sctools/internal/pipeline"
	"sctools/internal/stagelog"
	"sctools/internal/version"
	"sctools/internal/writers"
)

type options struct {
	common    clibase.Common
	workdir   string
	dest      string
	historyDB string
	subtypes  []string
	preflight bool
}

type app struct {
	opts   options
	runner execrun.Runner // nil means real processes
	stderr io.Writer
}

// RunContext is the entry point used by cmd/outrigger-validate.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	return RunWith(ctx, argv, stdout, stderr, nil)
}

// Run is RunContext with a background context.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

// RunWith runs the command with an explicit process runner (tests pass a
// recorder instead of spawning aws/outrigger).
func RunWith(ctx context.Context, argv []string, stdout, stderr io.Writer, r execrun.Runner) int {
	a := &app{runner: r, stderr: stderr}
	return clibase.Execute(ctx, a.rootCmd(), argv, stdout, stderr)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "outrigger-validate [flags] <s3-path>",
		Short:   "Index and validate alternative splicing events for one sample",
		Long:    clibase.Banner("outrigger-validate", "splice-event validation pipeline"),
		Version: version.Version,
		Example: clibase.Examples(
			"outrigger-validate s3://bucket/runs/SAMPLE_PLATE01_L001.homo.SJ.out.tab",
			"outrigger-validate --config sctools.yaml --preflight -o json s3://bucket/A_P1.tab",
			"outrigger-validate history --limit 5",
		),
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return clibase.Usagef("expected exactly one object-storage path, got %d", len(args))
			}
			return nil
		},
		RunE: a.runPipeline,
	}
	pf := root.PersistentFlags()
	clibase.Register(pf, &a.opts.common)
	pf.StringVar(&a.opts.historyDB, "history-db", "", "SQLite run history file [config]")

	f := root.Flags()
	f.StringVarP(&a.opts.workdir, "workdir", "w", "", "working directory [config]")
	f.StringVar(&a.opts.dest, "dest", "", "upload destination s3://bucket/prefix [config]")
	f.StringSliceVar(&a.opts.subtypes, "subtypes", nil, "event subtypes to upload [config]")
	f.BoolVar(&a.opts.preflight, "preflight", false, "check the GTF and genome FASTA before indexing")

	root.AddCommand(a.historyCmd())
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := a.opts.common.LoadConfig()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("workdir") {
		cfg.Workdir = a.opts.workdir
	}
	if flags.Changed("dest") {
		cfg.Dest = a.opts.dest
	}
	if flags.Changed("subtypes") {
		cfg.Subtypes = a.opts.subtypes
	}
	if flags.Changed("preflight") {
		cfg.Preflight = a.opts.preflight
	}
	if flags.Changed("history-db") {
		cfg.HistoryDB = a.opts.historyDB
	}
	return cfg, nil
}

func (a *app) runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return clibase.Exit(3, fmt.Errorf("config: %w", err))
	}
	log, err := logging.New(a.stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return clibase.Usage(err)
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(cfg.Workdir, 0o755); err != nil {
		return clibase.Exit(3, err)
	}

	runner := a.runner
	if runner == nil {
		runner = execrun.ExecRunner{Log: log, Stdout: a.stderr}
	}
	p := &pipeline.Pipeline{
		Cfg: pipeline.Config{
			Workdir:   cfg.Workdir,
			GTF:       cfg.GTF,
			FASTA:     cfg.FASTA,
			Genome:    cfg.Genome,
			Dest:      cfg.Dest,
			Subtypes:  cfg.Subtypes,
			Preflight: cfg.Preflight,
		},
		Runner:   runner,
		Storage:  objstore.New(cfg.Tools.AWS, runner),
		Tool:     outrigger.Tool{Binary: cfg.Tools.Outrigger},
		StageLog: stagelog.New(cfg.LogPath()),
		Log:      log,
	}
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return clibase.Exit(3, err)
		}
		defer store.Close()
		p.History = store
	}

	rep, runErr := p.Run(cmd.Context(), args[0])
	c := a.opts.common
	if err := writers.WriteAll(cmd.OutOrStdout(), c.Output, c.Header(), output.StageColumns, output.ToAPIStages(rep)); err != nil {
		return clibase.Exit(3, err)
	}
	switch {
	case runErr != nil && cmd.Context().Err() != nil:
		return runErr
	case runErr != nil:
		return clibase.Exit(3, runErr)
	case !rep.OK():
		return clibase.Exit(1, nil)
	}
	return nil
}
