package validateapp

import (
	"errors"

	"github.com/spf13/cobra"

	"sctools/internal/clibase"
	"sctools/internal/history"
	"sctools/internal/output"
	"sctools/internal/writers"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the stages of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return clibase.Usagef("no history database configured (set history_db or --history-db)")
			}
			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return clibase.Exit(3, err)
			}
			defer store.Close()

			c := a.opts.common
			out := cmd.OutOrStdout()
			if runID != "" {
				stages, err := store.Stages(cmd.Context(), runID)
				if errors.Is(err, history.ErrNotFound) {
					return clibase.Exit(1, err)
				}
				if err != nil {
					return clibase.Exit(3, err)
				}
				return exitIO(writers.WriteAll(out, c.Output, c.Header(), output.StageColumns, output.ToAPIHistoryStages(runID, stages)))
			}
			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return clibase.Exit(3, err)
			}
			return exitIO(writers.WriteAll(out, c.Output, c.Header(), output.RunColumns, output.ToAPIRuns(runs)))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (newest first)")
	cmd.Flags().StringVar(&runID, "run", "", "show the stages of this run ID")
	return cmd
}

func exitIO(err error) error {
	if err != nil {
		return clibase.Exit(3, err)
	}
	return nil
}
