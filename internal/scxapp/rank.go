package scxapp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctools/internal/clibase"
	"sctools/internal/cluster"
	"sctools/internal/objstore"
	"sctools/internal/output"
	"sctools/internal/rank"
	"sctools/internal/subset"
)

func (a *app) rankCmd() *cobra.Command {
	var (
		p     rank.Params
		where []string
		push  bool
		s3dir string
		wkdir string
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank marker genes of each group against the rest",
		Long: "Tests every gene of every level of --group-by against all other cells. --where\n" +
			"restricts the cells first. With --push the names table is written as\n" +
			"GeneRank_<criteria>.csv, copied to --s3-dir and the download link is printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := subset.Parse(where)
			if err != nil {
				return clibase.Usage(err)
			}
			if push && s3dir == "" {
				return clibase.Usagef("--push needs --s3-dir")
			}
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := cmd.Flags()
			if !f.Changed("method") {
				p.Method = s.cfg.Analysis.Rank.Method
			}
			if !f.Changed("n-genes") {
				p.NGenes = s.cfg.Analysis.Rank.NGenes
			}
			if !slices.Contains(rank.Methods, p.Method) {
				return clibase.Usagef("--method must be one of %s", strings.Join(rank.Methods, ", "))
			}

			ad, err := s.load(cmd.Context(), "")
			if err != nil {
				return err
			}
			if len(c) > 0 {
				if ad, err = subset.Obs(ad, c, s.log); err != nil {
					return failed(err)
				}
			}
			res, err := rank.Genes(ad, p)
			if err != nil {
				return failed(err)
			}
			s.log.Info("ranked", zap.String("group_by", res.GroupBy), zap.String("method", res.Method), zap.Int("groups", len(res.Groups)))

			if push {
				if wkdir == "" {
					wkdir = s.cfg.Workdir
				}
				store := objstore.New(s.cfg.Tools.AWS, a.runner(s.log))
				store.Quiet = true
				pusher := &rank.Pusher{Storage: store, Region: s.cfg.Analysis.S3Region, Log: s.log}
				link, err := pusher.Push(cmd.Context(), res.NamesTable(), c, wkdir, s3dir)
				if err != nil {
					return clibase.Exit(3, err)
				}
				fmt.Fprintln(a.stderr, link)
			}
			return emit(cmd, a.common, output.RankColumns, res.Rows())
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.GroupBy, "group-by", cluster.DefaultKey, "obs column defining the groups")
	f.StringVar(&p.Method, "method", rank.Wilcoxon, "test: "+strings.Join(rank.Methods, ", ")+" [config]")
	f.IntVarP(&p.NGenes, "n-genes", "n", 0, "genes reported per group [config]")
	f.BoolVar(&p.RankByAbs, "rank-by-abs", false, "order genes by absolute score")
	f.StringArrayVarP(&where, "where", "w", nil, "restrict to cells matching key=v1,v2 (repeatable)")
	f.BoolVar(&push, "push", false, "upload the names table to object storage")
	f.StringVar(&s3dir, "s3-dir", "", "bucket/prefix for --push")
	f.StringVar(&wkdir, "wkdir", "", "directory for the exported table [config workdir]")
	return cmd
}
