package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sctools/internal/execrun"
	"sctools/internal/history"
	"sctools/internal/logging"
	"sctools/internal/objstore"
	"sctools/internal/outrigger"
	"sctools/internal/s3path"
	"sctools/internal/stagelog"
)

// Stage names as they appear in the stage log.
const (
	StageParse     = "parse_path"
	StagePreflight = "preflight_refs"
	StageDownload  = "s3_download"
	StageIndex     = "run_outrigger"
	StageValidate  = "run_validate"
)

// UploadStage is the stage name for one event subtype.
func UploadStage(subtype string) string { return subtype + "_upload" }

// ErrUpstreamFailed is the reason attached to skipped stages.
var ErrUpstreamFailed = errors.New("upstream stage did not succeed")

// Status of one stage.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StageResult is the explicit outcome of one stage.
type StageResult struct {
	Name     string
	Status   Status
	ExitCode int
	Reason   error
	Elapsed  time.Duration
}

// Report summarises a run.
type Report struct {
	RunID    string
	Input    string
	Prefixes s3path.Prefixes
	Stages   []StageResult
	Elapsed  time.Duration
}

// OK reports whether every stage succeeded.
func (r Report) OK() bool {
	for _, s := range r.Stages {
		if s.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Stage returns the result named name.
func (r Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Config holds the per-run settings.
type Config struct {
	Workdir   string
	GTF       string
	FASTA     string
	Genome    string
	Dest      string
	Subtypes  []string
	Preflight bool
}

// Recorder persists run history. *history.Store satisfies it.
type Recorder interface {
	BeginRun(ctx context.Context, input string) (string, error)
	RecordStage(ctx context.Context, id string, st history.Stage) error
	FinishRun(ctx context.Context, id string, ok bool) error
}

var _ Recorder = (*history.Store)(nil)

// Pipeline wires the collaborators of a run.
type Pipeline struct {
	Cfg      Config
	Runner   execrun.Runner
	Storage  objstore.Copier
	Tool     outrigger.Tool
	StageLog *stagelog.Logger
	History  Recorder // optional
	Log      *zap.Logger
	Now      func() time.Time
}

type stage struct {
	name string
	deps []string
	run  func(ctx context.Context) (code int, err error)
}

// Run executes all stages for input and returns the report. The error is
// non-nil only for infrastructure failures (stage log, history) or
// cancellation; stage failures are reported in the Report.
func (p *Pipeline) Run(ctx context.Context, input string) (Report, error) {
	log := logging.OrNop(p.Log)
	now := p.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	rep := Report{Input: input}

	if p.History != nil {
		id, err := p.History.BeginRun(ctx, input)
		if err != nil {
			return rep, err
		}
		rep.RunID = id
		log = log.With(zap.String("run_id", id))
	}
	log.Info("run started", zap.String("input", input), zap.String("workdir", p.Cfg.Workdir))

	results := make(map[string]Status)
	for i, st := range p.stages(input, &rep) {
		res := StageResult{Name: st.name}
		if err := ctx.Err(); err != nil {
			res.Status, res.Reason = StatusSkipped, err
		} else if dep, ok := firstUnmet(st.deps, results); !ok {
			res.Status, res.Reason = StatusSkipped, fmt.Errorf("%w: %s", ErrUpstreamFailed, dep)
		} else {
			t0 := now()
			code, err := st.run(ctx)
			res.Elapsed = now().Sub(t0)
			res.ExitCode, res.Reason = code, err
			res.Status = StatusSucceeded
			if code != 0 || err != nil {
				res.Status = StatusFailed
			}
			if lerr := p.StageLog.Stage(st.name, code); lerr != nil {
				return rep, lerr
			}
		}
		results[st.name] = res.Status
		rep.Stages = append(rep.Stages, res)
		logStage(log, res)
		if err := p.record(ctx, rep.RunID, i, res); err != nil {
			return rep, err
		}
	}

	rep.Elapsed = now().Sub(start)
	if err := p.StageLog.Elapsed(rep.Elapsed); err != nil {
		return rep, err
	}
	if p.History != nil {
		// Use a fresh context so an interrupted run is still closed out.
		if err := p.History.FinishRun(context.WithoutCancel(ctx), rep.RunID, rep.OK()); err != nil {
			return rep, err
		}
	}
	log.Info("run finished", zap.Bool("ok", rep.OK()), zap.Duration("elapsed", rep.Elapsed))
	return rep, ctx.Err()
}

func (p *Pipeline) stages(input string, rep *Report) []stage {
	cfg := p.Cfg
	refDeps := []string{StageParse}
	list := []stage{{
		name: StageParse,
		run: func(context.Context) (int, error) {
			pr, err := s3path.Parse(input)
			if err != nil {
				return 1, err
			}
			rep.Prefixes = pr
			return 0, nil
		},
	}}
	if cfg.Preflight {
		list = append(list, stage{
			name: StagePreflight,
			deps: []string{StageParse},
			run: func(ctx context.Context) (int, error) {
				if _, err := CheckReferences(ctx, cfg.GTF, cfg.FASTA); err != nil {
					return 1, err
				}
				return 0, nil
			},
		})
		refDeps = append(refDeps, StagePreflight)
	}
	list = append(list,
		stage{
			name: StageDownload,
			deps: []string{StageParse},
			run: func(ctx context.Context) (int, error) {
				return result(p.Storage.Copy(ctx, input, cfg.Workdir+"/"))
			},
		},
		stage{
			name: StageIndex,
			deps: append([]string{StageDownload}, refDeps...),
			run: func(ctx context.Context) (int, error) {
				return result(p.Runner.Run(ctx, p.Tool.Index(cfg.Workdir, rep.Prefixes.SJOutTab(), cfg.GTF)))
			},
		},
		stage{
			name: StageValidate,
			deps: []string{StageIndex},
			run: func(ctx context.Context) (int, error) {
				return result(p.Runner.Run(ctx, p.Tool.Validate(cfg.Workdir, cfg.Genome, cfg.FASTA)))
			},
		},
	)
	for _, sub := range cfg.Subtypes {
		sub := sub
		list = append(list, stage{
			name: UploadStage(sub),
			deps: []string{StageValidate},
			run: func(ctx context.Context) (int, error) {
				src := outrigger.EventsPath(cfg.Workdir, sub)
				return result(p.Storage.Copy(ctx, src, objstore.DirURL(cfg.Dest)))
			},
		})
	}
	return list
}

func (p *Pipeline) record(ctx context.Context, runID string, seq int, r StageResult) error {
	if p.History == nil {
		return nil
	}
	reason := ""
	if r.Reason != nil {
		reason = r.Reason.Error()
	}
	return p.History.RecordStage(context.WithoutCancel(ctx), runID, history.Stage{
		Seq:      seq,
		Name:     r.Name,
		Status:   string(r.Status),
		ExitCode: r.ExitCode,
		Reason:   reason,
		Elapsed:  r.Elapsed,
	})
}

func result(r execrun.Result) (int, error) {
	if r.Err != nil {
		return r.ExitCode, r.Err
	}
	if r.ExitCode != 0 {
		if r.StderrTail != "" {
			return r.ExitCode, fmt.Errorf("exit status %d: %s", r.ExitCode, r.StderrTail)
		}
		return r.ExitCode, fmt.Errorf("exit status %d", r.ExitCode)
	}
	return 0, nil
}

func firstUnmet(deps []string, results map[string]Status) (string, bool) {
	for _, d := range deps {
		if results[d] != StatusSucceeded {
			return d, false
		}
	}
	return "", true
}

func logStage(log *zap.Logger, r StageResult) {
	fields := []zap.Field{
		zap.String("stage", r.Name),
		zap.String("status", string(r.Status)),
		zap.Int("code", r.ExitCode),
		zap.Duration("elapsed", r.Elapsed),
	}
	switch r.Status {
	case StatusSucceeded:
		log.Info("stage", fields...)
	case StatusSkipped:
		log.Warn("stage", append(fields, zap.Error(r.Reason))...)
	default:
		log.Error("stage", append(fields, zap.Error(r.Reason))...)
	}
}
