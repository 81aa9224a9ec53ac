package output

import (
	"time"

	"sctools/internal/history"
	"sctools/internal/pipeline"
	"sctools/pkg/api"
)

// ToAPIStages converts a pipeline report to the stable wire schema (v1).
func ToAPIStages(rep pipeline.Report) []api.StageV1 {
	out := make([]api.StageV1, 0, len(rep.Stages))
	for i, s := range rep.Stages {
		v := api.StageV1{
			RunID:          rep.RunID,
			Seq:            i,
			Stage:          s.Name,
			Status:         string(s.Status),
			ExitCode:       s.ExitCode,
			ElapsedSeconds: s.Elapsed.Seconds(),
		}
		if s.Reason != nil {
			v.Reason = s.Reason.Error()
		}
		out = append(out, v)
	}
	return out
}

// ToAPIHistoryStages converts recorded stages of one run.
func ToAPIHistoryStages(runID string, list []history.Stage) []api.StageV1 {
	out := make([]api.StageV1, 0, len(list))
	for _, s := range list {
		out = append(out, api.StageV1{
			RunID:          runID,
			Seq:            s.Seq,
			Stage:          s.Name,
			Status:         s.Status,
			ExitCode:       s.ExitCode,
			Reason:         s.Reason,
			ElapsedSeconds: s.Elapsed.Seconds(),
		})
	}
	return out
}

// ToAPIRuns converts recorded runs.
func ToAPIRuns(list []history.Run) []api.RunV1 {
	out := make([]api.RunV1, 0, len(list))
	for _, r := range list {
		v := api.RunV1{
			ID:        r.ID,
			Input:     r.Input,
			StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
			OK:        r.OK,
		}
		if !r.FinishedAt.IsZero() {
			v.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, v)
	}
	return out
}
