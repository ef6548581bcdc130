package pipeline

import (
	"time"

	"patentflow/internal/models"
	"patentflow/internal/util"
	"patentflow/internal/workspace"
)

// LoadMetadata reads metadata/run.json. The second return is false when the
// file is missing or unreadable.
func LoadMetadata(store *workspace.Store) (models.RunMetadata, bool) {
	var md models.RunMetadata
	ok := store.ReadJSON(workspace.RunMetadata, &md)
	return md, ok
}

func initMetadata(store *workspace.Store, opts Options, startedAt time.Time) error {
	// The input was stat'ed by Prepare; a hashing failure only leaves the
	// fingerprint empty.
	sum, _ := util.SHA256File(opts.InputPath)
	return store.WriteJSON(workspace.RunMetadata, models.RunMetadata{
		RunID:       opts.RunID,
		Backend:     opts.Backend,
		InputPath:   opts.InputPath,
		InputSHA256: sum,
		TaskPrompt:  opts.TaskPrompt,
		Status:      models.RunRunning,
		StartedAt:   startedAt,
		Stages:      []models.StageState{},
	})
}

// RecordStage replaces or appends the state of out.Stage in run.json.
func RecordStage(store *workspace.Store, out Outcome) error {
	md, _ := LoadMetadata(store)
	state := models.StageState{
		Stage:      out.Stage,
		Status:     string(out.Status),
		Attempts:   out.Attempts,
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
	}
	if out.Err != nil {
		state.Error = out.Err.Error()
	}
	replaced := false
	for i := range md.Stages {
		if md.Stages[i].Stage == out.Stage {
			md.Stages[i] = state
			replaced = true
		}
	}
	if !replaced {
		md.Stages = append(md.Stages, state)
	}
	return store.WriteJSON(workspace.RunMetadata, md)
}

// FinishRun stamps the terminal run status.
func FinishRun(store *workspace.Store, status models.RunStatus, at time.Time) error {
	md, _ := LoadMetadata(store)
	md.Status = status
	md.FinishedAt = at
	return store.WriteJSON(workspace.RunMetadata, md)
}
