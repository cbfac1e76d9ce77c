package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mavam/graft/internal/status"
	"github.com/mavam/graft/internal/task"
	"github.com/mavam/graft/internal/worktree"
)

const subtaskName = "settings"

// RelPath is the well-known assistant settings document's location under a
// worktree root.
const RelPath = ".claude/settings.local.json"

// Task implements task.Task for the settings propagator. RemoteURL and
// Branch are populated by cmd/graft before the orchestrator runs, either
// from flags or auto-detected (the remote URL from the shared repository
// config, the branch from the target worktree's own checkout); either may
// be empty, in which case the task-list identifier is not synthesized.
type Task struct {
	RemoteURL string
	Branch    string
}

func (*Task) Name() string { return "settings" }

// ShouldRun applies whenever source has a settings document to propagate.
func (*Task) ShouldRun(_ context.Context, pair worktree.Pair) (bool, error) {
	_, err := os.Stat(filepath.Join(pair.Source, RelPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat source settings file: %w", err)
	}
	return true, nil
}

func (*Task) Subtasks() []task.Subtask {
	return []task.Subtask{{Name: subtaskName, Caption: "propagating assistant settings"}}
}

func (t *Task) Run(_ context.Context, pair worktree.Pair, st *status.Display) error {
	sourcePath := filepath.Join(pair.Source, RelPath)
	targetPath := filepath.Join(pair.Target, RelPath)

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(targetPath), err)
	}
	if err := Propagate(sourcePath, targetPath, t.RemoteURL, t.Branch); err != nil {
		return fmt.Errorf("propagate settings: %w", err)
	}
	st.SetDone(subtaskName, "propagated assistant settings")
	return nil
}
