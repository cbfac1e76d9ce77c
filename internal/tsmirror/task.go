package tsmirror

import (
	"context"
	"fmt"

	"github.com/mavam/graft/internal/status"
	"github.com/mavam/graft/internal/task"
	"github.com/mavam/graft/internal/worktree"
)

const subtaskName = "timestamps"

// Task implements task.Task for the timestamp mirror.
type Task struct{}

func (Task) Name() string { return "timestamps" }

// ShouldRun applies whenever pair.Source is set; it does not stat the path.
// Every validated pair qualifies — a pair is only constructed once both
// paths have been confirmed to exist (internal/worktree.Validate).
func (Task) ShouldRun(_ context.Context, pair worktree.Pair) (bool, error) {
	return pair.Source != "", nil
}

func (Task) Subtasks() []task.Subtask {
	return []task.Subtask{{Name: subtaskName, Caption: "mirroring file timestamps"}}
}

func (Task) Run(_ context.Context, pair worktree.Pair, st *status.Display) error {
	if err := Mirror(pair.Source, pair.Target); err != nil {
		return fmt.Errorf("mirror timestamps: %w", err)
	}
	st.SetDone(subtaskName, "mirrored file timestamps")
	return nil
}
