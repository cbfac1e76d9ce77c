package submodule

import (
	"context"
	"fmt"

	"github.com/mavam/graft/internal/status"
	"github.com/mavam/graft/internal/task"
	"github.com/mavam/graft/internal/worktree"
)

const subtaskName = "submodules"

// Task implements task.Task for the submodule grafter.
type Task struct {
	descriptors []Descriptor
}

func (t *Task) Name() string { return "submodules" }

// ShouldRun parses the target's submodule manifest and caches it for Run.
// It applies whenever the target records at least one submodule.
func (t *Task) ShouldRun(ctx context.Context, pair worktree.Pair) (bool, error) {
	descriptors, err := ParseManifest(ctx, pair.Target)
	if err != nil {
		return false, err
	}
	t.descriptors = descriptors
	return len(descriptors) > 0, nil
}

func (t *Task) Subtasks() []task.Subtask {
	return []task.Subtask{
		{Name: subtaskName, Caption: fmt.Sprintf("grafting %d submodules", len(t.descriptors))},
	}
}

func (t *Task) Run(ctx context.Context, pair worktree.Pair, st *status.Display) error {
	if err := (Grafter{}).Graft(ctx, pair.Source, pair.Target); err != nil {
		return err
	}
	st.SetDone(subtaskName, fmt.Sprintf("grafted %d submodules", len(t.descriptors)))
	return nil
}
