// Package task defines the small interface every grafting task implements
// and the orchestrator that runs them: a precondition probe evaluated
// sequentially up front, then the enabled tasks dispatched concurrently on
// disjoint filesystem subtrees, first failure wins, the rest drain
// (spec.md §4.8).
package task

import (
	"context"
	"fmt"

	"github.com/mavam/graft/internal/status"
	"github.com/mavam/graft/internal/worktree"
	"golang.org/x/sync/errgroup"
)

// Subtask names one line of the status display a Task contributes.
type Subtask struct {
	Name    string
	Caption string
}

// Task is one independently runnable unit of grafting work. Implementations
// are plain structs (or pointers to them, where ShouldRun caches state for
// Run) held in the Orchestrator's task slice — no inheritance hierarchy,
// per spec.md §9's Design Note.
type Task interface {
	// Name identifies the task in the one-line error report on failure.
	Name() string
	// ShouldRun probes whether this task applies to pair. Called once per
	// task, sequentially, before any task runs; it may cache its findings
	// on the task for Run to reuse without re-probing.
	ShouldRun(ctx context.Context, pair worktree.Pair) (bool, error)
	// Subtasks lists the status-display lines this task will drive. Only
	// consulted for tasks that ShouldRun returned true for.
	Subtasks() []Subtask
	// Run performs the task's work, reporting progress via st.
	Run(ctx context.Context, pair worktree.Pair, st *status.Display) error
}

// Orchestrator owns a task set by value and drives the control flow
// described in spec.md §2 and §4.8.
type Orchestrator struct {
	tasks []Task
}

// New constructs an Orchestrator over tasks, in the order they should be
// probed (probing order is otherwise inconsequential since ShouldRun has no
// side effects on other tasks).
func New(tasks ...Task) *Orchestrator {
	return &Orchestrator{tasks: tasks}
}

// Run probes every task's precondition sequentially, builds a status
// display from the union of enabled tasks' subtasks, dispatches all enabled
// tasks concurrently, and waits. The first task error is returned wrapped
// with that task's Name; other tasks are allowed to run to completion
// (spec.md §4.8 "other tasks are allowed to complete").
//
// No task enabled is not an error: Run returns nil without constructing a
// display.
func (o *Orchestrator) Run(ctx context.Context, pair worktree.Pair) error {
	var enabled []Task
	for _, t := range o.tasks {
		ok, err := t.ShouldRun(ctx, pair)
		if err != nil {
			return fmt.Errorf("%s: should-run probe: %w", t.Name(), err)
		}
		if ok {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	var names []string
	captions := make(map[string]string)
	firstOf := make(map[string]string, len(enabled)) // task Name -> first subtask Name
	for _, t := range enabled {
		subtasks := t.Subtasks()
		for i, st := range subtasks {
			names = append(names, st.Name)
			captions[st.Name] = st.Caption
			if i == 0 {
				firstOf[t.Name()] = st.Name
			}
		}
	}

	display := status.New(names, captions)
	display.Start()
	for _, t := range enabled {
		if first, ok := firstOf[t.Name()]; ok {
			display.SetActive(first)
		}
	}
	// display.Stop is idempotent, so both the interrupt race below and this
	// deferred call are safe even if both fire.
	defer display.Stop()

	// A zero-value errgroup.Group, not errgroup.WithContext: the group must
	// not cancel a shared context when one task errors, since tasks operate
	// on disjoint subtrees and a failing task must not abort a sibling's
	// independent work (spec.md §4.8).
	var g errgroup.Group
	for _, t := range enabled {
		t := t
		g.Go(func() error {
			if err := t.Run(ctx, pair, display); err != nil {
				return fmt.Errorf("%s: %w", t.Name(), err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// An interactive interrupt: there is no cooperative cancellation
		// within file walks (spec.md §5), so the enabled tasks keep running
		// in the background goroutines above, but the cursor must come back
		// immediately rather than stay hidden until they drain on their own.
		display.Stop()
		return ctx.Err()
	}
}
