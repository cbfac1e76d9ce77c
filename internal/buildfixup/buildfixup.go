// Package buildfixup is the build-cache fixup task: it copies any CMake
// build directory missing from the target, then rewrites every copied or
// pre-existing build directory so the build tool considers it valid at the
// target location — the ninja dependency database patched record-by-record
// (internal/ninjadeps), the ninja execution log rehashed
// (internal/ninjalog), and every other text file's embedded source path
// rewritten (internal/cmakefix).
package buildfixup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/mavam/graft/internal/buildtree"
	"github.com/mavam/graft/internal/cmakefix"
	"github.com/mavam/graft/internal/debuglog"
	"github.com/mavam/graft/internal/fscopy"
	"github.com/mavam/graft/internal/ninjadeps"
	"github.com/mavam/graft/internal/ninjalog"
	"github.com/mavam/graft/internal/status"
	"github.com/mavam/graft/internal/task"
	"github.com/mavam/graft/internal/worktree"
)

const (
	copySubtask    = "build:copy"
	fixSubtask     = "build:fix"
	presetsSubtask = "build:presets"

	ninjaDepsName = ".ninja_deps"
	ninjaLogName  = ".ninja_log"
	presetsName   = "CMakeUserPresets.json"
)

// Task implements task.Task for the build-cache fixup subsystem.
type Task struct {
	toCopy        []string // absolute target paths, derived once in ShouldRun
	toFix         []string
	presetsSource string // absolute path of a shared presets file to link, if any
}

func (t *Task) Name() string { return "build cache" }

// ShouldRun partitions build directories between pair.Source and
// pair.Target (internal/buildtree.Partition) and caches the result for Run.
// It applies whenever there is at least one build directory to copy or fix,
// or a CMakeUserPresets.json shared by sibling worktrees needs linking.
func (t *Task) ShouldRun(_ context.Context, pair worktree.Pair) (bool, error) {
	toCopy, toFix, err := buildtree.Partition(pair.Source, pair.Target)
	if err != nil {
		return false, fmt.Errorf("partition build directories: %w", err)
	}
	t.toCopy = toCopy
	t.toFix = toFix

	// spec.md §6: "optionally a symlink CMakeUserPresets.json in the target
	// pointing at a file next to the source worktree" — a presets file
	// living beside the worktree checkouts (not inside any one of them),
	// shared across all worktrees of the same project.
	shared := filepath.Join(filepath.Dir(pair.Source), presetsName)
	if info, err := os.Stat(shared); err == nil && !info.IsDir() {
		if _, err := os.Lstat(filepath.Join(pair.Target, presetsName)); os.IsNotExist(err) {
			t.presetsSource = shared
		}
	}

	return len(toCopy) > 0 || len(toFix) > 0 || t.presetsSource != "", nil
}

func (t *Task) Subtasks() []task.Subtask {
	subtasks := []task.Subtask{
		{Name: copySubtask, Caption: fmt.Sprintf("copying %d build dirs", len(t.toCopy))},
		{Name: fixSubtask, Caption: fmt.Sprintf("fixing %d build dirs", len(t.toFix))},
	}
	if t.presetsSource != "" {
		subtasks = append(subtasks, task.Subtask{Name: presetsSubtask, Caption: "linking " + presetsName})
	}
	return subtasks
}

func (t *Task) Run(ctx context.Context, pair worktree.Pair, st *status.Display) error {
	var copiedBytes int64
	for _, targetDir := range t.toCopy {
		rel, err := filepath.Rel(pair.Target, targetDir)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", targetDir, err)
		}
		sourceDir := filepath.Join(pair.Source, rel)
		if err := fscopy.Tree(sourceDir, targetDir); err != nil {
			return fmt.Errorf("copy build directory %s: %w", rel, err)
		}
		copiedBytes += dirSize(targetDir)
	}
	st.SetDone(copySubtask, fmt.Sprintf("copied %d build dirs (%s)", len(t.toCopy), humanize.Bytes(uint64(copiedBytes))))
	st.SetActive(fixSubtask)

	sourceBytes := []byte(pair.Source)
	targetBytes := []byte(pair.Target)

	for _, dir := range t.toFix {
		if err := fixOne(ctx, dir, sourceBytes, targetBytes); err != nil {
			return fmt.Errorf("fix build directory %s: %w", dir, err)
		}
	}
	st.SetDone(fixSubtask, fmt.Sprintf("fixed %d build dirs", len(t.toFix)))

	if t.presetsSource != "" {
		st.SetActive(presetsSubtask)
		dest := filepath.Join(pair.Target, presetsName)
		if err := os.Symlink(t.presetsSource, dest); err != nil {
			return fmt.Errorf("link %s: %w", presetsName, err)
		}
		st.SetDone(presetsSubtask, "linked "+presetsName)
	}

	return nil
}

func fixOne(ctx context.Context, dir string, source, target []byte) error {
	depsPath := filepath.Join(dir, ninjaDepsName)
	if _, err := os.Stat(depsPath); err == nil {
		if err := ninjadeps.Patch(depsPath, source, target); err != nil {
			return fmt.Errorf("patch %s: %w", ninjaDepsName, err)
		}
	}

	logPath := filepath.Join(dir, ninjaLogName)
	if _, err := os.Stat(logPath); err == nil {
		commands, err := buildtree.CompDB(ctx, dir)
		if err != nil {
			debuglog.Printf("[buildfixup] skip ninja-log rehash for %s: %v", dir, err)
		} else if err := ninjalog.Rewrite(logPath, dir, commands); err != nil {
			return fmt.Errorf("rewrite %s: %w", ninjaLogName, err)
		}
	}

	if err := cmakefix.Fix(dir, source, target); err != nil {
		return fmt.Errorf("rewrite embedded paths: %w", err)
	}
	return nil
}

// dirSize sums the size of every regular file under dir. Stat failures on
// individual entries are ignored; this feeds a human-readable status
// caption, not a correctness check.
func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
