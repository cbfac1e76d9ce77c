// Package worktree discovers the sibling "primary" working copy of a freshly
// created git worktree and validates that a (source, target) pair shares a
// common object store.
//
// graft assumes "the first worktree in `git worktree list --porcelain`'s
// output is the primary one." That heuristic is correct for the common case
// of a post-create hook firing immediately after `git worktree add`, since
// the listing is ordered by creation, primary first. It is not guaranteed by
// git in general (a worktree can be administratively reordered), so callers
// that need certainty should verify the picked path out-of-band.
package worktree

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mavam/graft/internal/gitcmd"
)

// Pair is a validated (source, target) worktree pair: two checkouts backed
// by the same common object store, from which graft may read source and to
// which it may write target. No task ever writes under Source.
type Pair struct {
	Source string
	Target string
}

// FindPrimary lists all worktrees known to the repository containing target
// and returns the first one whose canonical path differs from target. If no
// such worktree exists, ok is false and the caller should treat that as
// "nothing to do, exit 0" rather than an error.
func FindPrimary(ctx context.Context, target string) (path string, ok bool, err error) {
	canonicalTarget, err := canonicalize(target)
	if err != nil {
		return "", false, fmt.Errorf("canonicalize target: %w", err)
	}

	out, err := gitcmd.Run(ctx, target, []string{"worktree", "list", "--porcelain"}, gitcmd.RunOptions{})
	if err != nil {
		return "", false, fmt.Errorf("list worktrees: %w", err)
	}

	for _, record := range parsePorcelain(out) {
		canonicalRecord, err := canonicalize(record)
		if err != nil {
			continue
		}
		if canonicalRecord != canonicalTarget {
			return record, true, nil
		}
	}
	return "", false, nil
}

// parsePorcelain extracts the "worktree <path>" line from each blank-line
// delimited record of `git worktree list --porcelain` output.
func parsePorcelain(out []byte) []string {
	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if after, found := strings.CutPrefix(line, "worktree "); found {
			paths = append(paths, after)
		}
	}
	return paths
}

// Validate fails when either path is missing, the paths are the same
// canonical path, either path is not inside a repository, or the two paths
// resolve to different common object-store directories.
func Validate(ctx context.Context, source, target string) error {
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("source %q does not exist: %w", source, err)
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target %q does not exist: %w", target, err)
	}

	canonSource, err := canonicalize(source)
	if err != nil {
		return fmt.Errorf("canonicalize source: %w", err)
	}
	canonTarget, err := canonicalize(target)
	if err != nil {
		return fmt.Errorf("canonicalize target: %w", err)
	}
	if canonSource == canonTarget {
		return fmt.Errorf("source and target are the same path: %s", canonSource)
	}

	sourceCommon, err := CommonDir(ctx, source)
	if err != nil {
		return fmt.Errorf("source %q is not inside a repository: %w", source, err)
	}
	targetCommon, err := CommonDir(ctx, target)
	if err != nil {
		return fmt.Errorf("target %q is not inside a repository: %w", target, err)
	}

	canonSourceCommon, err := canonicalize(sourceCommon)
	if err != nil {
		return fmt.Errorf("canonicalize source common dir: %w", err)
	}
	canonTargetCommon, err := canonicalize(targetCommon)
	if err != nil {
		return fmt.Errorf("canonicalize target common dir: %w", err)
	}
	if canonSourceCommon != canonTargetCommon {
		return fmt.Errorf("source and target do not share a common object store (%s != %s)", canonSourceCommon, canonTargetCommon)
	}

	return nil
}

// CommonDir returns the repository's shared metadata directory for path,
// i.e. `git rev-parse --git-common-dir` resolved to an absolute path.
func CommonDir(ctx context.Context, path string) (string, error) {
	out, err := gitcmd.Run(ctx, path, []string{"rev-parse", "--git-common-dir"}, gitcmd.RunOptions{})
	if err != nil {
		return "", err
	}
	dir := string(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(path, dir)
	}
	return dir, nil
}

// ModulesDir returns the repository's shared submodule store
// (<common-dir>/modules) for path.
func ModulesDir(ctx context.Context, path string) (string, error) {
	common, err := CommonDir(ctx, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(common, "modules"), nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Best effort: the path may not exist yet (e.g. a destination we're
		// about to create); fall back to the absolute, unresolved form.
		return abs, nil
	}
	return resolved, nil
}
