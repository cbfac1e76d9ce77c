package submodule

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mavam/graft/internal/debuglog"
	"github.com/mavam/graft/internal/fscopy"
	"github.com/mavam/graft/internal/gitcmd"
	"github.com/mavam/graft/internal/workerpool"
	"github.com/mavam/graft/internal/worktree"
)

const (
	copyPoolWidth  = 4
	copyRetries    = 3
	copyRetryDelay = 100 * time.Millisecond
)

// Grafter reconstitutes submodule working copies for a target worktree.
type Grafter struct{}

// Graft parses the target's submodule manifest, copies what it can out of
// source and the parent's shared modules store, clones what it can't, and
// re-pins every submodule to the commit recorded in the target's HEAD tree.
// A target with no manifest is a silent no-op.
func (Grafter) Graft(ctx context.Context, source, target string) error {
	descriptors, err := ParseManifest(ctx, target)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return nil
	}

	pins, err := headCommits(ctx, target)
	if err != nil {
		return fmt.Errorf("list HEAD tree: %w", err)
	}

	modulesDir, err := worktree.ModulesDir(ctx, target)
	if err != nil {
		return fmt.Errorf("resolve modules dir: %w", err)
	}

	var toCopy, toClone []Descriptor
	for _, d := range descriptors {
		sourceCheckout := filepath.Join(source, d.RelPath)
		targetCheckout := filepath.Join(target, d.RelPath)
		switch {
		case nonEmptyDir(sourceCheckout) && !nonEmptyDir(targetCheckout):
			toCopy = append(toCopy, d)
		case !nonEmptyDir(sourceCheckout) && !nonEmptyDir(targetCheckout) && d.URL != "":
			toClone = append(toClone, d)
		}
	}

	if err := workerpool.RunEach(toCopy, copyPoolWidth, func(d Descriptor) error {
		if err := copyOne(ctx, source, target, modulesDir, d); err != nil {
			return fmt.Errorf("copy submodule %s: %w", d.RelPath, err)
		}
		return nil
	}); err != nil {
		return err
	}

	// Re-pinning is sequential: every submodule now checked out (freshly
	// copied or pre-existing from an earlier run) is walked to the commit
	// the target's HEAD tree records, one at a time, to avoid contending
	// the same shared lockfile set a parallel pool would hit.
	for _, d := range descriptors {
		sha, pinned := pins[d.RelPath]
		dir := filepath.Join(target, d.RelPath)
		if !pinned || !nonEmptyDir(dir) {
			continue
		}
		if _, err := gitcmd.Run(ctx, dir, []string{"checkout", "--detach", "--quiet", sha}, gitcmd.RunOptions{RetryOnLock: true}); err != nil {
			return fmt.Errorf("pin submodule %s to %s: %w", d.RelPath, sha, err)
		}
	}

	for _, d := range toClone {
		if err := cloneOne(ctx, target, d, pins[d.RelPath]); err != nil {
			return fmt.Errorf("clone submodule %s: %w", d.RelPath, err)
		}
	}

	return nil
}

// copyOne copies a submodule's working tree out of source (excluding its
// own .git entry, which is copied separately from the parent's shared
// modules store) and, if the store has an entry for this submodule, copies
// that in as a self-contained .git directory with pack files made writable
// and core.worktree unset. Transient I/O errors are retried up to three
// times with a 100ms backoff.
func copyOne(ctx context.Context, source, target, modulesDir string, d Descriptor) error {
	dest := filepath.Join(target, d.RelPath)
	if isUnder(dest, source) {
		return fmt.Errorf("destination %s is inside source, refusing to graft", dest)
	}

	return retry(copyRetries, copyRetryDelay, func() error {
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("remove existing destination: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}

		sourceCheckout := filepath.Join(source, d.RelPath)
		if err := fscopy.Tree(sourceCheckout, dest, ".git"); err != nil {
			return fmt.Errorf("copy working tree: %w", err)
		}

		storeEntry := filepath.Join(modulesDir, d.Name)
		info, err := os.Stat(storeEntry)
		if err != nil || !info.IsDir() {
			return nil // no modules-store entry (e.g. never initialized in source)
		}

		gitDir := filepath.Join(dest, ".git")
		if err := fscopy.Tree(storeEntry, gitDir); err != nil {
			return fmt.Errorf("copy modules store entry: %w", err)
		}
		if err := makeWritable(gitDir); err != nil {
			return fmt.Errorf("make %s writable: %w", gitDir, err)
		}
		if err := unsetWorktreeConfig(ctx, dest); err != nil {
			return fmt.Errorf("unset core.worktree: %w", err)
		}
		return nil
	})
}

// cloneOne clones a submodule that was empty in both source and target,
// then fetches and detached-checks-out the exact commit the target's HEAD
// tree expects. A failure to fetch that exact commit is logged, not fatal,
// since the commit may still be reachable once the default branch's
// history is cloned.
func cloneOne(ctx context.Context, target string, d Descriptor, expectedSHA string) error {
	dest := filepath.Join(target, d.RelPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if _, err := gitcmd.Run(ctx, target, []string{"clone", "--quiet", d.URL, dest}, gitcmd.RunOptions{}); err != nil {
		return fmt.Errorf("clone %s: %w", d.URL, err)
	}

	if expectedSHA == "" {
		return nil
	}

	if _, err := gitcmd.Run(ctx, dest, []string{"fetch", "--quiet", "origin", expectedSHA}, gitcmd.RunOptions{}); err != nil {
		debuglog.Printf("[submodule] fetch %s for %s failed, checking out anyway in case it's reachable from the default branch: %v", expectedSHA, d.RelPath, err)
	}

	if _, err := gitcmd.Run(ctx, dest, []string{"checkout", "--detach", "--quiet", expectedSHA}, gitcmd.RunOptions{RetryOnLock: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", expectedSHA, err)
	}
	return nil
}

// headCommits returns relative-path -> commit sha for every gitlink
// ("commit"-typed) entry in worktreeRoot's HEAD tree, i.e. every submodule
// pin the checked-out commit actually records. NUL-delimited output is used
// so paths containing whitespace are handled correctly.
func headCommits(ctx context.Context, worktreeRoot string) (map[string]string, error) {
	out, err := gitcmd.Run(ctx, worktreeRoot, []string{"ls-tree", "-z", "-r", "HEAD"}, gitcmd.RunOptions{Binary: true})
	if err != nil {
		return nil, err
	}

	pins := make(map[string]string)
	for _, entry := range bytes.Split(bytes.Trim(out, "\x00"), []byte{0}) {
		if len(entry) == 0 {
			continue
		}
		meta, path, ok := bytes.Cut(entry, []byte{'\t'})
		if !ok {
			continue
		}
		fields := strings.Fields(string(meta))
		if len(fields) != 3 || fields[1] != "commit" {
			continue
		}
		pins[string(path)] = fields[2]
	}
	return pins, nil
}

func nonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

func isUnder(path, ancestor string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// makeWritable clears the read-only bit git sets on pack files (mode 0444
// by default) so the copied .git directory can be written to by later
// operations (checkout, fetch) in its new, self-contained location.
func makeWritable(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.Chmod(path, info.Mode().Perm()|0o200)
	})
}

// unsetWorktreeConfig clears core.worktree in dest's .git config, if set.
// The copied modules-store entry points core.worktree at the source
// checkout; left in place it would make git operations inside dest operate
// against the wrong working tree. git is run from dest's parent with
// --file, because run inside dest it first tries to enter that stale
// working tree and fails before reading or changing any config.
func unsetWorktreeConfig(ctx context.Context, dest string) error {
	dir := filepath.Dir(dest)
	configFile := filepath.Join(filepath.Base(dest), ".git", "config")
	if _, err := gitcmd.Run(ctx, dir, []string{"config", "--file", configFile, "--get", "core.worktree"}, gitcmd.RunOptions{}); err != nil {
		return nil // key not set
	}
	_, err := gitcmd.Run(ctx, dir, []string{"config", "--file", configFile, "--unset", "core.worktree"}, gitcmd.RunOptions{RetryOnLock: true})
	return err
}

func retry(attempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < attempts {
			time.Sleep(delay)
		}
	}
	return lastErr
}
