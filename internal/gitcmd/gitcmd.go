// Package gitcmd is the single choke point through which graft invokes the
// external version-control tool. Every other package that needs to run git
// goes through Run; outside of test helpers, nothing else in this module
// calls exec.Command against git directly.
package gitcmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// RunOptions configures a single invocation.
type RunOptions struct {
	// Binary indicates the command's stdout should be returned unmodified,
	// without the trailing-newline trim applied to text output.
	Binary bool
	// RetryOnLock enables the lock-contention retry loop.
	RetryOnLock bool
}

const (
	maxLockRetries  = 8
	lockRetryDelay  = 250 * time.Millisecond
	staleLockMaxAge = 15 * time.Minute
	staleLockEnvVar = "GRAFT_REMOVE_STALE_LOCK"
)

var lockContentionMarkers = []string{
	"index.lock",
	"unable to create",
	"another git process",
}

// Run invokes git with argv in dir and returns its stdout.
func Run(ctx context.Context, dir string, argv []string, opts RunOptions) ([]byte, error) {
	var lastErr error
	attempts := 1
	if opts.RetryOnLock {
		attempts = maxLockRetries
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		stdout, stderr, err := run(ctx, dir, argv)
		if err == nil {
			if opts.Binary {
				return stdout, nil
			}
			return bytes.TrimRight(stdout, "\n"), nil
		}

		lastErr = fmt.Errorf("git %s: %w: %s", strings.Join(argv, " "), err, strings.TrimSpace(stderr.String()))

		if !opts.RetryOnLock || !isLockContention(stderr.String()) || attempt == attempts {
			return nil, lastErr
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * lockRetryDelay):
		}
	}

	return nil, lastErr
}

func run(ctx context.Context, dir string, argv []string) ([]byte, bytes.Buffer, error) {
	cmd := exec.CommandContext(ctx, "git", argv...)
	cmd.Dir = dir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr, err
}

func isLockContention(stderr string) bool {
	low := strings.ToLower(stderr)
	for _, marker := range lockContentionMarkers {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}

// WarnStaleLock is graft's startup check for the target worktree: if
// <worktree>/.git/index.lock exists it warns that a concurrent git process
// may be running. The lock is removed only when the GRAFT_REMOVE_STALE_LOCK
// opt-in is set and the lock is older than 15 minutes. Called once from
// cmd/graft before any work starts, not per git invocation.
func WarnStaleLock(worktree string) {
	lockPath := filepath.Join(worktree, ".git", "index.lock")
	info, err := os.Stat(lockPath)
	if err != nil {
		return
	}

	age := time.Since(info.ModTime())
	fmt.Printf("warning: %s exists (age %s); a concurrent git process may be running\n", lockPath, age.Round(time.Second))

	if os.Getenv(staleLockEnvVar) == "" || age < staleLockMaxAge {
		return
	}

	if err := os.Remove(lockPath); err != nil {
		fmt.Printf("warning: failed to remove stale lock %s: %v\n", lockPath, err)
		return
	}
	fmt.Printf("removed stale lock %s (age %s)\n", lockPath, age.Round(time.Second))
}
