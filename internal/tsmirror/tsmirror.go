// Package tsmirror copies (atime, mtime) from a source working copy onto
// the corresponding files of a freshly checked out target, so a build
// system's staleness checks see the same file ages it saw in source rather
// than "everything just changed."
package tsmirror

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mavam/graft/internal/debuglog"
	"github.com/mavam/graft/internal/fstime"
	"github.com/mavam/graft/internal/workerpool"
)

const poolWidth = 8

// Mirror walks every regular, non-symlink file under source and, if the
// corresponding relative path exists under target, applies source's
// (atime, mtime) to it. Per-file errors (missing counterpart, permission,
// stat failure) are swallowed rather than failing the whole walk — only a
// structural failure of the walk itself is returned.
func Mirror(source, target string) error {
	var files []string
	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
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
		if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", source, err)
	}

	return workerpool.RunEach(files, poolWidth, func(sourcePath string) error {
		mirrorOne(source, target, sourcePath)
		return nil
	})
}

// mirrorOne applies sourcePath's timestamps onto its counterpart under
// target. Any failure is intentionally discarded: a missing or unstat-able
// counterpart is not a task failure, per the per-file-skip error policy.
func mirrorOne(source, target, sourcePath string) {
	rel, err := filepath.Rel(source, sourcePath)
	if err != nil {
		debuglog.Printf("[tsmirror] skip %s: %v", sourcePath, err)
		return
	}
	targetPath := filepath.Join(target, rel)
	if _, err := os.Lstat(targetPath); err != nil {
		debuglog.Printf("[tsmirror] skip %s: no counterpart in target", rel)
		return
	}

	times, err := fstime.Stat(sourcePath)
	if err != nil {
		debuglog.Printf("[tsmirror] skip %s: %v", rel, err)
		return
	}
	if err := fstime.Apply(targetPath, times); err != nil {
		debuglog.Printf("[tsmirror] skip %s: %v", rel, err)
	}
}
