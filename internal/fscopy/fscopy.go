// Package fscopy implements the directory-tree copy shared by the
// build-cache fixup task (a plain directory copy) and the submodule
// grafter (a working-tree copy with the nested .git directory excluded and
// copied separately under different rules) — the same walk-and-copy shape
// applied with a different exclusion set.
package fscopy

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mavam/graft/internal/fstime"
)

// Tree recursively copies src to dst, preserving file mode and
// (atime, mtime) on regular files, recreating symlinks as symlinks, and
// creating directories as needed. Any direct child of src named in exclude
// is skipped entirely (and, if a directory, not descended into).
func Tree(src, dst string, exclude ...string) error {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && skip[topComponent(rel)] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linkTarget, target)
		case info.Mode().IsRegular():
			return File(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

// File copies src to dst with perm, then restores src's (atime, mtime) on
// dst. A failure to read back the source timestamps (e.g. the source
// vanished between stat and copy) is not treated as a copy failure.
func File(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	times, err := fstime.Stat(src)
	if err != nil {
		return nil
	}
	return fstime.Apply(dst, times)
}

func topComponent(rel string) string {
	if idx := strings.IndexRune(rel, filepath.Separator); idx >= 0 {
		return rel[:idx]
	}
	return rel
}
