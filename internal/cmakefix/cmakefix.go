// Package cmakefix rewrites embedded source-path byte sequences to
// target-path byte sequences inside every regular text file under a build
// directory, the way CMake-generated rule files, compile-command caches,
// and configured headers need to be rewritten for a copied build tree to
// resolve correctly at its new location.
package cmakefix

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/mavam/graft/internal/debuglog"
	"github.com/mavam/graft/internal/fstime"
	"github.com/mavam/graft/internal/workerpool"
)

const poolWidth = 8

// Fix walks every regular, non-symlink file under buildDir and rewrites any
// occurrence of source with target, preserving the file's (atime, mtime) on
// files it rewrites and leaving files it decides are binary (fail UTF-8
// decoding) or that do not contain source untouched.
func Fix(buildDir string, source, target []byte) error {
	var files []string
	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
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
		return fmt.Errorf("walk %s: %w", buildDir, err)
	}

	return workerpool.RunEach(files, poolWidth, fixFile(source, target))
}

func fixFile(source, target []byte) func(path string) error {
	return func(path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		if !utf8.Valid(data) {
			debuglog.Printf("[cmakefix] skip %s: not valid UTF-8", path)
			return nil
		}
		if !bytes.Contains(data, source) {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		times, err := fstime.Stat(path)
		if err != nil {
			return err
		}

		rewritten := bytes.ReplaceAll(data, source, target)
		if err := os.WriteFile(path, rewritten, info.Mode().Perm()); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		return fstime.Apply(path, times)
	}
}
