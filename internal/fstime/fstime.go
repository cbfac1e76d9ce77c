// Package fstime reads and applies file access/modification times at
// nanosecond resolution, the precision ninja and CMake's staleness checks
// rely on and that os.FileInfo.ModTime alone can't give back for atime.
package fstime

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Times is an (atime, mtime) pair read from or destined for a file.
type Times struct {
	Atime time.Time
	Mtime time.Time
}

// Stat returns path's current (atime, mtime) at nanosecond resolution.
func Stat(path string) (Times, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Times{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Times{
		Atime: time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mtime: time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
	}, nil
}

// Apply sets path's (atime, mtime) to t.
func Apply(path string, t Times) error {
	if err := os.Chtimes(path, t.Atime, t.Mtime); err != nil {
		return fmt.Errorf("chtimes %s: %w", path, err)
	}
	return nil
}
