// Package buildtree discovers ninja/CMake build directories under a
// worktree root and partitions them into the set that needs to be copied
// from source and the set that needs its embedded paths fixed, and invokes
// the build tool's own compilation-database emitter to learn the canonical
// command string behind each output.
package buildtree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// patterns a build directory entry may match, relative to a worktree root.
var patterns = []string{"build", ".build", "_build"}

// Entries lists every path below root matching one of the recognized build
// directory patterns (build, build/*, .build, _build), with any entry that
// is an ancestor of another listed entry removed — a parent build
// directory already covers everything below it.
func Entries(root string) ([]string, error) {
	var found []string

	for _, pattern := range patterns {
		top := filepath.Join(root, pattern)
		if info, err := os.Stat(top); err == nil && info.IsDir() {
			found = append(found, top)
		}
	}

	buildGlob := filepath.Join(root, "build", "*")
	matches, err := filepath.Glob(buildGlob)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", buildGlob, err)
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			found = append(found, m)
		}
	}

	return removeNestedEntries(found), nil
}

// removeNestedEntries drops any path that is a strict descendant of
// another path in the list, keeping only topmost entries.
func removeNestedEntries(paths []string) []string {
	sort.Strings(paths)

	var kept []string
	for _, p := range paths {
		isNested := false
		for _, k := range kept {
			if isUnder(p, k) {
				isNested = true
				break
			}
		}
		if !isNested {
			kept = append(kept, p)
		}
	}
	return kept
}

func isUnder(path, ancestor string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// Partition splits the build directory entries relative to sourceRoot and
// targetRoot into two lists: entries that exist in source but are missing
// in target (to copy), and entries that exist in target once the copy is
// done, whether freshly copied or pre-existing (to fix). Every to-copy entry
// therefore also appears in the to-fix list.
func Partition(sourceRoot, targetRoot string) (toCopy, toFix []string, err error) {
	sourceEntries, err := Entries(sourceRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("discover source build directories: %w", err)
	}

	for _, entry := range sourceEntries {
		rel, err := filepath.Rel(sourceRoot, entry)
		if err != nil {
			continue
		}
		targetEntry := filepath.Join(targetRoot, rel)
		if _, err := os.Stat(targetEntry); err != nil {
			toCopy = append(toCopy, targetEntry)
		}
	}

	targetEntries, err := Entries(targetRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("discover target build directories: %w", err)
	}
	toFix = append(toFix, targetEntries...)
	for _, copied := range toCopy {
		if !contains(toFix, copied) {
			toFix = append(toFix, copied)
		}
	}

	return toCopy, toFix, nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// compdbEntry mirrors the subset of ninja's `-t compdb` JSON output graft
// needs: the canonical command string and the output path it produces.
type compdbEntry struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	Output    string `json:"output"`
}

// CompDB invokes `ninja -t compdb` inside buildDir and returns a mapping
// from output path to the canonical command string that produces it.
// Entries without an output field are skipped; they cannot be looked up by
// the ninja-log rehasher.
func CompDB(ctx context.Context, buildDir string) (map[string]string, error) {
	cmd := exec.CommandContext(ctx, "ninja", "-t", "compdb")
	cmd.Dir = buildDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ninja -t compdb in %s: %w: %s", buildDir, err, stderr.String())
	}

	return parseCompDB(stdout.Bytes())
}

func parseCompDB(data []byte) (map[string]string, error) {
	var entries []compdbEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse compdb output: %w", err)
	}

	commands := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Output == "" {
			continue
		}
		commands[e.Output] = e.Command
	}
	return commands, nil
}
