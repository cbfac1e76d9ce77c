// Package submodule reconstitutes standalone nested working copies from a
// parent repository's shared modules store and re-pins each to the commit
// the target branch actually records (spec.md §4.5).
//
// This is deliberately not delegated to the version-control tool's
// submodule-update command: that command writes into the shared modules
// configuration, which graft never mutates (it is owned by the source
// worktree).
package submodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mavam/graft/internal/gitcmd"
)

const manifestFile = ".gitmodules"

// Descriptor is one entry of the submodule manifest: a name (the manifest
// key, which may itself contain dots), the checkout's relative path under a
// worktree root, and its configured remote (empty if the manifest doesn't
// record one).
type Descriptor struct {
	Name    string
	RelPath string
	URL     string
}

// ParseManifest parses the submodule manifest at worktreeRoot/.gitmodules
// via `git config --file .gitmodules --get-regexp`, returning one
// Descriptor per submodule name in manifest order. A missing manifest
// yields (nil, nil), not an error — most worktrees have no submodules.
func ParseManifest(ctx context.Context, worktreeRoot string) ([]Descriptor, error) {
	if _, err := os.Stat(filepath.Join(worktreeRoot, manifestFile)); err != nil {
		return nil, nil
	}

	out, err := gitcmd.Run(ctx, worktreeRoot,
		[]string{"config", "--file", manifestFile, "--get-regexp", `^submodule\..*\.(path|url)$`},
		gitcmd.RunOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", manifestFile, err)
	}

	byName := make(map[string]*Descriptor)
	var order []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		name, field, ok := splitManifestKey(key)
		if !ok {
			continue
		}
		d, seen := byName[name]
		if !seen {
			d = &Descriptor{Name: name}
			byName[name] = d
			order = append(order, name)
		}
		switch field {
		case "path":
			d.RelPath = value
		case "url":
			d.URL = value
		}
	}

	descriptors := make([]Descriptor, 0, len(order))
	for _, name := range order {
		descriptors = append(descriptors, *byName[name])
	}
	return descriptors, nil
}

// splitManifestKey splits a "submodule.<name>.path" or
// "submodule.<name>.url" config key into (name, field). name may itself
// contain dots, so the split is on the fixed "submodule." prefix and the
// trailing ".path"/".url" suffix, never on every dot in the key.
func splitManifestKey(key string) (name, field string, ok bool) {
	const prefix = "submodule."
	if !strings.HasPrefix(key, prefix) {
		return "", "", false
	}
	rest := key[len(prefix):]
	switch {
	case strings.HasSuffix(rest, ".path"):
		return strings.TrimSuffix(rest, ".path"), "path", true
	case strings.HasSuffix(rest, ".url"):
		return strings.TrimSuffix(rest, ".url"), "url", true
	default:
		return "", "", false
	}
}
