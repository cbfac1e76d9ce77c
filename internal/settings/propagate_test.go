package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestPropagate_CopiesSourceIntoEmptyTarget(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.json")
	targetPath := filepath.Join(dir, "target.json")

	if err := os.WriteFile(sourcePath, []byte(`{"trust": true}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Propagate(sourcePath, targetPath, "", ""); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	got := readJSON(t, targetPath)
	if got["trust"] != true {
		t.Errorf("target trust = %v, want true", got["trust"])
	}
}

func TestPropagate_MergesIntoExistingTarget(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.json")
	targetPath := filepath.Join(dir, "target.json")

	os.WriteFile(sourcePath, []byte(`{"trust": true}`), 0o644)
	os.WriteFile(targetPath, []byte(`{"existing": "keepme"}`), 0o644)

	if err := Propagate(sourcePath, targetPath, "", ""); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	got := readJSON(t, targetPath)
	if got["existing"] != "keepme" {
		t.Errorf("existing key lost during merge: %v", got)
	}
	if got["trust"] != true {
		t.Errorf("trust key not merged in: %v", got)
	}
}

func TestPropagate_InjectsTaskListID(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.json")
	targetPath := filepath.Join(dir, "target.json")

	os.WriteFile(sourcePath, []byte(`{}`), 0o644)

	err := Propagate(sourcePath, targetPath, "git@github.com:acme/widgets.git", "feat/new stuff")
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	got := readJSON(t, targetPath)
	env, ok := got["env"].(map[string]any)
	if !ok {
		t.Fatalf("env key missing or wrong type: %v", got)
	}
	if env[taskListIDKey] != "acme-widgets-feat-new-stuff" {
		t.Errorf("env.%s = %v, want %q", taskListIDKey, env[taskListIDKey], "acme-widgets-feat-new-stuff")
	}
}

func TestPropagate_WritesTwoSpaceIndentWithTrailingNewline(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.json")
	targetPath := filepath.Join(dir, "target.json")
	os.WriteFile(sourcePath, []byte(`{"a": 1}`), 0o644)

	if err := Propagate(sourcePath, targetPath, "", ""); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	raw, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if raw[len(raw)-1] != '\n' {
		t.Errorf("output does not end with a trailing newline")
	}
	if !containsTwoSpaceIndent(raw) {
		t.Errorf("output not 2-space indented: %s", raw)
	}
}

func TestPropagate_NoSourceFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "missing.json")
	targetPath := filepath.Join(dir, "target.json")
	os.WriteFile(targetPath, []byte(`{"existing": true}`), 0o644)

	if err := Propagate(sourcePath, targetPath, "", ""); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	got := readJSON(t, targetPath)
	if got["existing"] != true {
		t.Errorf("existing key lost: %v", got)
	}
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal(%s): %v", path, err)
	}
	return doc
}

func containsTwoSpaceIndent(data []byte) bool {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == '\n' && data[i+1] == ' ' {
			return true
		}
	}
	return false
}
