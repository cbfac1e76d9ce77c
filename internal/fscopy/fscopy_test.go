package fscopy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTree_CopiesRegularFiles(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Tree(src, dst); err != nil {
		t.Fatalf("Tree() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil || string(got) != "hello" {
		t.Errorf("a.txt = %q, %v", got, err)
	}
	got, err = os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	if err != nil || string(got) != "world" {
		t.Errorf("sub/b.txt = %q, %v", got, err)
	}
}

func TestTree_ExcludesNamedTopLevelEntry(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	if err := os.MkdirAll(filepath.Join(src, ".git", "objects"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, ".git", "objects", "pack"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Tree(src, dst, ".git"); err != nil {
		t.Fatalf("Tree() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dst, ".git")); !os.IsNotExist(err) {
		t.Errorf(".git was not excluded: stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "README.md")); err != nil {
		t.Errorf("README.md missing: %v", err)
	}
}

func TestTree_PreservesTimestamps(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	path := filepath.Join(src, "a.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Tree(src, dst); err != nil {
		t.Fatalf("Tree() error = %v", err)
	}

	wantInfo, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(src): %v", err)
	}
	gotInfo, err := os.Stat(filepath.Join(dst, "a.txt"))
	if err != nil {
		t.Fatalf("Stat(dst): %v", err)
	}
	if !gotInfo.ModTime().Equal(wantInfo.ModTime()) {
		t.Errorf("ModTime() = %v, want %v", gotInfo.ModTime(), wantInfo.ModTime())
	}
}
