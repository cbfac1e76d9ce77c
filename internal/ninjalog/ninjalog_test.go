package ninjalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeebo/rapidhash"
)

func writeLog(t *testing.T, content string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, ".ninja_log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path, dir
}

func TestRewrite_Scenario(t *testing.T) {
	t.Parallel()
	path, dir := writeLog(t, "1\t2\t1000\tfoo.o\tdeadbeef\n")

	outputPath := filepath.Join(dir, "foo.o")
	if err := os.WriteFile(outputPath, []byte("object"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	mtime := time.Unix(0, 5000000000)
	if err := os.Chtimes(outputPath, mtime, mtime); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	commands := map[string]string{"foo.o": "cc -c foo.c"}
	if err := Rewrite(path, dir, commands); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	wantHash := fmt.Sprintf("%x", rapidhash.Sum64([]byte("cc -c foo.c")))
	want := fmt.Sprintf("1\t2\t5000000000\tfoo.o\t%s\n", wantHash)
	if string(got) != want {
		t.Errorf("Rewrite() =\n%q\nwant\n%q", got, want)
	}
}

func TestRewrite_UnknownCommandKeepsOldHash(t *testing.T) {
	t.Parallel()
	path, dir := writeLog(t, "1\t2\t1000\tbar.o\tcafef00d\n")

	if err := Rewrite(path, dir, map[string]string{}); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "1\t2\t1000\tbar.o\tcafef00d\n"
	if string(got) != want {
		t.Errorf("Rewrite() =\n%q\nwant\n%q", got, want)
	}
}

func TestRewrite_MissingOutputKeepsOldMtime(t *testing.T) {
	t.Parallel()
	path, dir := writeLog(t, "1\t2\t1000\tmissing.o\tdeadbeef\n")

	if err := Rewrite(path, dir, map[string]string{}); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "1\t2\t1000\tmissing.o\tdeadbeef\n"
	if string(got) != want {
		t.Errorf("Rewrite() =\n%q\nwant\n%q", got, want)
	}
}

func TestRewrite_CommentsAndBlankLinesPassThrough(t *testing.T) {
	t.Parallel()
	content := "# ninja log v5\n\n1\t2\t1000\tfoo.o\tdeadbeef\n"
	path, dir := writeLog(t, content)

	if err := Rewrite(path, dir, map[string]string{}); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != content {
		t.Errorf("Rewrite() =\n%q\nwant\n%q", got, content)
	}
}

func TestRewrite_LookupByAbsoluteForm(t *testing.T) {
	t.Parallel()
	path, dir := writeLog(t, "1\t2\t1000\tfoo.o\tdeadbeef\n")

	commands := map[string]string{
		filepath.Join(dir, "foo.o"): "cc -c foo.c",
	}
	if err := Rewrite(path, dir, commands); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	wantHash := fmt.Sprintf("%x", rapidhash.Sum64([]byte("cc -c foo.c")))
	want := fmt.Sprintf("1\t2\t1000\tfoo.o\t%s\n", wantHash)
	if string(got) != want {
		t.Errorf("Rewrite() =\n%q\nwant\n%q", got, want)
	}
}

func TestRewrite_NoTrailingNewlinePreserved(t *testing.T) {
	t.Parallel()
	content := "1\t2\t1000\tbar.o\tcafef00d"
	path, dir := writeLog(t, content)

	if err := Rewrite(path, dir, map[string]string{}); err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != content {
		t.Errorf("Rewrite() =\n%q\nwant\n%q", got, content)
	}
}
