package submodule

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitManifestKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		key       string
		wantName  string
		wantField string
		wantOK    bool
	}{
		{"submodule.vendor/libfoo.path", "vendor/libfoo", "path", true},
		{"submodule.tools.v1.2.path", "tools.v1.2", "path", true},
		{"submodule.tools.v1.2.url", "tools.v1.2", "url", true},
		{"submodule.foo.branch", "", "", false},
		{"not-a-submodule-key", "", "", false},
	}
	for _, c := range cases {
		name, field, ok := splitManifestKey(c.key)
		if name != c.wantName || field != c.wantField || ok != c.wantOK {
			t.Errorf("splitManifestKey(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.key, name, field, ok, c.wantName, c.wantField, c.wantOK)
		}
	}
}

func TestParseManifest_NoFile(t *testing.T) {
	t.Parallel()
	got, err := ParseManifest(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ParseManifest() = %v, want empty", got)
	}
}

func TestParseManifest_DottedName(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	manifest := "[submodule \"vendor.tools\"]\n\tpath = vendor/tools\n\turl = git@h:o/tools.git\n"
	if err := os.WriteFile(filepath.Join(root, manifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ParseManifest(context.Background(), root)
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	want := []Descriptor{{Name: "vendor.tools", RelPath: "vendor/tools", URL: "git@h:o/tools.git"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseManifest() = %+v, want %+v", got, want)
	}
}
