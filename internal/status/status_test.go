package status

import (
	"bytes"
	"strings"
	"testing"
)

func newNonInteractive(names []string, captions map[string]string) (*Display, *bytes.Buffer) {
	d := New(names, captions)
	var buf bytes.Buffer
	d.out = &buf
	d.interactive = false
	return d, &buf
}

func TestDisplay_NonInteractiveLogsTransitions(t *testing.T) {
	t.Parallel()
	d, buf := newNonInteractive([]string{"fixup", "submodules"}, map[string]string{
		"fixup":      "fixing build cache",
		"submodules": "grafting submodules",
	})
	d.Start()
	defer d.Stop()

	d.SetActive("fixup")
	d.SetDone("fixup", "fixed 3 build directories")
	d.SetActive("submodules")

	out := buf.String()
	if !strings.Contains(out, "fixup") || !strings.Contains(out, "fixing build cache") {
		t.Errorf("missing active transition in output: %q", out)
	}
	if !strings.Contains(out, "fixed 3 build directories") {
		t.Errorf("missing replaced caption on done: %q", out)
	}
	if !strings.Contains(out, "submodules") {
		t.Errorf("missing second item transition: %q", out)
	}
}

func TestDisplay_UnknownNameIsNoOp(t *testing.T) {
	t.Parallel()
	d, buf := newNonInteractive([]string{"fixup"}, nil)
	d.Start()
	defer d.Stop()

	d.SetActive("does-not-exist")
	if buf.Len() != 0 {
		t.Errorf("expected no output for unknown item, got %q", buf.String())
	}
}

func TestDisplay_LogPrintsMessage(t *testing.T) {
	t.Parallel()
	d, buf := newNonInteractive([]string{"fixup"}, nil)
	d.Start()
	defer d.Stop()

	d.Log("warning: %s", "stale lock detected")

	if !strings.Contains(buf.String(), "warning: stale lock detected") {
		t.Errorf("Log() output = %q", buf.String())
	}
}

func TestDisplay_StartStopInteractiveHidesAndRestoresCursor(t *testing.T) {
	t.Parallel()
	d := New([]string{"fixup"}, nil)
	var buf bytes.Buffer
	d.out = &buf
	d.interactive = true

	d.Start()
	d.SetActive("fixup")
	d.SetDone("fixup", "")
	d.Stop()

	out := buf.String()
	if !strings.Contains(out, "\033[?25l") {
		t.Errorf("expected cursor-hide escape sequence, got %q", out)
	}
	if !strings.Contains(out, "\033[?25h") {
		t.Errorf("expected cursor-restore escape sequence, got %q", out)
	}
}
