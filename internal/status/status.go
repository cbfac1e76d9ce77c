// Package status renders a thread-safe multi-item progress display: a
// pending/active/done list redrawn in place on an interactive terminal, or
// a quiescent line-per-transition log when output isn't a smart terminal
// (piped output, CI). The mode depends only on whether stdout is a
// terminal; --verbose does not switch a terminal to the line-per-transition
// log. Mutation is serialized by a single mutex,
// the only shared-mutable object in graft (spec.md §5).
package status

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// State is an item's place in its pending -> active -> done lifecycle.
type State int

const (
	Pending State = iota
	Active
	Done
)

func (s State) glyph() string {
	switch s {
	case Active:
		return "●"
	case Done:
		return "✓"
	default:
		return "○"
	}
}

// Item is one subtask line in the display.
type Item struct {
	Name    string
	Caption string
	state   State
	start   time.Time
}

const frameInterval = 125 * time.Millisecond // ~8Hz

// Display is the orchestrator's one piece of shared mutable state. All
// methods are safe for concurrent use.
type Display struct {
	mu          sync.Mutex
	items       []*Item
	index       map[string]int
	out         io.Writer
	interactive bool
	linesDrawn  int
	cursorBelow bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New constructs a display for the given items, all initially pending
// except the first of each task which the caller marks Active via
// SetActive after construction (spec.md §4.8: "the first subtask of each
// task marked active and the rest pending").
func New(names []string, captions map[string]string) *Display {
	d := &Display{
		out:         os.Stdout,
		interactive: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		index:       make(map[string]int, len(names)),
	}
	for i, name := range names {
		d.items = append(d.items, &Item{Name: name, Caption: captions[name]})
		d.index[name] = i
	}
	return d
}

// Start hides the cursor (interactive mode only) and begins the ~8Hz
// render loop. In non-interactive mode (stdout is not a terminal) the loop
// is quiescent; transitions are logged as single lines instead of animated.
// --verbose does not select this mode.
func (d *Display) Start() {
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	if !d.interactive {
		close(d.done)
		return
	}

	fmt.Fprint(d.out, "\033[?25l") // hide cursor
	go d.renderLoop()
}

// Stop halts the render loop and restores the cursor, even if called after
// a failure — the hide/restore pair is scoped exactly like a resource
// acquisition (spec.md §5). Safe to call more than once (e.g. once from an
// interrupt handler racing the orchestrator's own deferred Stop) and safe to
// call concurrently with itself; only the first call does anything.
func (d *Display) Stop() {
	if d.stop == nil {
		return
	}
	d.stopOnce.Do(func() {
		close(d.stop)
		<-d.done
		if d.interactive {
			fmt.Fprint(d.out, "\033[?25h") // restore cursor
		}
	})
}

func (d *Display) renderLoop() {
	defer close(d.done)
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			d.mu.Lock()
			d.redrawLocked()
			d.mu.Unlock()
			return
		case <-ticker.C:
			d.mu.Lock()
			d.redrawLocked()
			d.mu.Unlock()
		}
	}
}

// SetActive marks an item active and records when it became active; the
// rendered lines do not show that time.
func (d *Display) SetActive(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.index[name]; ok {
		d.items[i].state = Active
		d.items[i].start = time.Now()
	}
	d.afterMutationLocked(name)
}

// SetDone marks an item done, optionally replacing its caption (e.g. with a
// human-readable summary of what the subtask accomplished).
func (d *Display) SetDone(name, caption string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.index[name]; ok {
		d.items[i].state = Done
		if caption != "" {
			d.items[i].Caption = caption
		}
	}
	d.afterMutationLocked(name)
}

// afterMutationLocked must be called with mu held. In interactive mode the
// next tick will pick up the change; in non-interactive mode it prints the
// transition immediately as a single line.
func (d *Display) afterMutationLocked(name string) {
	if d.interactive {
		return
	}
	i, ok := d.index[name]
	if !ok {
		return
	}
	item := d.items[i]
	fmt.Fprintf(d.out, "[%s] %s %s\n", item.state.glyph(), item.Name, item.Caption)
}

// Log prints a message, clearing the rendered block first (if any) and
// redrawing it afterward so interleaved log output never corrupts
// unrelated scrollback (the "clear-on-log" rule, spec.md §5).
func (d *Display) Log(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clearLocked()
	fmt.Fprintf(d.out, format+"\n", args...)
	if d.interactive {
		d.redrawLocked()
	}
}

func (d *Display) clearLocked() {
	if !d.interactive || !d.cursorBelow {
		return
	}
	fmt.Fprintf(d.out, "\033[%dA\033[J", d.linesDrawn)
	d.cursorBelow = false
}

func (d *Display) redrawLocked() {
	d.clearLocked()
	for _, item := range d.items {
		fmt.Fprintf(d.out, "%s %s %s\n", item.state.glyph(), item.Name, item.Caption)
	}
	d.linesDrawn = len(d.items)
	d.cursorBelow = true
}
