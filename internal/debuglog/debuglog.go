// Package debuglog gates the per-file skip messages spec.md §7 calls
// "logged at debug level, not fatal" behind --verbose, using plain log.Printf
// rather than pulling in a leveled logging library the teacher doesn't use.
package debuglog

import (
	"log"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose toggles whether Printf actually writes anything. Called once
// from cmd/graft's RunE based on the --verbose flag.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Printf logs tag-prefixed output like log.Printf, but only when verbose
// mode is enabled.
func Printf(format string, args ...any) {
	if verbose.Load() {
		log.Printf(format, args...)
	}
}
