// Package ninjalog recomputes per-output command hashes and mtimes in
// ninja's tab-delimited execution log (.ninja_log) so a copied build cache
// is not immediately considered stale or mismatched at its new location.
package ninjalog

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/rapidhash"
)

const fieldCount = 5

// Rewrite reads the ninja execution log at path and rewrites it in place.
// commands maps an output path (as recorded in the log, or its absolute
// form joined with buildDir) to the canonical command string that produces
// it, as reported by the build tool's compilation-database emitter.
//
// Comment lines (leading '#') and blank lines are passed through unchanged.
// For each data line: the mtime field is replaced with the output file's
// current nanosecond mtime if that file exists, otherwise left untouched;
// the hash field is replaced with rapidhash(command) in hex if a command is
// known for the output, otherwise left untouched.
func Rewrite(path, buildDir string, commands map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	out, err := rewrite(data, buildDir, commands)
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}

	// Replace via a sibling temp file so a failure mid-write can't leave the
	// log truncated.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func rewrite(data []byte, buildDir string, commands map[string]string) ([]byte, error) {
	trailingNewline := len(data) > 0 && data[len(data)-1] == '\n'

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		if !first {
			out.WriteByte('\n')
		}
		first = false

		line := scanner.Text()
		out.WriteString(rewriteLine(line, buildDir, commands))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if trailingNewline {
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

func rewriteLine(line, buildDir string, commands map[string]string) string {
	if line == "" || strings.HasPrefix(line, "#") {
		return line
	}

	fields := strings.Split(line, "\t")
	if len(fields) != fieldCount {
		// Not a record this rehasher understands; pass it through rather
		// than risk corrupting a format addition it doesn't know about.
		return line
	}

	startMs, endMs, mtimeNs, output, hash := fields[0], fields[1], fields[2], fields[3], fields[4]

	if current, err := statMtimeNs(filepath.Join(buildDir, output)); err == nil {
		mtimeNs = strconv.FormatInt(current, 10)
	}

	if command, ok := lookupCommand(commands, buildDir, output); ok {
		hash = fmt.Sprintf("%x", rapidhash.Sum64([]byte(command)))
	}

	return strings.Join([]string{startMs, endMs, mtimeNs, output, hash}, "\t")
}

func lookupCommand(commands map[string]string, buildDir, output string) (string, bool) {
	if command, ok := commands[output]; ok {
		return command, true
	}
	command, ok := commands[filepath.Join(buildDir, output)]
	return command, ok
}

func statMtimeNs(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}
