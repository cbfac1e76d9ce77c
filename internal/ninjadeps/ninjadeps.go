// Package ninjadeps rewrites embedded absolute paths inside ninja's binary
// dependency database (.ninja_deps) so a copied build cache is valid for a
// new worktree location.
//
// The database is a newline-terminated signature line, a 4-byte version,
// and then a stream of records. Each record is a u32 length, followed by
// `length` bytes holding a NUL-terminated string zero-padded to a 4-byte
// boundary, followed unconditionally by a fixed 4-byte id (not counted in
// length). Rewriting must preserve record framing exactly — textual
// substitution across the whole file would shift every byte after the
// first match and corrupt the length-prefixed structure that follows.
package ninjadeps

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

const idSize = 4

// Patch rewrites every occurrence of source inside a record's string field
// with target, in place. If source does not occur anywhere in path, the
// file is left byte-identical (no write occurs at all). Malformed record
// tails (a length that would overrun the file, or a string field missing
// its NUL terminator) are copied through verbatim from that point on,
// rather than risk corrupting a format graft does not fully understand.
func Patch(path string, source, target []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if !bytes.Contains(data, source) {
		return nil
	}

	out, changed, err := rewrite(data, source, target)
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	if !changed {
		return nil
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// rewrite scans data record by record, starting after the header, and
// returns the rewritten bytes plus whether anything actually changed.
//
// A record on disk is: u32 length, length bytes of (NUL-terminated string +
// zero padding to a 4-byte boundary), then an unconditional, fixed 4-byte
// id that is not counted in length.
func rewrite(data, source, target []byte) ([]byte, bool, error) {
	headerEnd := bytes.IndexByte(data, '\n')
	if headerEnd < 0 || headerEnd+1+4 > len(data) {
		// No recognizable header: leave the file untouched rather than guess.
		return data, false, nil
	}
	headerLen := headerEnd + 1 + 4

	out := make([]byte, 0, len(data))
	out = append(out, data[:headerLen]...)

	changed := false
	cursor := headerLen

	for cursor < len(data) {
		if cursor+4 > len(data) {
			// Malformed tail: copy the remainder through verbatim.
			out = append(out, data[cursor:]...)
			break
		}
		length := binary.LittleEndian.Uint32(data[cursor : cursor+4])
		recordStart := cursor
		strFieldStart := cursor + 4
		strFieldEnd := strFieldStart + int(length)
		idEnd := strFieldEnd + idSize

		if idEnd > len(data) {
			out = append(out, data[recordStart:]...)
			break
		}

		strField := data[strFieldStart:strFieldEnd]
		id := data[strFieldEnd:idEnd]

		nulIdx := bytes.IndexByte(strField, 0)
		if nulIdx < 0 {
			// No NUL terminator: malformed, copy through verbatim.
			out = append(out, data[recordStart:]...)
			break
		}
		str := strField[:nulIdx]

		if !bytes.Contains(str, source) {
			out = append(out, data[recordStart:idEnd]...)
			cursor = idEnd
			continue
		}

		changed = true
		newStr := bytes.ReplaceAll(str, source, target)

		newStrField := make([]byte, len(newStr)+1)
		copy(newStrField, newStr)
		padding := (4 - len(newStrField)%4) % 4
		newStrField = append(newStrField, make([]byte, padding)...)

		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(newStrField)))
		out = append(out, lenBuf[:]...)
		out = append(out, newStrField...)
		out = append(out, id...)

		cursor = idEnd
	}

	return out, changed, nil
}
