// Package props merges generated key/value pairs into hand-edited
// `key = value` properties files such as gradle.properties.
//
// The merge is line based. Nothing outside the lines it rewrites is touched,
// so comments, blank lines, ordering and unknown keys survive byte for byte.
//
// A matched key is rewritten as `key = value`, except when the line is active
// and already carries the generated value: it is then kept as written. Keys
// are appended as `key=value`, so without that exception a second merge would
// reformat every appended line and the merge would not be idempotent.
package props

import (
	"bytes"
	"os"
	"strings"

	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/fsutil"
)

// lineKind classifies a single properties line.
type lineKind int

const (
	lineOther lineKind = iota
	lineKey
	lineCommentedKey
)

type line struct {
	kind  lineKind
	key   string
	value string
}

// classify extracts the candidate key of a line. A key is the text before
// the first '=', trimmed; a leading '#' marks a commented (disabled) key.
func classify(raw string) line {
	idx := strings.IndexByte(raw, '=')
	if idx < 0 {
		return line{kind: lineOther}
	}
	key := strings.TrimSpace(raw[:idx])
	kind := lineKey
	if strings.HasPrefix(key, "#") {
		key = strings.TrimSpace(key[1:])
		kind = lineCommentedKey
	}
	if key == "" {
		return line{kind: lineOther}
	}
	return line{kind: kind, key: key, value: strings.TrimSpace(raw[idx+1:])}
}

// MergeLines merges generated into lines and returns the new lines.
//
// The first line (by order) whose key, active or commented, matches a pending
// generated key takes the generated value and the key stops being pending;
// later occurrences are copied verbatim. An active line that already carries
// the generated value is copied verbatim too, which makes the merge
// idempotent. Keys that never matched are appended as key=value in map order.
func MergeLines(lines []string, generated *Map) ([]string, error) {
	if err := validate(generated); err != nil {
		return nil, err
	}

	pending := generated.Clone()
	out := make([]string, 0, len(lines)+pending.Len())
	for _, raw := range lines {
		l := classify(raw)
		if l.kind == lineOther {
			out = append(out, raw)
			continue
		}
		want, ok := pending.Get(l.key)
		if !ok {
			out = append(out, raw)
			continue
		}
		pending.Delete(l.key)
		if l.kind == lineKey && l.value == strings.TrimSpace(want) {
			out = append(out, raw)
			continue
		}
		out = append(out, l.key+" = "+want)
	}

	pending.Range(func(k, v string) bool {
		out = append(out, k+"="+v)
		return true
	})
	return out, nil
}

// Merge rewrites the properties file at path with generated merged in. A
// missing file is treated as empty.
func Merge(path string, generated *Map) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errkind.WithPath(errkind.KindOf(err), path, err)
	}

	merged, err := MergeLines(SplitLines(string(data)), generated)
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(path, JoinLines(merged), 0644); err != nil {
		return errkind.WithPath(errkind.KindOf(err), path, err)
	}
	return nil
}

// SplitLines splits text into lines. A trailing newline does not produce a
// final empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// JoinLines terminates every line with a newline.
func JoinLines(lines []string) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func validate(m *Map) error {
	var err error
	m.Range(func(k, v string) bool {
		switch {
		case strings.TrimSpace(k) != k || k == "":
			err = errkind.New(errkind.InvalidData, "invalid property key %q", k)
		case strings.ContainsAny(k, "=#\n\r"):
			err = errkind.New(errkind.InvalidData, "property key %q contains a reserved character", k)
		case strings.ContainsAny(v, "\n\r"):
			err = errkind.New(errkind.InvalidData, "value of property %q spans multiple lines", k)
		}
		return err == nil
	})
	return err
}
