// Package multiagentutil holds the line-delimited file helpers used
// by the session index. It is the
// generalized survivor of the teacher's multiagent package, which used
// the same tailing logic to watch a running sub-agent's own JSONL
// transcript; here there is no sub-agent, only the CLI's on-disk
// history, but the file shape and the "never fail on a missing or
// truncated file" contract are identical.
package multiagentutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TailFileLines returns up to maxLines of text, reading at most the
// last maxBytes of the file to bound memory on files that grow
// unboundedly (a long-lived history.jsonl). A maxLines of 0 means no
// line limit (only the byte bound applies); a negative maxLines means
// 50. A missing file yields a nil slice, not an error.
func TailFileLines(path string, maxLines int, maxBytes int) ([]string, error) {
	if maxLines < 0 {
		maxLines = 50
	}
	if maxBytes <= 0 {
		maxBytes = 128 * 1024
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	var offset int64
	if size > int64(maxBytes) {
		offset = size - int64(maxBytes)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		// Drop the first partial line so a byte-bounded read never
		// shows a line torn in half.
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			data = data[idx+1:]
		}
	}

	if len(data) == 0 {
		return nil, nil
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if maxLines == 0 || len(lines) <= maxLines {
		return lines, nil
	}
	return lines[len(lines)-maxLines:], nil
}

// ParseJSONLLines decodes each non-blank line as a T, skipping and
// counting lines that fail to unmarshal.
func ParseJSONLLines[T any](lines []string) ([]T, int) {
	out := make([]T, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			skipped++
			continue
		}
		out = append(out, item)
	}
	return out, skipped
}

// TailJSONL tails a file and parses every surviving line as a T in
// one step.
func TailJSONL[T any](path string, maxLines int, maxBytes int) ([]T, error) {
	lines, err := TailFileLines(path, maxLines, maxBytes)
	if err != nil || len(lines) == 0 {
		return nil, err
	}
	out, _ := ParseJSONLLines[T](lines)
	return out, nil
}

// GlobContaining lists files directly inside dir whose name contains
// needle. A missing dir yields an empty, errorless result.
func GlobContaining(dir, needle string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), needle) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
