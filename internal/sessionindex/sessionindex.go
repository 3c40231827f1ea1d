// Package sessionindex reads the coding-agent CLI's on-disk session
// history and per-project transcripts. It never writes to either file
// — both are owned by the CLI subprocess — and it never fails loudly
// on a missing or partially corrupt file, because the CLI rotates and
// rewrites history independently of this bridge's lifecycle.
package sessionindex

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/lijiaxing1997/agentbridge/internal/multiagentutil"
)

// HistoryEntry is one record from history.jsonl.
type HistoryEntry struct {
	SessionID string `json:"sessionId"`
	Display   string `json:"display"`
	Timestamp int64  `json:"timestamp"`
	Project   string `json:"project"`
}

func (e HistoryEntry) valid() bool {
	return e.SessionID != "" && e.Project != ""
}

// TranscriptMessage is one exchange from a session transcript file.
type TranscriptMessage struct {
	Role string `json:"role"` // "user" | "assistant"
	Text string `json:"text"`
}

// Index resolves sessions against a single agent-config directory.
type Index struct {
	configDir string

	maxLines int
	maxBytes int
}

const (
	defaultMaxLines = 2000
	defaultMaxBytes = 4 * 1024 * 1024

	// FormatHealthThreshold is the fraction of unparseable history
	// lines above which CheckFormatHealth reports a warning (spec §7).
	FormatHealthThreshold = 0.5
)

// New builds an Index rooted at configDir (the directory containing
// history.jsonl and the per-project transcripts directory).
func New(configDir string) *Index {
	return &Index{configDir: configDir, maxLines: defaultMaxLines, maxBytes: defaultMaxBytes}
}

func (ix *Index) historyPath() string {
	return filepath.Join(ix.configDir, "history.jsonl")
}

func (ix *Index) readHistory() ([]HistoryEntry, int, error) {
	all, err := multiagentutil.TailFileLines(ix.historyPath(), ix.maxLines, ix.maxBytes)
	if err != nil || len(all) == 0 {
		return nil, 0, err
	}

	entries, parseErrs := multiagentutil.ParseJSONLLines[HistoryEntry](all)
	out := entries[:0]
	for _, e := range entries {
		if e.valid() {
			out = append(out, e)
		} else {
			parseErrs++
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, parseErrs, nil
}

// GetLatestSession returns the most recent session id whose project
// equals directory (already canonicalized by the caller), or "" if
// none exists.
func (ix *Index) GetLatestSession(directory string) (string, error) {
	entries, _, err := ix.readHistory()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Project == directory {
			return e.SessionID, nil
		}
	}
	return "", nil
}

// ListSessions returns up to limit history entries, newest first,
// optionally filtered by directory. An empty directory means no
// filter.
func (ix *Index) ListSessions(directory string, limit int) ([]HistoryEntry, error) {
	entries, _, err := ix.readHistory()
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, limit)
	for _, e := range entries {
		if directory != "" && e.Project != directory {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// FindSessionById is a linear lookup helper over a previously fetched
// entry slice.
func FindSessionById(entries []HistoryEntry, sessionID string) (HistoryEntry, bool) {
	for _, e := range entries {
		if e.SessionID == sessionID {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

// transcriptPath locates the per-project transcript file whose name
// contains sessionID, per spec §6.2 ("one more JSON-lines file whose
// filename contains the sessionId").
func (ix *Index) transcriptPath(sessionID, projectDir string) (string, error) {
	dir := filepath.Join(ix.configDir, "transcripts", sanitizeProjectComponent(projectDir))
	matches, err := multiagentutil.GlobContaining(dir, sessionID)
	if err != nil || len(matches) == 0 {
		return "", err
	}
	return matches[0], nil
}

func sanitizeProjectComponent(dir string) string {
	s := strings.TrimPrefix(dir, string(filepath.Separator))
	return strings.ReplaceAll(s, string(filepath.Separator), "-")
}

// ReadTranscript reads up to limit exchanges for sessionID within
// projectDir. last selects the most recent limit exchanges (the
// default everywhere except the session-handoff path, which asks for
// the first limit instead). Only the last maxBytes of the transcript
// file are read, so for a larger file the "first" exchanges are the
// first ones within that tail.
func (ix *Index) ReadTranscript(sessionID, projectDir string, limit int, last bool) ([]TranscriptMessage, error) {
	path, err := ix.transcriptPath(sessionID, projectDir)
	if err != nil || path == "" {
		return nil, err
	}

	lines, err := multiagentutil.TailFileLines(path, 0, ix.maxBytes)
	if err != nil || len(lines) == 0 {
		return nil, err
	}

	msgs, _ := multiagentutil.ParseJSONLLines[TranscriptMessage](lines)
	if limit <= 0 || len(msgs) <= limit {
		return msgs, nil
	}
	if last {
		return msgs[len(msgs)-limit:], nil
	}
	return msgs[:limit], nil
}

// CheckFormatHealth reports a warning when the fraction of
// unparseable history lines exceeds FormatHealthThreshold, signalling
// a CLI version skew (spec §7).
func (ix *Index) CheckFormatHealth() (string, error) {
	all, err := multiagentutil.TailFileLines(ix.historyPath(), ix.maxLines, ix.maxBytes)
	if err != nil || len(all) == 0 {
		return "", err
	}
	_, parseErrs := ix.readHistoryCounting(all)
	frac := float64(parseErrs) / float64(len(all))
	if frac > FormatHealthThreshold {
		return "session history format looks degraded: a large share of recent entries could not be parsed, which usually means the agent CLI was upgraded to an incompatible history format", nil
	}
	return "", nil
}

func (ix *Index) readHistoryCounting(lines []string) ([]HistoryEntry, int) {
	entries, parseErrs := multiagentutil.ParseJSONLLines[HistoryEntry](lines)
	valid := entries[:0]
	for _, e := range entries {
		if e.valid() {
			valid = append(valid, e)
		} else {
			parseErrs++
		}
	}
	return valid, parseErrs
}
