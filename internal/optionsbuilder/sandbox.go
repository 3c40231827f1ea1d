package optionsbuilder

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
)

// dangerousShellPatterns catches the handful of shell idioms that are
// never legitimate for a sandboxed coding session: recursive deletes
// of root-ish paths, fork bombs, and piping a remote script straight
// into a shell.
var dangerousShellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
	regexp.MustCompile(`curl\s[^|]*\|\s*(sudo\s+)?(ba)?sh\b`),
	regexp.MustCompile(`wget\s[^|]*\|\s*(sudo\s+)?(ba)?sh\b`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]\b`),
}

// pathlikeKeys are the input fields this validator inspects for a
// filesystem path, across the handful of tool shapes the CLI exposes
// (file read/write/edit, shell commands).
var pathlikeKeys = []string{"path", "file_path", "filepath", "dir", "directory", "cwd"}

// PathSandboxValidator rejects tool invocations that reach outside an
// approved directory or that embed a known-dangerous shell command.
type PathSandboxValidator struct{}

// Validate implements SecurityValidator.
func (PathSandboxValidator) Validate(toolName string, input map[string]any, approvedDirectory string) agentsdk.PermissionDecision {
	approved := filepath.Clean(approvedDirectory)

	for _, key := range pathlikeKeys {
		raw, ok := input[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		if !pathWithin(approved, s) {
			return agentsdk.PermissionDecision{Allow: false, Reason: "path outside approved directory: " + s}
		}
	}

	if cmd, ok := input["command"].(string); ok {
		for _, re := range dangerousShellPatterns {
			if re.MatchString(cmd) {
				return agentsdk.PermissionDecision{Allow: false, Reason: "command matches a blocked shell pattern"}
			}
		}
	}

	return agentsdk.PermissionDecision{Allow: true}
}

// pathWithin reports whether candidate resolves inside root. A
// relative candidate is resolved against root before comparison.
func pathWithin(root, candidate string) bool {
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
