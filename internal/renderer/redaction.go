package renderer

import (
	"regexp"
	"strings"
)

// These patterns cover the secret shapes spec §4.4 calls out by name:
// long bearer-style tokens, provider key prefixes, inline URL
// credentials, and named secret variables. Grounded directly on
// internal/memory.RedactText's precompiled-regex-plus-substring-scan
// shape, generalized from a fixed provider-key list to the broader
// set this bridge's tool-input summaries can contain.
var (
	reOpenAIKey  = regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{10,}\b`)
	reGitHubPAT  = regexp.MustCompile(`\bghp_[A-Za-z0-9]{10,}\b`)
	reAWSKey     = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	reBearer     = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]{10,}\b`)
	reLongToken  = regexp.MustCompile(`\b[A-Za-z0-9_-]{32,}\b`)
	reURLCreds   = regexp.MustCompile(`://[^/\s:@]+:[^/\s:@]+@`)
	reNamedVar   = regexp.MustCompile(`(?i)\b(TOKEN|PASSWORD|SECRET|API_KEY|PASSWD)\s*=\s*\S+`)
)

// Redact masks recognizable secret shapes in text, preserving a short
// prefix of each match so a reader can tell something was there.
// Redaction only ever touches displayed summaries; data sent to the
// SDK is never passed through this function.
func Redact(text string) string {
	out := text
	out = reURLCreds.ReplaceAllStringFunc(out, func(m string) string {
		return "://***@"
	})
	out = reNamedVar.ReplaceAllStringFunc(out, func(m string) string {
		idx := strings.IndexByte(m, '=')
		if idx < 0 {
			return redactToken(m)
		}
		return m[:idx+1] + maskValue(strings.TrimSpace(m[idx+1:]))
	})
	out = reBearer.ReplaceAllStringFunc(out, func(m string) string {
		parts := strings.SplitN(m, " ", 2)
		if len(parts) != 2 {
			return redactToken(m)
		}
		return parts[0] + " " + maskValue(parts[1])
	})
	out = reOpenAIKey.ReplaceAllStringFunc(out, redactToken)
	out = reGitHubPAT.ReplaceAllStringFunc(out, redactToken)
	out = reAWSKey.ReplaceAllStringFunc(out, redactToken)
	out = reLongToken.ReplaceAllStringFunc(out, redactToken)
	return out
}

func redactToken(token string) string {
	t := strings.TrimSpace(token)
	if len(t) <= 8 {
		return "***"
	}
	return t[:4] + "***"
}

func maskValue(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}
