package renderer

import (
	"bytes"
	"html"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// markdownRenderer is a single shared goldmark instance guarded by a
// mutex, the same "one parser, serialize access" shape the teacher
// uses for its own email markdown renderer (internal/gateway's
// emailMarkdown/emailMarkdownMu).
var (
	markdownRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
	)
	markdownMu sync.Mutex
)

// toChatHTML converts the renderer's composed markdown into HTML with
// goldmark (GFM, hard line breaks). The output is not filtered to any
// chat client's tag subset: block elements such as <p> and lists are
// passed through as goldmark emits them. On a conversion failure it
// degrades to an escaped <pre> block rather than dropping the message, mirroring
// internal/gateway.renderEmailHTML's fallback.
func toChatHTML(markdown string) string {
	var buf bytes.Buffer
	markdownMu.Lock()
	err := markdownRenderer.Convert([]byte(markdown), &buf)
	markdownMu.Unlock()
	if err != nil {
		return "<pre>" + html.EscapeString(markdown) + "</pre>"
	}
	return strings.TrimSpace(buf.String())
}
