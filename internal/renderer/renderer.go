// Package renderer implements the Progress Renderer: an append-only
// activity log rendered into one or more chat messages, with
// throttled edits, overflow rollover, and secret redaction. Grounded
// on internal/memory's redaction pattern (generalized in
// redaction.go) and internal/gateway's single-shared-goldmark-instance
// rendering pipeline (generalized in markdown.go).
//
// Redaction covers only the fixed pattern list in redaction.go, applied
// to tool details and to the first-line summary of each tool result; a
// secret that none of those patterns matches is shown as-is.
package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lijiaxing1997/agentbridge/internal/chatplatform"
	"github.com/lijiaxing1997/agentbridge/internal/streamevent"
)

const (
	// DefaultEditInterval throttles Update() edits (spec §4.4, §6.5).
	DefaultEditInterval = 2 * time.Second
	// DefaultMaxMessageLength is the rollover threshold, with margin
	// below a typical chat platform's hard message-length ceiling.
	DefaultMaxMessageLength = 4000
)

var thinkingIcon = "💭"
var toolIcon = "🔧"
var foldingGlyph = "└"

// Renderer owns the activity log and the finite sequence of chat
// messages it is rendered into.
type Renderer struct {
	platform chatplatform.Platform
	chatID   string

	editInterval time.Duration
	maxMsgLength int

	mu           sync.Mutex
	started      time.Time
	entries      []ActivityEntry
	messages     []chatplatform.MessageHandle
	renderedUpTo int
	tick         int
	lastEditAt   time.Time
	finalized    bool

	logger *slog.Logger
}

// Option configures a Renderer at construction.
type Option func(*Renderer)

// WithEditInterval overrides DefaultEditInterval.
func WithEditInterval(d time.Duration) Option { return func(r *Renderer) { r.editInterval = d } }

// WithMaxMessageLength overrides DefaultMaxMessageLength.
func WithMaxMessageLength(n int) Option { return func(r *Renderer) { r.maxMsgLength = n } }

// WithLogger attaches a structured logger; nil uses slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Renderer) { r.logger = l } }

// New sends the initial "Working… (0s)" message and returns a
// Renderer bound to it.
func New(ctx context.Context, platform chatplatform.Platform, chatID string, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		platform:     platform,
		chatID:       chatID,
		editInterval: DefaultEditInterval,
		maxMsgLength: DefaultMaxMessageLength,
		started:      time.Now(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	handle, err := platform.SendMessage(ctx, chatID, r.header(false), nil)
	if err != nil {
		return nil, fmt.Errorf("renderer: send initial message: %w", err)
	}
	r.messages = append(r.messages, handle)
	r.lastEditAt = time.Now()
	return r, nil
}

func (r *Renderer) header(done bool) string {
	elapsed := int(time.Since(r.started).Seconds())
	if done {
		return fmt.Sprintf("**Done (%ds)**", elapsed)
	}
	suffix := ""
	if len(r.messages) > 1 {
		suffix = " (continued)"
	}
	return fmt.Sprintf("**Working… (%ds)%s**", elapsed, suffix)
}

// Update applies one classified stream event to the activity log and,
// subject to the edit throttle, re-renders the current tail message.
// Result events never reach Update — the Actor consumes the SDK's
// terminal result itself, and the Orchestrator calls Finalize once
// the query's Submit returns.
func (r *Renderer) Update(ctx context.Context, ev streamevent.StreamEvent) {
	r.mu.Lock()
	r.applyEvent(ev)
	r.tick++
	due := time.Since(r.lastEditAt) >= r.editInterval
	r.mu.Unlock()

	if !due {
		return
	}
	r.flush(ctx, false)
}

func (r *Renderer) applyEvent(ev streamevent.StreamEvent) {
	switch ev.Kind {
	case streamevent.KindText:
		if n := len(r.entries); n > 0 && r.entries[n-1].Kind == EntryText {
			r.entries[n-1].Content += ev.Content
			return
		}
		r.closeLastRunning()
		r.entries = append(r.entries, ActivityEntry{Kind: EntryText, Content: ev.Content})
	case streamevent.KindThinking:
		r.closeLastRunning()
		r.entries = append(r.entries, ActivityEntry{Kind: EntryThinking, IsRunning: true})
	case streamevent.KindToolUse:
		r.closeLastRunning()
		r.entries = append(r.entries, ActivityEntry{
			Kind:      EntryTool,
			ToolName:  ev.ToolName,
			ToolDetail: toolDetail(ev.ToolInput),
			IsRunning: true,
		})
	case streamevent.KindToolResult:
		if n := len(r.entries); n > 0 && r.entries[n-1].Kind == EntryTool && r.entries[n-1].IsRunning {
			r.entries[n-1].ToolResult = ev.Content
			r.entries[n-1].IsRunning = false
		}
	}
}

func (r *Renderer) closeLastRunning() {
	if n := len(r.entries); n > 0 && r.entries[n-1].IsRunning {
		r.entries[n-1].IsRunning = false
	}
}

// toolDetail picks the single most informative field of a tool's
// input map to show inline, preferring the shell "command" field
// since that's the one whose raw text can leak a secret.
func toolDetail(input map[string]any) string {
	if cmd, ok := input["command"].(string); ok && cmd != "" {
		return cmd
	}
	for _, key := range []string{"path", "file_path", "query", "url"} {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// renderEntry renders one ActivityEntry, honoring redaction and the
// finalized/running state.
func (r *Renderer) renderEntry(e ActivityEntry) string {
	switch e.Kind {
	case EntryText:
		return e.Content
	case EntryThinking:
		if e.IsRunning && !r.finalized {
			dots := strings.Repeat(".", (r.tick%3)+1)
			return thinkingIcon + " Thinking" + dots
		}
		return thinkingIcon + " Thinking (done)"
	case EntryTool:
		line := toolIcon + " " + e.ToolName
		if d := Redact(e.ToolDetail); d != "" {
			line += ": " + d
		}
		if e.IsRunning && !r.finalized {
			line += " ⏳"
		}
		if e.ToolResult != "" {
			line += "\n" + foldingGlyph + " " + Redact(summarize(e.ToolResult))
		}
		return line
	default:
		return ""
	}
}

func summarize(s string) string {
	s = strings.TrimSpace(s)
	const maxLine = 300
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + "…"
	}
	if len(s) > maxLine {
		s = s[:maxLine] + "…"
	}
	return s
}

// render builds the markdown text for the current tail message, from
// renderedUpTo to the end of the log.
func (r *Renderer) render(done bool) string {
	var b strings.Builder
	b.WriteString(r.header(done))
	b.WriteString("\n\n")

	prevKind := EntryKind("")
	for _, e := range r.entries[r.renderedUpTo:] {
		text := r.renderEntry(e)
		if text == "" {
			continue
		}
		if e.Kind == EntryText && prevKind != "" && prevKind != EntryText {
			b.WriteString("\n")
		}
		b.WriteString(text)
		b.WriteString("\n")
		prevKind = e.Kind
	}
	return strings.TrimRight(b.String(), "\n")
}

// flush re-renders the tail message, rolling over into a new message
// first if the rendered text would exceed maxMsgLength. final is set
// by Finalize; a final flush never rolls over and truncates instead.
func (r *Renderer) flush(ctx context.Context, final bool) {
	r.mu.Lock()
	rendered := r.render(final)
	needsRollover := !final && len(rendered) > r.maxMsgLength
	r.mu.Unlock()

	if needsRollover {
		r.rollover(ctx)
		r.mu.Lock()
		rendered = r.render(final)
		r.mu.Unlock()
	}

	if final && len(rendered) > r.maxMsgLength {
		rendered = rendered[:r.maxMsgLength-1] + "…"
	}

	r.mu.Lock()
	tail := r.messages[len(r.messages)-1]
	r.lastEditAt = time.Now()
	r.mu.Unlock()

	if err := r.platform.EditMessage(ctx, tail, toChatHTML(rendered), nil); err != nil {
		r.logger.Warn("renderer: edit failed, swallowing", "error", err)
	}
}

// rollover freezes the current tail message with a truncated,
// continued-marker render, then opens a new tail message for
// subsequent entries.
func (r *Renderer) rollover(ctx context.Context) {
	r.mu.Lock()
	rendered := r.render(false)
	const marker = "\n(continued…)"
	limit := r.maxMsgLength - len(marker)
	if limit < 0 {
		limit = 0
	}
	if len(rendered) > limit {
		rendered = rendered[:limit]
	}
	rendered += marker
	tail := r.messages[len(r.messages)-1]
	r.renderedUpTo = len(r.entries)
	r.mu.Unlock()

	if err := r.platform.EditMessage(ctx, tail, toChatHTML(rendered), nil); err != nil {
		r.logger.Warn("renderer: freeze-before-rollover edit failed, swallowing", "error", err)
	}

	handle, err := r.platform.SendMessage(ctx, r.chatID, r.header(false), nil)
	if err != nil {
		r.logger.Warn("renderer: rollover send failed, swallowing", "error", err)
		return
	}
	r.mu.Lock()
	r.messages = append(r.messages, handle)
	r.mu.Unlock()
}

// Finalize flips every entry to not-running, edits the tail message
// once ignoring the throttle, and never rolls over (a final message
// that would overflow is truncated with an ellipsis instead).
func (r *Renderer) Finalize(ctx context.Context) {
	r.mu.Lock()
	for i := range r.entries {
		r.entries[i].IsRunning = false
	}
	r.finalized = true
	r.mu.Unlock()

	r.flush(ctx, true)
}

// Messages returns every message handle this renderer has sent, in
// order, for callers that want to inspect or mirror renderer output.
func (r *Renderer) Messages() []chatplatform.MessageHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chatplatform.MessageHandle, len(r.messages))
	copy(out, r.messages)
	return out
}
