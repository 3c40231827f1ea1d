package renderer

// EntryKind discriminates one line of the activity log.
type EntryKind string

const (
	EntryText     EntryKind = "text"
	EntryTool     EntryKind = "tool"
	EntryThinking EntryKind = "thinking"
)

// ActivityEntry is one append-only record in the Progress Renderer's
// log (spec §4.4). ToolResult, when non-empty, is rendered as an
// indented follow-up line under a tool entry.
type ActivityEntry struct {
	Kind       EntryKind
	Content    string
	ToolName   string
	ToolDetail string
	ToolResult string
	IsRunning  bool
}
