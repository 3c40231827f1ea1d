package agentsdk

import "encoding/json"

// RawMessage is one line of the SDK's newline-delimited JSON output
// stream, before classification by the stream handler. The "type"
// discriminator selects which of the typed fields below is populated;
// unrecognized types are preserved in Raw for forward compatibility
// (spec §9 "dynamic-typed SDK messages" — reimplemented here as a
// tagged sum instead of runtime introspection).
type RawMessage struct {
	Type string `json:"type"`

	// type == "assistant" | "user"
	Message *RawInnerMessage `json:"message,omitempty"`
	// true when this assistant message is an incremental delta rather
	// than a complete turn; spec §4.7 step 4 only counts non-partial
	// tool_use messages toward the turn counter.
	Partial bool `json:"partial,omitempty"`

	// type == "result"
	Result        string  `json:"result,omitempty"`
	SessionID     string  `json:"session_id,omitempty"`
	TotalCostUSD  *float64 `json:"total_cost_usd,omitempty"`
	NumTurns      int     `json:"num_turns,omitempty"`
	DurationMS    int64   `json:"duration_ms,omitempty"`
	IsError       bool    `json:"is_error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// RawInnerMessage is the nested role/content payload of an assistant
// or user message.
type RawInnerMessage struct {
	Role    string     `json:"role"`
	Content []RawBlock `json:"content"`
}

// RawBlock is one content block inside an assistant/user message, as
// emitted by the SDK (distinct from ContentBlock, which is what this
// bridge *sends*).
type RawBlock struct {
	Type string `json:"type"` // "text" | "thinking" | "tool_use" | "tool_result"

	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// ServerInfo is the response to GetServerInfo: the CLI's currently
// available slash commands.
type ServerInfo struct {
	Commands []CommandInfo `json:"commands"`
}

// CommandInfo describes one CLI-native slash command surfaced to the
// Client Manager's AvailableCommands cache.
type CommandInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ArgumentHint string `json:"argument_hint"`
}
