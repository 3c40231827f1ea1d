// Package streamevent classifies one raw Agent SDK message into a
// single flat StreamEvent. It is a pure function package: no state,
// no I/O, grounded on the teacher's tagged-envelope classification
// idiom from internal/cluster's wire protocol switch.
package streamevent

import "github.com/lijiaxing1997/agentbridge/internal/agentsdk"

// Kind discriminates a classified StreamEvent.
type Kind string

const (
	KindResult     Kind = "result"
	KindThinking   Kind = "thinking"
	KindToolUse    Kind = "tool_use"
	KindText       Kind = "text"
	KindToolResult Kind = "tool_result"
	KindUnknown    Kind = "unknown"
)

// StreamEvent is the flat event downstream consumers (the Progress
// Renderer) actually want, instead of walking nested SDK message
// blocks themselves.
type StreamEvent struct {
	Kind      Kind
	Content   string
	ToolName  string
	ToolInput map[string]any
	SessionID string
	Cost      *float64
}

// Classify dispatches one raw message per spec §4.3.
func Classify(msg agentsdk.RawMessage) StreamEvent {
	switch msg.Type {
	case "result":
		return StreamEvent{
			Kind:      KindResult,
			Content:   msg.Result,
			SessionID: msg.SessionID,
			Cost:      msg.TotalCostUSD,
		}
	case "assistant":
		return classifyAssistant(msg)
	case "user":
		return classifyUser(msg)
	default:
		return StreamEvent{Kind: KindUnknown}
	}
}

func classifyAssistant(msg agentsdk.RawMessage) StreamEvent {
	if msg.Message == nil {
		return StreamEvent{Kind: KindUnknown}
	}
	blocks := msg.Message.Content

	if len(blocks) == 1 && blocks[0].Type == "thinking" {
		return StreamEvent{Kind: KindThinking, Content: blocks[0].Thinking}
	}
	if len(blocks) == 1 && blocks[0].Type == "tool_use" {
		return StreamEvent{Kind: KindToolUse, ToolName: blocks[0].Name, ToolInput: blocks[0].Input}
	}

	text := ""
	for _, b := range blocks {
		if b.Type == "text" {
			text += b.Text
		}
	}
	return StreamEvent{Kind: KindText, Content: text}
}

func classifyUser(msg agentsdk.RawMessage) StreamEvent {
	if msg.Message == nil || len(msg.Message.Content) == 0 {
		return StreamEvent{Kind: KindUnknown}
	}
	text := ""
	for _, b := range msg.Message.Content {
		if b.Type == "tool_result" {
			text += b.Content
		}
	}
	if text == "" {
		return StreamEvent{Kind: KindUnknown}
	}
	return StreamEvent{Kind: KindToolResult, Content: text}
}
