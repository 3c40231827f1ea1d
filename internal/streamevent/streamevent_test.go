package streamevent

import (
	"testing"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
)

func cost(v float64) *float64 { return &v }

func TestClassifyResult(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{
		Type:         "result",
		Result:       "all done",
		SessionID:    "s1",
		TotalCostUSD: cost(0.02),
	})
	if ev.Kind != KindResult || ev.Content != "all done" || ev.SessionID != "s1" || *ev.Cost != 0.02 {
		t.Fatalf("unexpected result event: %+v", ev)
	}
}

func TestClassifyThinkingSingleBlock(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{
		Type: "assistant",
		Message: &agentsdk.RawInnerMessage{
			Role:    "assistant",
			Content: []agentsdk.RawBlock{{Type: "thinking", Thinking: "considering options"}},
		},
	})
	if ev.Kind != KindThinking || ev.Content != "considering options" {
		t.Fatalf("unexpected thinking event: %+v", ev)
	}
}

func TestClassifyToolUseSingleBlock(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{
		Type: "assistant",
		Message: &agentsdk.RawInnerMessage{
			Content: []agentsdk.RawBlock{{Type: "tool_use", Name: "bash", Input: map[string]any{"command": "ls"}}},
		},
	})
	if ev.Kind != KindToolUse || ev.ToolName != "bash" || ev.ToolInput["command"] != "ls" {
		t.Fatalf("unexpected tool_use event: %+v", ev)
	}
}

func TestClassifyTextConcatenatesInOrder(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{
		Type: "assistant",
		Message: &agentsdk.RawInnerMessage{
			Content: []agentsdk.RawBlock{
				{Type: "text", Text: "hello "},
				{Type: "text", Text: "world"},
			},
		},
	})
	if ev.Kind != KindText || ev.Content != "hello world" {
		t.Fatalf("unexpected text event: %+v", ev)
	}
}

func TestClassifyMixedBlocksIsText(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{
		Type: "assistant",
		Message: &agentsdk.RawInnerMessage{
			Content: []agentsdk.RawBlock{
				{Type: "tool_use", Name: "bash"},
				{Type: "text", Text: "ran it"},
			},
		},
	})
	if ev.Kind != KindText || ev.Content != "ran it" {
		t.Fatalf("unexpected mixed-block event: %+v", ev)
	}
}

func TestClassifyTextNoTextBlocksYieldsEmpty(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{
		Type: "assistant",
		Message: &agentsdk.RawInnerMessage{
			Content: []agentsdk.RawBlock{
				{Type: "tool_use", Name: "a"},
				{Type: "tool_use", Name: "b"},
			},
		},
	})
	if ev.Kind != KindText || ev.Content != "" {
		t.Fatalf("expected empty text event, got %+v", ev)
	}
}

func TestClassifyUserToolResult(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{
		Type: "user",
		Message: &agentsdk.RawInnerMessage{
			Content: []agentsdk.RawBlock{{Type: "tool_result", Content: "exit code 0"}},
		},
	})
	if ev.Kind != KindToolResult || ev.Content != "exit code 0" {
		t.Fatalf("unexpected tool_result event: %+v", ev)
	}
}

func TestClassifyUnknownType(t *testing.T) {
	ev := Classify(agentsdk.RawMessage{Type: "system"})
	if ev.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got %+v", ev)
	}
}
