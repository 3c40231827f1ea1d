package actor

import (
	"context"
	"testing"
	"time"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/streamevent"
)

func textMessage(s string) agentsdk.RawMessage {
	return agentsdk.RawMessage{
		Type: "assistant",
		Message: &agentsdk.RawInnerMessage{
			Role:    "assistant",
			Content: []agentsdk.RawBlock{{Type: "text", Text: s}},
		},
	}
}

func toolUseMessage(name string) agentsdk.RawMessage {
	return agentsdk.RawMessage{
		Type: "assistant",
		Message: &agentsdk.RawInnerMessage{
			Role:    "assistant",
			Content: []agentsdk.RawBlock{{Type: "tool_use", Name: name}},
		},
	}
}

func resultMessage(sessionID string, totalCost float64) agentsdk.RawMessage {
	c := totalCost
	return agentsdk.RawMessage{Type: "result", Result: "done", SessionID: sessionID, TotalCostUSD: &c}
}

func TestStartConnectsAndCachesCommands(t *testing.T) {
	fc := &fakeClient{serverInfo: agentsdk.ServerInfo{Commands: []agentsdk.CommandInfo{{Name: "review"}}}}
	a := New("u1", fc, agentsdk.Options{Cwd: "/tmp"}, time.Hour, nil, nil)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	if !a.Running() {
		t.Fatal("expected actor to be running after Start")
	}
	if !a.HasCommand("review") {
		t.Fatal("expected cached command from GetServerInfo")
	}
}

func TestStartPropagatesConnectError(t *testing.T) {
	fc := &fakeClient{connectErr: errConnectBoom}
	a := New("u1", fc, agentsdk.Options{Cwd: "/tmp"}, time.Hour, nil, nil)

	if err := a.Start(context.Background()); err == nil {
		t.Fatal("expected connect error to propagate")
	}
}

func TestSubmitCollectsResultAndStreamEvents(t *testing.T) {
	fc := &fakeClient{
		responses: [][]agentsdk.RawMessage{
			{toolUseMessage("grep"), textMessage("hello"), resultMessage("sess-123", 0.02)},
		},
	}
	a := New("u1", fc, agentsdk.Options{Cwd: "/tmp"}, time.Hour, nil, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	var seen []streamevent.Kind
	res, err := a.Submit(context.Background(), Query{Text: "hi"}, func(ev streamevent.StreamEvent) {
		seen = append(seen, ev.Kind)
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ResponseText != "done" || res.SessionID != "sess-123" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.NumTurns != 1 {
		t.Fatalf("expected 1 turn counted for the non-partial tool_use, got %d", res.NumTurns)
	}
	if len(seen) != 2 || seen[0] != streamevent.KindToolUse || seen[1] != streamevent.KindText {
		t.Fatalf("expected tool_use then text callbacks, got %+v", seen)
	}
	if a.SessionID() != "sess-123" {
		t.Fatalf("expected actor session id updated, got %q", a.SessionID())
	}
}

func TestSubmitAfterStopReturnsErrNotRunning(t *testing.T) {
	fc := &fakeClient{}
	a := New("u1", fc, agentsdk.Options{Cwd: "/tmp"}, time.Hour, nil, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.Stop()

	if _, err := a.Submit(context.Background(), Query{Text: "hi"}, nil); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStopDisconnectsAndCallsOnExit(t *testing.T) {
	fc := &fakeClient{}
	exited := make(chan string, 1)
	a := New("u1", fc, agentsdk.Options{Cwd: "/tmp"}, time.Hour, func(userID string) { exited <- userID }, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.Stop()

	select {
	case uid := <-exited:
		if uid != "u1" {
			t.Fatalf("expected on_exit(u1), got %q", uid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for on_exit callback")
	}
	if fc.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect, got %d", fc.disconnects)
	}
}

func TestIdleTimeoutEndsWorker(t *testing.T) {
	fc := &fakeClient{}
	exited := make(chan struct{}, 1)
	a := New("u1", fc, agentsdk.Options{Cwd: "/tmp"}, 30*time.Millisecond, func(string) { exited <- struct{}{} }, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("expected idle timeout to end the worker")
	}
	if a.Running() {
		t.Fatal("expected actor to no longer be running after idle timeout")
	}
}

func TestInterruptIsNoopWhenNotQuerying(t *testing.T) {
	fc := &fakeClient{}
	a := New("u1", fc, agentsdk.Options{Cwd: "/tmp"}, time.Hour, nil, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	if err := a.Interrupt(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fc.interrupts != 0 {
		t.Fatalf("expected no interrupt forwarded while idle, got %d", fc.interrupts)
	}
}

var errConnectBoom = &connectError{"boom"}

type connectError struct{ msg string }

func (e *connectError) Error() string { return e.msg }
