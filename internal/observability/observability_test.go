package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/lijiaxing1997/agentbridge/internal/renderer"
)

func TestBroadcastDeliversToConnectedDashboard(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for dashboard to register")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(Event{
		UserID: "u1",
		Entry:  renderer.ActivityEntry{Kind: renderer.EntryText, Content: "hello"},
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.UserID != "u1" || ev.Entry.Content != "hello" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHandlerRejectsNonWebsocketRequest(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("expected a non-200 status for a plain HTTP GET against a websocket-only endpoint")
	}
}
