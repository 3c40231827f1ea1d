package chatplatform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientSendMessageRoundTrip(t *testing.T) {
	var gotAuth, gotRoute string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRoute = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(MessageHandle{ChatID: "c1", MessageID: "m1"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret-token")
	handle, err := client.SendMessage(context.Background(), "c1", "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if handle.ChatID != "c1" || handle.MessageID != "m1" {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if gotRoute != "/sendMessage" {
		t.Fatalf("expected /sendMessage, got %q", gotRoute)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotBody["text"] != "hello" {
		t.Fatalf("expected text payload, got %+v", gotBody)
	}
}

func TestHTTPClientSurfacesNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "")
	if err := client.SendChatAction(context.Background(), "c1", "typing"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
