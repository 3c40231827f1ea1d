package webhook

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeHandler struct {
	messages  []InboundMessage
	callbacks []InboundCallback
}

func (f *fakeHandler) HandleMessage(r *http.Request, msg InboundMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeHandler) HandleCallback(r *http.Request, cb InboundCallback) error {
	f.callbacks = append(f.callbacks, cb)
	return nil
}

func TestWebhookDispatchesMessage(t *testing.T) {
	h := &fakeHandler{}
	rv := New(h, "", nil)
	srv := httptest.NewServer(rv.Router())
	defer srv.Close()

	body := []byte(`{"message":{"chat_id":"c1","user_id":"u1","text":"hi"}}`)
	resp, err := http.Post(srv.URL+"/webhook", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(h.messages) != 1 || h.messages[0].Text != "hi" {
		t.Fatalf("expected one dispatched message, got %+v", h.messages)
	}
}

func TestWebhookDispatchesCallback(t *testing.T) {
	h := &fakeHandler{}
	rv := New(h, "", nil)
	srv := httptest.NewServer(rv.Router())
	defer srv.Close()

	body := []byte(`{"callback":{"chat_id":"c1","user_id":"u1","payload":"skill:review"}}`)
	resp, err := http.Post(srv.URL+"/webhook", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if len(h.callbacks) != 1 || h.callbacks[0].Payload != "skill:review" {
		t.Fatalf("expected one dispatched callback, got %+v", h.callbacks)
	}
}

func TestWebhookRejectsMismatchedSecretToken(t *testing.T) {
	h := &fakeHandler{}
	rv := New(h, "super-secret", nil)
	srv := httptest.NewServer(rv.Router())
	defer srv.Close()

	body := []byte(`{"message":{"chat_id":"c1","user_id":"u1","text":"hi"}}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/webhook", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Secret-Token", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if len(h.messages) != 0 {
		t.Fatal("expected no message dispatched on secret mismatch")
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	h := &fakeHandler{}
	rv := New(h, "", nil)
	srv := httptest.NewServer(rv.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
