// Package webhook is the HTTP receiver for inbound chat-platform
// events (SPEC_FULL §6.4): it decodes a platform-specific webhook
// payload into platform-agnostic Update structs and hands each to a
// Handler, which the Orchestrator implements. Grounded on
// odvcencio-buckley's pkg/ipc route-registration and
// respondJSON/respondError idiom, since the teacher itself has no
// HTTP surface of its own.
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// InboundAttachment is one file attached to an inbound message, not
// yet downloaded.
type InboundAttachment struct {
	FileID   string `json:"file_id"`
	IsPhoto  bool   `json:"is_photo"`
	Filename string `json:"filename,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// InboundMessage is a platform-agnostic inbound chat message.
type InboundMessage struct {
	ChatID       string              `json:"chat_id"`
	UserID       string              `json:"user_id"`
	MessageID    string              `json:"message_id"`
	Text         string              `json:"text"`
	Attachments  []InboundAttachment `json:"attachments,omitempty"`
	MediaGroupID string              `json:"media_group_id,omitempty"`
}

// InboundCallback is a platform-agnostic inline-keyboard callback
// query.
type InboundCallback struct {
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
	CallbackID string `json:"callback_id"`
	Payload   string `json:"payload"`
}

// Update is one decoded webhook payload: exactly one of Message or
// Callback is set.
type Update struct {
	Message  *InboundMessage  `json:"message,omitempty"`
	Callback *InboundCallback `json:"callback,omitempty"`
}

// Handler is implemented by the Orchestrator. The HTTP response is
// written only after HandleMessage/HandleCallback return; the
// Orchestrator's handlers run a query on the user's Actor and wait for
// its result, so the response follows the whole query.
type Handler interface {
	HandleMessage(r *http.Request, msg InboundMessage) error
	HandleCallback(r *http.Request, cb InboundCallback) error
}

// Receiver is the webhook HTTP endpoint.
type Receiver struct {
	handler     Handler
	secretToken string
	logger      *slog.Logger
}

// New builds a Receiver. secretToken, if non-empty, must match the
// X-Webhook-Secret-Token header on every request (the same shared-secret
// verification idiom chat platforms' own webhook delivery uses); empty
// disables the check, for local development only.
func New(handler Handler, secretToken string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{handler: handler, secretToken: secretToken, logger: logger}
}

// Router builds the chi router mounting the webhook endpoint at
// POST /webhook.
func (rv *Receiver) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/webhook", rv.handleWebhook)
	return r
}

func (rv *Receiver) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if rv.secretToken != "" && r.Header.Get("X-Webhook-Secret-Token") != rv.secretToken {
		respondError(w, http.StatusUnauthorized, "invalid secret token")
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}

	switch {
	case update.Message != nil:
		if err := rv.handler.HandleMessage(r, *update.Message); err != nil {
			rv.logger.Warn("webhook: handle message failed", "error", err)
		}
	case update.Callback != nil:
		if err := rv.handler.HandleCallback(r, *update.Callback); err != nil {
			rv.logger.Warn("webhook: handle callback failed", "error", err)
		}
	default:
		respondError(w, http.StatusBadRequest, "update carries neither a message nor a callback")
		return
	}

	respondJSON(w, map[string]bool{"ok": true})
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
