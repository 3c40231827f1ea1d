package chatplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient is a generic Platform that relays every call as a JSON
// POST to a configured base URL, authenticated with a bearer token.
// It speaks no platform-specific dialect — Telegram, Discord, Slack,
// or an in-house chat gateway all sit behind the same handful of
// routes (/sendMessage, /editMessage, ...), the same "thin transport,
// dumb wire format" shape the teacher's gateway package uses for its
// IMAP/SMTP transports, generalized here to HTTP/JSON.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient builds an HTTPClient. baseURL is the chat-platform
// adapter's root (e.g. "http://localhost:9000"); token is sent as a
// Bearer Authorization header on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) post(ctx context.Context, route string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chatplatform: marshal %s request: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chatplatform: build %s request: %w", route, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chatplatform: %s request failed: %w", route, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chatplatform: read %s response: %w", route, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chatplatform: %s returned %d: %s", route, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("chatplatform: decode %s response: %w", route, err)
	}
	return nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, chatID string, text string, keyboard InlineKeyboard) (MessageHandle, error) {
	var handle MessageHandle
	err := c.post(ctx, "/sendMessage", map[string]any{
		"chat_id": chatID, "text": text, "keyboard": keyboard,
	}, &handle)
	return handle, err
}

func (c *HTTPClient) EditMessage(ctx context.Context, handle MessageHandle, text string, keyboard InlineKeyboard) error {
	return c.post(ctx, "/editMessage", map[string]any{
		"chat_id": handle.ChatID, "message_id": handle.MessageID, "text": text, "keyboard": keyboard,
	}, nil)
}

func (c *HTTPClient) ReplyTo(ctx context.Context, handle MessageHandle, text string) (MessageHandle, error) {
	var out MessageHandle
	err := c.post(ctx, "/replyTo", map[string]any{
		"chat_id": handle.ChatID, "message_id": handle.MessageID, "text": text,
	}, &out)
	return out, err
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, handle MessageHandle) error {
	return c.post(ctx, "/deleteMessage", map[string]any{
		"chat_id": handle.ChatID, "message_id": handle.MessageID,
	}, nil)
}

func (c *HTTPClient) SendChatAction(ctx context.Context, chatID string, action string) error {
	return c.post(ctx, "/sendChatAction", map[string]any{"chat_id": chatID, "action": action}, nil)
}

func (c *HTTPClient) AnswerCallback(ctx context.Context, callbackID string, toastText string) error {
	return c.post(ctx, "/answerCallback", map[string]any{
		"callback_id": callbackID, "text": toastText,
	}, nil)
}

func (c *HTTPClient) DownloadFile(ctx context.Context, fileID string) (DownloadedFile, error) {
	var out DownloadedFile
	err := c.post(ctx, "/downloadFile", map[string]any{"file_id": fileID}, &out)
	return out, err
}

var _ Platform = (*HTTPClient)(nil)
