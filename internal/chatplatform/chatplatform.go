// Package chatplatform defines the narrow surface this bridge needs
// from whatever chat client hosts it. It deliberately says nothing
// about Telegram, Discord, or Slack — those SDK details live outside
// this module's scope — and instead exposes the handful of
// capabilities the Orchestrator and Progress Renderer actually call.
package chatplatform

import "context"

// MessageHandle identifies a previously sent message so it can be
// edited or replied to later. Its internal shape is opaque to this
// package; concrete platforms define their own.
type MessageHandle struct {
	ChatID    string
	MessageID string
}

// InlineButton is one button in an inline keyboard; Payload is
// returned verbatim in the callback query that fires when it's
// pressed.
type InlineButton struct {
	Label   string
	Payload string
}

// InlineKeyboard is a grid of buttons, one row per slice entry.
type InlineKeyboard [][]InlineButton

// DownloadedFile is the result of fetching an attachment by id.
type DownloadedFile struct {
	Data     []byte
	Filename string
	MIMEType string
}

// Platform is the capability set the core needs from a chat client
// (spec §6.4). Every method that can fail with a transient transport
// error should return that error so the Orchestrator can log and
// swallow it — a chat-platform hiccup must never abort an in-flight
// query.
type Platform interface {
	// SendMessage posts text as a new message in chatID and returns a
	// handle to it.
	SendMessage(ctx context.Context, chatID string, text string, keyboard InlineKeyboard) (MessageHandle, error)
	// EditMessage replaces the text (and optionally keyboard) of a
	// previously sent message.
	EditMessage(ctx context.Context, handle MessageHandle, text string, keyboard InlineKeyboard) error
	// ReplyTo posts text as a reply to an existing message.
	ReplyTo(ctx context.Context, handle MessageHandle, text string) (MessageHandle, error)
	// DeleteMessage removes a message. Not used by the core query path;
	// kept for completeness per spec §6.4.
	DeleteMessage(ctx context.Context, handle MessageHandle) error
	// SendChatAction signals transient activity (e.g. "typing") in a
	// chat.
	SendChatAction(ctx context.Context, chatID string, action string) error
	// AnswerCallback acknowledges an inline-keyboard press, optionally
	// showing toastText to the user.
	AnswerCallback(ctx context.Context, callbackID string, toastText string) error
	// DownloadFile fetches a previously referenced attachment by id.
	DownloadFile(ctx context.Context, fileID string) (DownloadedFile, error)
}
