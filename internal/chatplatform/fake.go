package chatplatform

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage is one entry in a Fake's recorded history, useful for
// test assertions.
type SentMessage struct {
	Handle   MessageHandle
	Text     string
	Keyboard InlineKeyboard
	Replying *MessageHandle
}

// Fake is a deterministic in-memory Platform for tests. It never
// touches the network; edits and sends are recorded in order and
// TextOf returns the current rendered text for each handle.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	messages map[string]*SentMessage // keyed by "chatID/messageID"
	history  []SentMessage
	actions  []string
	files    map[string]DownloadedFile
}

// NewFake builds an empty Fake platform.
func NewFake() *Fake {
	return &Fake{messages: make(map[string]*SentMessage), files: make(map[string]DownloadedFile)}
}

func key(h MessageHandle) string { return h.ChatID + "/" + h.MessageID }

func (f *Fake) SendMessage(_ context.Context, chatID string, text string, keyboard InlineKeyboard) (MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h := MessageHandle{ChatID: chatID, MessageID: fmt.Sprintf("m%d", f.nextID)}
	msg := SentMessage{Handle: h, Text: text, Keyboard: keyboard}
	f.messages[key(h)] = &msg
	f.history = append(f.history, msg)
	return h, nil
}

func (f *Fake) EditMessage(_ context.Context, handle MessageHandle, text string, keyboard InlineKeyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[key(handle)]
	if !ok {
		return fmt.Errorf("chatplatform/fake: no such message %+v", handle)
	}
	msg.Text = text
	msg.Keyboard = keyboard
	return nil
}

func (f *Fake) ReplyTo(_ context.Context, handle MessageHandle, text string) (MessageHandle, error) {
	f.mu.Lock()
	f.nextID++
	h := MessageHandle{ChatID: handle.ChatID, MessageID: fmt.Sprintf("m%d", f.nextID)}
	parent := handle
	msg := SentMessage{Handle: h, Text: text, Replying: &parent}
	f.messages[key(h)] = &msg
	f.history = append(f.history, msg)
	f.mu.Unlock()
	return h, nil
}

func (f *Fake) DeleteMessage(_ context.Context, handle MessageHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, key(handle))
	return nil
}

func (f *Fake) SendChatAction(_ context.Context, chatID string, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, chatID+":"+action)
	return nil
}

func (f *Fake) AnswerCallback(_ context.Context, callbackID string, toastText string) error {
	return nil
}

// SetFile registers a fake downloadable attachment for DownloadFile.
func (f *Fake) SetFile(fileID string, file DownloadedFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileID] = file
}

func (f *Fake) DownloadFile(_ context.Context, fileID string) (DownloadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return DownloadedFile{}, fmt.Errorf("chatplatform/fake: no such file %q", fileID)
	}
	return file, nil
}

// TextOf returns the current rendered text of a previously sent or
// edited message.
func (f *Fake) TextOf(handle MessageHandle) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[key(handle)]
	if !ok {
		return "", false
	}
	return msg.Text, true
}

// History returns every send/reply recorded so far, in order.
func (f *Fake) History() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.history))
	copy(out, f.history)
	return out
}
