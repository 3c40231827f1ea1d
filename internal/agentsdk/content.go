// Package agentsdk defines the contract this bridge uses to drive a
// locally installed coding-agent CLI subprocess: connect, send a
// structured query, receive a typed message stream, interrupt, and
// disconnect. It does not implement an agent — it only speaks the
// agent's own wire protocol.
package agentsdk

// ContentBlock is one typed element of a multimodal user message, per
// spec §6.1. Exactly one of the Text/Image/Document trios is set,
// selected by Type.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image / document
	Source *BlockSource `json:"source,omitempty"`
	Title  string       `json:"title,omitempty"`
}

// BlockSource carries the payload for image and document blocks.
type BlockSource struct {
	Type      string `json:"type"` // "base64" | "text"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// TextBlock builds a {type:"text"} content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ImageBlock builds a base64-encoded {type:"image"} content block.
func ImageBlock(mediaType, base64Data string) ContentBlock {
	return ContentBlock{
		Type:   "image",
		Source: &BlockSource{Type: "base64", MediaType: mediaType, Data: base64Data},
	}
}

// PDFDocumentBlock builds a base64-encoded PDF {type:"document"} block.
func PDFDocumentBlock(title, base64Data string) ContentBlock {
	return ContentBlock{
		Type:   "document",
		Title:  title,
		Source: &BlockSource{Type: "base64", MediaType: "application/pdf", Data: base64Data},
	}
}

// TextDocumentBlock builds a plain-text {type:"document"} block.
func TextDocumentBlock(title, text string) ContentBlock {
	return ContentBlock{
		Type:   "document",
		Title:  title,
		Source: &BlockSource{Type: "text", MediaType: "text/plain", Data: text},
	}
}

// PromptMessage is the single record shape the SDK's structured-prompt
// path accepts, per spec §4.7 step 3 / §6.1. The actor always uses
// this iterable form, even for text-only prompts, to keep one code
// path for plain and multimodal queries.
type PromptMessage struct {
	Type           string      `json:"type"` // always "user"
	Message        InnerUser   `json:"message"`
	ParentToolUseID interface{} `json:"parent_tool_use_id"`
}

// InnerUser is the nested role/content pair inside a PromptMessage.
type InnerUser struct {
	Role    string         `json:"role"` // always "user"
	Content []ContentBlock `json:"content"`
}

// NewPromptMessage wraps content blocks into the SDK's expected
// structured-prompt record.
func NewPromptMessage(blocks []ContentBlock) PromptMessage {
	return PromptMessage{
		Type:            "user",
		Message:         InnerUser{Role: "user", Content: blocks},
		ParentToolUseID: nil,
	}
}
