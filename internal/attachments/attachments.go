// Package attachments converts one chat attachment into the SDK's
// native content-block shape, grouping messages that arrive together
// as an album ("media group") so the agent sees them as one query.
package attachments

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
)

// UnsupportedAttachmentError is returned when an attachment's content
// cannot be mapped to any content block the SDK understands.
type UnsupportedAttachmentError struct {
	Filename string
	MIMEType string
}

func (e *UnsupportedAttachmentError) Error() string {
	return fmt.Sprintf("unsupported attachment %q (mime %q)", e.Filename, e.MIMEType)
}

// RawAttachment is the input to Process: raw bytes plus whatever
// metadata the chat platform supplied.
type RawAttachment struct {
	IsPhoto  bool
	Filename string
	MIMEType string // platform-reported MIME, may be empty or wrong
	Data     []byte
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".go": true, ".py": true,
	".js": true, ".ts": true, ".json": true, ".yaml": true, ".yml": true,
	".toml": true, ".csv": true, ".log": true, ".sh": true, ".rb": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".rs": true,
	".html": true, ".css": true, ".xml": true, ".sql": true, ".ini": true,
}

// Process converts one RawAttachment into a content block per spec
// §4.5's algorithm: photo → image; document → image/PDF/text/strict
// UTF-8 fallback, in that order; anything else is
// UnsupportedAttachmentError.
func Process(a RawAttachment) (agentsdk.ContentBlock, error) {
	if a.IsPhoto {
		return imageBlock(a)
	}
	return documentBlock(a)
}

func imageBlock(a RawAttachment) (agentsdk.ContentBlock, error) {
	mediaType := sniffImageType(a.Data)
	if mediaType == "" {
		mediaType = "image/jpeg" // fallback per spec §4.5 step 1
	}
	return agentsdk.ImageBlock(mediaType, base64.StdEncoding.EncodeToString(a.Data)), nil
}

func documentBlock(a RawAttachment) (agentsdk.ContentBlock, error) {
	reportedMIME := strings.ToLower(strings.TrimSpace(a.MIMEType))
	if reportedMIME == "" {
		reportedMIME = strings.ToLower(mimeByExtension(a.Filename))
	}

	if strings.HasPrefix(reportedMIME, "image/") || isImageMagic(a.Data) {
		return imageBlock(RawAttachment{IsPhoto: true, Data: a.Data})
	}

	if reportedMIME == "application/pdf" || bytes.HasPrefix(a.Data, []byte("%PDF-")) {
		return agentsdk.PDFDocumentBlock(a.Filename, base64.StdEncoding.EncodeToString(a.Data)), nil
	}

	if strings.HasPrefix(reportedMIME, "text/") || isTextExtension(a.Filename) {
		return agentsdk.TextDocumentBlock(a.Filename, string(a.Data)), nil
	}

	if utf8.Valid(a.Data) && !looksBinary(a.Data) {
		return agentsdk.TextDocumentBlock(a.Filename, string(a.Data)), nil
	}

	return agentsdk.ContentBlock{}, &UnsupportedAttachmentError{Filename: a.Filename, MIMEType: reportedMIME}
}

func isTextExtension(filename string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(filename))]
}

// looksBinary guards the strict-UTF-8 fallback against files that are
// technically valid UTF-8 byte sequences but clearly not text (e.g. a
// handful of multi-byte-coincidence binary formats) by rejecting NUL
// bytes, which no legitimate text attachment contains.
func looksBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

// sniffImageType detects PNG/JPEG/GIF/WebP from magic bytes using the
// same stdlib sniffer the teacher's own HTTP-facing code would reach
// for; net/http.DetectContentType covers exactly this set plus many
// more, but we only trust its image/* answers here.
func sniffImageType(data []byte) string {
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "image/png"):
		return "image/png"
	case strings.HasPrefix(ct, "image/jpeg"):
		return "image/jpeg"
	case strings.HasPrefix(ct, "image/gif"):
		return "image/gif"
	case strings.HasPrefix(ct, "image/webp"):
		return "image/webp"
	default:
		return ""
	}
}

func isImageMagic(data []byte) bool {
	return sniffImageType(data) != ""
}

// mimeByExtension wraps mime.TypeByExtension; documentBlock uses it to
// derive a MIME type from the filename alone when RawAttachment.MIMEType
// is empty, grounded on internal/gateway's own extension-based MIME
// fallback for outbound email attachments.
func mimeByExtension(filename string) string {
	return mime.TypeByExtension(filepath.Ext(filename))
}
