package attachments

import (
	"encoding/base64"
	"testing"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestProcessPhotoYieldsImageBlock(t *testing.T) {
	blk, err := Process(RawAttachment{IsPhoto: true, Data: pngMagic})
	if err != nil {
		t.Fatal(err)
	}
	if blk.Type != "image" || blk.Source.MediaType != "image/png" {
		t.Fatalf("expected png image block, got %+v", blk)
	}
	want := base64.StdEncoding.EncodeToString(pngMagic)
	if blk.Source.Data != want {
		t.Fatalf("expected base64-encoded data, got %q", blk.Source.Data)
	}
}

func TestProcessDocumentImageMIME(t *testing.T) {
	blk, err := Process(RawAttachment{Filename: "photo.jpg", MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}})
	if err != nil {
		t.Fatal(err)
	}
	if blk.Type != "image" {
		t.Fatalf("expected image block for image/* mime, got %+v", blk)
	}
}

func TestProcessDocumentPDF(t *testing.T) {
	blk, err := Process(RawAttachment{Filename: "doc.pdf", Data: []byte("%PDF-1.4 rest of content")})
	if err != nil {
		t.Fatal(err)
	}
	if blk.Type != "document" || blk.Source.MediaType != "application/pdf" || blk.Title != "doc.pdf" {
		t.Fatalf("expected pdf document block, got %+v", blk)
	}
}

func TestProcessDocumentTextByExtension(t *testing.T) {
	blk, err := Process(RawAttachment{Filename: "notes.md", Data: []byte("# hello")})
	if err != nil {
		t.Fatal(err)
	}
	if blk.Type != "document" || blk.Source.Type != "text" || blk.Source.Data != "# hello" {
		t.Fatalf("expected text document block, got %+v", blk)
	}
}

func TestProcessDocumentStrictUTF8Fallback(t *testing.T) {
	blk, err := Process(RawAttachment{Filename: "mystery.xyz", Data: []byte("plain utf8 content")})
	if err != nil {
		t.Fatal(err)
	}
	if blk.Type != "document" || blk.Source.Type != "text" {
		t.Fatalf("expected utf8 fallback to text document block, got %+v", blk)
	}
}

func TestProcessDocumentUnsupported(t *testing.T) {
	_, err := Process(RawAttachment{Filename: "bin.dat", MIMEType: "application/octet-stream", Data: []byte{0x00, 0x01, 0x02, 0xFF}})
	if err == nil {
		t.Fatal("expected UnsupportedAttachmentError")
	}
	var uaErr *UnsupportedAttachmentError
	if !asUnsupported(err, &uaErr) {
		t.Fatalf("expected UnsupportedAttachmentError, got %T: %v", err, err)
	}
	if uaErr.Filename != "bin.dat" {
		t.Fatalf("expected filename carried on error, got %q", uaErr.Filename)
	}
}

func asUnsupported(err error, target **UnsupportedAttachmentError) bool {
	if e, ok := err.(*UnsupportedAttachmentError); ok {
		*target = e
		return true
	}
	return false
}
