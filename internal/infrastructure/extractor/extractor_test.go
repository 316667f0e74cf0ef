package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

type storageStub struct {
	blobs map[string][]byte
}

func (s *storageStub) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.blobs == nil {
		s.blobs = map[string][]byte{}
	}
	s.blobs[key] = raw
	return nil
}

func (s *storageStub) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := s.blobs[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPlainText(t *testing.T) {
	storage := &storageStub{blobs: map[string][]byte{
		"key": []byte("  plain file content\n"),
	}}
	e := New(storage)

	text, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "notes.txt",
		StoragePath: "key",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "plain file content" {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractRejectsBinaryAsText(t *testing.T) {
	storage := &storageStub{blobs: map[string][]byte{
		"key": {0xff, 0xfe, 0x00, 0x01},
	}}
	e := New(storage)

	_, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "blob.bin",
		StoragePath: "key",
	})
	if err == nil {
		t.Fatal("expected error for invalid utf-8 content")
	}
}

func TestExtractEmptyFileFails(t *testing.T) {
	storage := &storageStub{blobs: map[string][]byte{"key": {}}}
	e := New(storage)

	_, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "empty.txt",
		StoragePath: "key",
	})
	if err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestExtractDOCXParagraphs(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	storage := &storageStub{blobs: map[string][]byte{"key": buildDOCX(t, docXML)}}
	e := New(storage)

	text, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "report.docx",
		StoragePath: "key",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "First paragraph.") {
		t.Fatalf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Fatalf("split text runs must be joined: %q", text)
	}
	if !strings.Contains(text, "\n") {
		t.Fatalf("expected paragraph break: %q", text)
	}
}

func TestExtractDOCXWithoutDocumentXMLFails(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("word/styles.xml")
	_, _ = f.Write([]byte("<styles/>"))
	_ = zw.Close()

	storage := &storageStub{blobs: map[string][]byte{"key": buf.Bytes()}}
	e := New(storage)

	_, err := e.Extract(context.Background(), &domain.Document{
		Filename:    "broken.docx",
		StoragePath: "key",
	})
	if err == nil {
		t.Fatal("expected error for docx without word/document.xml")
	}
}

func TestResolveFormatExtensionBeatsMimeType(t *testing.T) {
	if got := resolveFormat("file.pdf", "text/plain"); got != formatPDF {
		t.Fatalf("resolveFormat = %v, want pdf", got)
	}
	if got := resolveFormat("upload", "application/pdf"); got != formatPDF {
		t.Fatalf("mime fallback failed, got %v", got)
	}
	if got := resolveFormat("README.md", ""); got != formatText {
		t.Fatalf("markdown should resolve to text, got %v", got)
	}
	if got := resolveFormat("data", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"); got != formatXLSX {
		t.Fatalf("xlsx mime fallback failed, got %v", got)
	}
}
