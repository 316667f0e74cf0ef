package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tenantic/assistant-core/internal/core/domain"
	"github.com/tenantic/assistant-core/internal/core/ports"
)

// Extractor converts a stored file into plain text, dispatching on file
// extension first and declared media type second. Unrecognized types fall
// back to raw-text decoding.
type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("source document is empty: %s", doc.Filename)
	}

	switch resolveFormat(doc.Filename, doc.MimeType) {
	case formatPDF:
		return extractPDF(raw)
	case formatDOCX:
		return extractDOCX(raw)
	case formatXLSX:
		return extractXLSX(raw)
	default:
		return extractPlainText(raw, doc.Filename)
	}
}

type format int

const (
	formatText format = iota
	formatPDF
	formatDOCX
	formatXLSX
)

func resolveFormat(filename, mimeType string) format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return formatPDF
	case ".docx":
		return formatDOCX
	case ".xlsx":
		return formatXLSX
	case ".txt", ".md", ".markdown":
		return formatText
	}

	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "application/pdf":
		return formatPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return formatDOCX
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return formatXLSX
	}
	return formatText
}
