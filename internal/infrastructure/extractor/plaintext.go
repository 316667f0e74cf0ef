package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func extractPlainText(raw []byte, filename string) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary content: %s", filename)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("file contains no text: %s", filename)
	}
	return text, nil
}
