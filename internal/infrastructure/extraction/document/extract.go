// Package document pulls plain text out of uploaded documents.
package document

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor adapts Extract to the worker's text extraction port.
type Extractor struct{}

func (Extractor) Extract(name string, data []byte) (string, error) {
	return Extract(name, data)
}

// Extract chooses a reader by the file extension of name. Unknown extensions
// are accepted when the payload is valid UTF-8 text.
func Extract(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extractPDF(data)
	case ".xlsx":
		return extractXLSX(data)
	case ".docx":
		return extractDOCX(data)
	case ".html", ".htm":
		return extractHTML(data)
	default:
		return extractPlainText(name, data)
	}
}

func extractPlainText(name string, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("unsupported binary format: %s", filepath.Base(name))
	}
	return strings.TrimSpace(string(data)), nil
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
