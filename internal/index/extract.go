// Package index turns uploaded documents into searchable vector points. It
// extracts text, splits it into overlapping chunks, embeds each chunk, and
// keeps a registry record per document alongside the vector store.
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the file at path and returns its plain text along with a
// page count. Plain text files count as a single page. Unsupported extensions
// return an error.
func ExtractText(path string) (string, int, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		return extractPlain(path)
	case ".pdf":
		return extractPDF(path)
	default:
		return "", 0, fmt.Errorf("unsupported file type for text extraction: %s", ext)
	}
}

func extractPlain(path string) (string, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}

	text := normalizeText(string(b))
	if text == "" {
		return "", 0, fmt.Errorf("file %s is empty", filepath.Base(path))
	}

	return text, 1, nil
}

func extractPDF(path string) (string, int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	var b strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := normalizeText(b.String())
	if text == "" {
		return "", 0, fmt.Errorf("no extractable text found in %s", filepath.Base(path))
	}

	return text, totalPage, nil
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	emptyCount := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			b.WriteString("\n")
			continue
		}
		emptyCount = 0
		b.WriteString(trimmed)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}
