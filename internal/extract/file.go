// Package extract turns submitted files and URLs into plain text for the
// rewriting pipeline.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// FromFile extracts text from a stored upload based on its extension.
// Plain-text formats are read verbatim. PDFs are validated and summarised
// with a page count; binary word-processor formats get a placeholder until a
// real converter is wired in.
func FromFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".rst":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(data), nil
	case ".pdf":
		pages, err := api.PageCountFile(path)
		if err != nil {
			return "", fmt.Errorf("invalid pdf: %w", err)
		}
		return fmt.Sprintf("PDF document %s (%d pages)", filepath.Base(path), pages), nil
	case ".docx":
		return fmt.Sprintf("Document content from docx file %s", filepath.Base(path)), nil
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// AllowedExtension reports whether name carries one of the allowed
// extensions. Matching is case-insensitive.
func AllowedExtension(name string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// SanitizeFilename strips path separators and control characters so the name
// is safe to join under the uploads directory.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, r == 0x7f:
		case r == '/', r == ':':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "document"
	}
	return out
}
