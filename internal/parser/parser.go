package parser

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docmark/internal/doctree"
)

// Parser converts raw document bytes into a searchable document tree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tunes parsers that shell out or degrade.
type Options struct {
	PDFFallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// ForContentType returns a parser for a fetched response's media type.
// Unknown types are treated as HTML, since that is what pages serve.
func ForContentType(contentType string, opts Options) Parser {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "text/plain":
		return &TextParser{}
	case "text/markdown", "text/x-markdown":
		return &MarkdownParser{}
	case "text/csv":
		return &CSVParser{}
	case "application/pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return &DOCXParser{}
	}
	return &HTMLParser{}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// titleFromFilename strips the directory and extension.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
