package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/docmark/internal/doctree"
)

// HTMLParser handles HTML files and fetched pages.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := doctree.Parse(r)
	if err != nil {
		return nil, err
	}

	doc := &doctree.Document{
		Title: titleFromFilename(filename),
		Root:  root,
	}

	// Extract title from <title> tag if present.
	if title := findTitle(root); title != "" {
		doc.Title = title
	}
	return doc, nil
}

func findTitle(n *doctree.Node) string {
	t := doctree.Find(n, func(c *doctree.Node) bool {
		return c.Kind == doctree.ElementNode && c.Tag == "title"
	})
	if t == nil {
		return ""
	}
	return strings.TrimSpace(t.TextContent())
}
