package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgallion1/docmark/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	title := titleFromFilename(filename)

	// The first h1 names the document.
	astDoc := md.Parser().Parse(text.NewReader(src))
	for n := astDoc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			if t := string(h.Text(src)); t != "" {
				title = t
			}
			break
		}
	}

	var body bytes.Buffer
	if err := md.Renderer().Render(&body, src, astDoc); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	root, bodyEl := doctree.Skeleton(title)
	frag, err := doctree.Parse(&body)
	if err != nil {
		return nil, err
	}
	fragDoc := &doctree.Document{Root: frag}
	for _, c := range fragDoc.Body().Children() {
		c.Parent.RemoveChild(c)
		bodyEl.AppendChild(c)
	}

	return &doctree.Document{Title: title, Root: root}, nil
}
