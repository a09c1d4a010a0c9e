package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docmark/internal/doctree"
)

func tags(doc *doctree.Document) []string {
	var out []string
	for _, c := range doc.Body().Children() {
		if c.Kind == doctree.ElementNode {
			out = append(out, c.Tag)
		}
	}
	return out
}

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Title" {
		t.Errorf("expected title from h1 %q, got %q", "Title", doc.Title)
	}

	want := []string{"h1", "p", "h2", "p", "h3", "p"}
	if got := tags(doc); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected body tags %v, got %v", want, got)
	}

	text := doc.Body().TextContent()
	for _, s := range []string{"Intro text.", "Section A content.", "Subsection A1 content."} {
		if !strings.Contains(text, s) {
			t.Errorf("expected body text to contain %q", s)
		}
	}
}

func TestMarkdownParser_NoHeadingsUsesFilename(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "plain" {
		t.Errorf("expected title %q, got %q", "plain", doc.Title)
	}
	if got := len(paragraphs(doc)); got != 2 {
		t.Errorf("expected 2 paragraphs, got %d", got)
	}
}

func TestMarkdownParser_CodeBlocksKeepText(t *testing.T) {
	input := "# API Reference\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pre := doctree.Find(doc.Body(), func(n *doctree.Node) bool {
		return n.Kind == doctree.ElementNode && n.Tag == "pre"
	})
	if pre == nil {
		t.Fatal("expected a <pre> block")
	}
	if !strings.Contains(pre.TextContent(), "GET /api/users") {
		t.Errorf("expected code block content, got %q", pre.TextContent())
	}
	if !strings.Contains(doc.Body().TextContent(), "More text after code.") {
		t.Error("expected post-code text")
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags(doc)) != 0 {
		t.Errorf("expected no body elements for empty input, got %v", tags(doc))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"dir/plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		doc, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if doc.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, doc.Title)
		}
	}
}
