package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docmark/internal/doctree"
)

// paragraphs returns the text of every <p> under the document body.
func paragraphs(doc *doctree.Document) []string {
	var out []string
	doctree.Walk(doc.Body(), func(n *doctree.Node) bool {
		if n.Kind == doctree.ElementNode && n.Tag == "p" {
			out = append(out, n.TextContent())
			return false
		}
		return true
	})
	return out
}

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}
	paras := paragraphs(doc)
	if len(paras) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(paras))
	}

	want := []string{
		"First paragraph line one.\nFirst paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	for i, w := range want {
		if paras[i] != w {
			t.Errorf("paragraph[%d]: expected %q, got %q", i, w, paras[i])
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if doc.Body().FirstChild != nil {
		t.Errorf("expected empty body for empty input")
	}
}

func TestTextParser_ParagraphBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"repeated blank lines", "Para one.\n\n\n\nPara two.", []string{"Para one.", "Para two."}},
		{"whitespace-only separator", "Para one.\n   \t\nPara two.", []string{"Para one.", "Para two."}},
		{"crlf line endings", "one\r\ntwo\r\n\r\nthree\r\n", []string{"one\ntwo", "three"}},
		{"trailing spaces trimmed", "tail   \nnext", []string{"tail\nnext"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := (&TextParser{}).Parse(strings.NewReader(tt.input), "x.txt")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := paragraphs(doc)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTextParser_RendersEscapedHTML(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader("a <b> & c"), "esc.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := doctree.RenderString(doc.Root)
	if !strings.Contains(out, "<p>a &lt;b&gt; &amp; c</p>") {
		t.Errorf("expected escaped paragraph, got %s", out)
	}
}
