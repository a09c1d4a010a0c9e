package doctree

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse reads an HTML document into a tree.
func Parse(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromHTML(doc), nil
}

// FromHTML converts an x/net/html tree. Elements carrying the marker
// signature become MarkerNodes so previously highlighted pages can be
// cleared.
func FromHTML(h *html.Node) *Node {
	n := &Node{}
	switch h.Type {
	case html.DocumentNode:
		n.Kind = DocumentNode
	case html.ElementNode:
		n.Kind = ElementNode
		n.Tag = h.Data
		n.Attrs = append([]html.Attribute(nil), h.Attr...)
		if n.Tag == MarkerTag && n.HasClass(MarkerClass) {
			n.Kind = MarkerNode
		}
	case html.TextNode:
		n.Kind = TextNode
		n.Data = h.Data
	case html.CommentNode:
		n.Kind = CommentNode
		n.Data = h.Data
	case html.DoctypeNode:
		n.Kind = DoctypeNode
		n.Data = h.Data
	default:
		n.Kind = CommentNode
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		n.AppendChild(FromHTML(c))
	}
	return n
}

// ToHTML converts n back into an x/net/html tree for rendering.
func ToHTML(n *Node) *html.Node {
	h := &html.Node{}
	switch n.Kind {
	case DocumentNode:
		h.Type = html.DocumentNode
	case ElementNode, MarkerNode:
		h.Type = html.ElementNode
		h.Data = n.Tag
		h.DataAtom = atom.Lookup([]byte(n.Tag))
		h.Attr = append([]html.Attribute(nil), n.Attrs...)
	case TextNode:
		h.Type = html.TextNode
		h.Data = n.Data
	case CommentNode:
		h.Type = html.CommentNode
		h.Data = n.Data
	case DoctypeNode:
		h.Type = html.DoctypeNode
		h.Data = n.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		h.AppendChild(ToHTML(c))
	}
	return h
}

// Render writes n as HTML.
func Render(w io.Writer, n *Node) error {
	return html.Render(w, ToHTML(n))
}

// RenderString renders n to a string, mainly for tests and small fragments.
func RenderString(n *Node) string {
	var sb strings.Builder
	if err := Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// Skeleton builds an empty HTML document titled title and returns its root
// and <body> element.
func Skeleton(title string) (root, body *Node) {
	root = NewDocument()
	root.AppendChild(&Node{Kind: DoctypeNode, Data: "html"})
	htmlEl := NewElement("html")
	root.AppendChild(htmlEl)
	head := NewElement("head")
	htmlEl.AppendChild(head)
	if title != "" {
		t := NewElement("title")
		t.AppendChild(NewText(title))
		head.AppendChild(t)
	}
	body = NewElement("body")
	htmlEl.AppendChild(body)
	return root, body
}

// AppendTextElement appends <tag>text</tag> to parent and returns it.
func AppendTextElement(parent *Node, tag, text string) *Node {
	el := NewElement(tag)
	el.AppendChild(NewText(text))
	parent.AppendChild(el)
	return el
}
