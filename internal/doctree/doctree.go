package doctree

import (
	"strings"

	"golang.org/x/net/html"
)

// Kind tags the variant a Node represents.
type Kind int

const (
	DocumentNode Kind = iota
	ElementNode
	TextNode
	MarkerNode
	CommentNode
	DoctypeNode
)

func (k Kind) String() string {
	switch k {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case MarkerNode:
		return "marker"
	case CommentNode:
		return "comment"
	case DoctypeNode:
		return "doctype"
	}
	return "unknown"
}

// MarkerTag and MarkerClass identify highlight markers in rendered HTML.
const (
	MarkerTag   = "mark"
	MarkerClass = "docmark-hit"
)

// Node is a mutable tree node. Parent and sibling links are navigation
// pointers only; a node is owned by the tree it is attached to.
type Node struct {
	Kind  Kind
	Tag   string           // Element and marker tag name
	Attrs []html.Attribute // Element and marker attributes
	Data  string           // Text, comment and doctype content

	Parent      *Node
	FirstChild  *Node
	LastChild   *Node
	PrevSibling *Node
	NextSibling *Node
}

// Document is a loaded document tree plus its title.
type Document struct {
	Title string
	Root  *Node
}

// Body returns the <body> element, or the root when there is none.
func (d *Document) Body() *Node {
	if b := Find(d.Root, func(n *Node) bool { return n.Kind == ElementNode && n.Tag == "body" }); b != nil {
		return b
	}
	return d.Root
}

func NewDocument() *Node {
	return &Node{Kind: DocumentNode}
}

func NewElement(tag string, attrs ...html.Attribute) *Node {
	return &Node{Kind: ElementNode, Tag: tag, Attrs: attrs}
}

func NewText(data string) *Node {
	return &Node{Kind: TextNode, Data: data}
}

// NewMarker wraps text in a highlight marker.
func NewMarker(text string) *Node {
	m := &Node{
		Kind:  MarkerNode,
		Tag:   MarkerTag,
		Attrs: []html.Attribute{{Key: "class", Val: MarkerClass}},
	}
	m.AppendChild(NewText(text))
	return m
}

// Children returns a snapshot of n's child list.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// AppendChild adds c as the last child of n. c must be detached.
func (n *Node) AppendChild(c *Node) {
	if c.Parent != nil || c.PrevSibling != nil || c.NextSibling != nil {
		panic("doctree: AppendChild called for an attached child Node")
	}
	last := n.LastChild
	if last != nil {
		last.NextSibling = c
	} else {
		n.FirstChild = c
	}
	n.LastChild = c
	c.Parent = n
	c.PrevSibling = last
}

// InsertBefore inserts c as a child of n immediately before ref.
// A nil ref appends.
func (n *Node) InsertBefore(c, ref *Node) {
	if c.Parent != nil || c.PrevSibling != nil || c.NextSibling != nil {
		panic("doctree: InsertBefore called for an attached child Node")
	}
	if ref == nil {
		n.AppendChild(c)
		return
	}
	if ref.Parent != n {
		panic("doctree: InsertBefore reference is not a child of n")
	}
	prev := ref.PrevSibling
	if prev != nil {
		prev.NextSibling = c
	} else {
		n.FirstChild = c
	}
	ref.PrevSibling = c
	c.Parent = n
	c.PrevSibling = prev
	c.NextSibling = ref
}

// RemoveChild detaches c from n.
func (n *Node) RemoveChild(c *Node) {
	if c.Parent != n {
		panic("doctree: RemoveChild called for a non-child Node")
	}
	if n.FirstChild == c {
		n.FirstChild = c.NextSibling
	}
	if c.NextSibling != nil {
		c.NextSibling.PrevSibling = c.PrevSibling
	}
	if n.LastChild == c {
		n.LastChild = c.PrevSibling
	}
	if c.PrevSibling != nil {
		c.PrevSibling.NextSibling = c.NextSibling
	}
	c.Parent = nil
	c.PrevSibling = nil
	c.NextSibling = nil
}

// ReplaceChild puts repl where old was and detaches old.
func (n *Node) ReplaceChild(repl, old *Node) {
	n.InsertBefore(repl, old)
	n.RemoveChild(old)
}

// Normalize merges runs of adjacent text children into one text node and
// drops empty text children. Only direct children are touched.
func (n *Node) Normalize() {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Kind != TextNode {
			c = next
			continue
		}
		for next != nil && next.Kind == TextNode {
			c.Data += next.Data
			after := next.NextSibling
			n.RemoveChild(next)
			next = after
		}
		if c.Data == "" {
			n.RemoveChild(c)
		}
		c = next
	}
}

// TextContent concatenates the text of n and all its descendants.
func (n *Node) TextContent() string {
	if n.Kind == TextNode {
		return n.Data
	}
	var buf strings.Builder
	Walk(n, func(c *Node) bool {
		if c.Kind == TextNode {
			buf.WriteString(c.Data)
		}
		return true
	})
	return buf.String()
}

// Walk visits n and its descendants in depth-first pre-order. Returning
// false from fn skips the node's subtree.
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// Find returns the first node in pre-order for which match is true.
func Find(n *Node, match func(*Node) bool) *Node {
	var found *Node
	Walk(n, func(c *Node) bool {
		if found != nil {
			return false
		}
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute.
func (n *Node) SetAttr(key, val string) {
	for i, a := range n.Attrs {
		if a.Namespace == "" && a.Key == key {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the named attribute if present.
func (n *Node) RemoveAttr(key string) {
	for i, a := range n.Attrs {
		if a.Namespace == "" && a.Key == key {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

func (n *Node) HasClass(class string) bool {
	v, _ := n.Attr("class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func (n *Node) AddClass(class string) {
	if n.HasClass(class) {
		return
	}
	v, ok := n.Attr("class")
	if !ok || strings.TrimSpace(v) == "" {
		n.SetAttr("class", class)
		return
	}
	n.SetAttr("class", v+" "+class)
}

func (n *Node) RemoveClass(class string) {
	v, ok := n.Attr("class")
	if !ok {
		return
	}
	fields := strings.Fields(v)
	kept := fields[:0]
	for _, c := range fields {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		n.RemoveAttr("class")
		return
	}
	n.SetAttr("class", strings.Join(kept, " "))
}
