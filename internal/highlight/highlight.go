package highlight

import (
	"strconv"

	"github.com/dgallion1/docmark/internal/doctree"
)

// IndexAttr records a marker's position in the match sequence.
const IndexAttr = "data-docmark-index"

// ActiveClass is the transient emphasis applied to the focused marker.
const ActiveClass = "docmark-active"

// Match is one occurrence of the query, represented by its marker.
type Match struct {
	Index  int
	Marker *doctree.Node
}

// Text returns the matched text.
func (m Match) Text() string {
	if m.Marker == nil {
		return ""
	}
	return m.Marker.TextContent()
}

// skipTags hold text that is not page content, or that the HTML serializer
// writes out unescaped so a marker inside it would render as literal tags.
var skipTags = map[string]bool{
	"script":    true,
	"style":     true,
	"noscript":  true,
	"template":  true,
	"textarea":  true,
	"title":     true,
	"xmp":       true,
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"plaintext": true,
}

// Clear unwraps every marker under root back into plain text and merges
// the text fragments left behind. It returns the number of markers removed.
func Clear(root *doctree.Node) int {
	if root == nil {
		return 0
	}
	var markers []*doctree.Node
	doctree.Walk(root, func(n *doctree.Node) bool {
		if n.Kind == doctree.MarkerNode {
			markers = append(markers, n)
			return false
		}
		return true
	})
	if len(markers) == 0 {
		return 0
	}

	parents := make(map[*doctree.Node]bool, len(markers))
	var order []*doctree.Node
	for _, m := range markers {
		parent := m.Parent
		if parent == nil {
			continue
		}
		parent.ReplaceChild(doctree.NewText(m.TextContent()), m)
		if !parents[parent] {
			parents[parent] = true
			order = append(order, parent)
		}
	}
	for _, p := range order {
		p.Normalize()
	}
	return len(markers)
}

// Scan wraps every occurrence matched by m inside root's text leaves and
// returns the matches in document order. Clear should run first; existing
// markers are treated as leaves and left alone.
func Scan(root *doctree.Node, m *Matcher) []Match {
	if root == nil || m.Empty() {
		return nil
	}
	var matches []Match
	var visit func(n *doctree.Node)
	visit = func(n *doctree.Node) {
		switch n.Kind {
		case doctree.TextNode:
			matches = splitText(n, m, matches)
			return
		case doctree.MarkerNode, doctree.CommentNode, doctree.DoctypeNode:
			return
		case doctree.ElementNode:
			if skipTags[n.Tag] {
				return
			}
		}
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			visit(c)
			c = next
		}
	}
	visit(root)
	return matches
}

// splitText replaces a text leaf with alternating text and marker nodes,
// scanning what remains after each match.
func splitText(node *doctree.Node, m *Matcher, matches []Match) []Match {
	parent := node.Parent
	if parent == nil {
		return matches
	}
	rest := node.Data
	start, end, ok := m.Find(rest)
	if !ok {
		return matches
	}
	for ok {
		if start > 0 {
			parent.InsertBefore(doctree.NewText(rest[:start]), node)
		}
		marker := doctree.NewMarker(rest[start:end])
		marker.SetAttr(IndexAttr, strconv.Itoa(len(matches)))
		parent.InsertBefore(marker, node)
		matches = append(matches, Match{Index: len(matches), Marker: marker})

		rest = rest[end:]
		start, end, ok = m.Find(rest)
	}
	if rest != "" {
		parent.InsertBefore(doctree.NewText(rest), node)
	}
	parent.RemoveChild(node)
	return matches
}

// Highlight runs Clear followed by Scan for query.
func Highlight(root *doctree.Node, query string, mode Mode) []Match {
	Clear(root)
	return Scan(root, Compile(query, mode))
}

// FocusNext advances cursor cyclically over matches. With no matches the
// cursor stays at -1 and ok is false.
func FocusNext(matches []Match, cursor int) (next int, focused Match, ok bool) {
	if len(matches) == 0 {
		return -1, Match{}, false
	}
	next = (cursor + 1) % len(matches)
	if next < 0 {
		next = 0
	}
	return next, matches[next], true
}

// FocusPrev moves cursor backwards cyclically. From -1 it lands on the
// last match.
func FocusPrev(matches []Match, cursor int) (prev int, focused Match, ok bool) {
	n := len(matches)
	if n == 0 {
		return -1, Match{}, false
	}
	if cursor < 0 || cursor >= n {
		prev = n - 1
	} else {
		prev = (cursor - 1 + n) % n
	}
	return prev, matches[prev], true
}
