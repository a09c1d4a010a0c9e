package highlight

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docmark/internal/doctree"
)

// DefaultEmphasis is how long a focused marker keeps ActiveClass.
const DefaultEmphasis = time.Second

// Observer receives the visible side effects of a session. Focused stands
// in for scrolling the marker into view. Callbacks run without the session
// lock held and may arrive from timer goroutines.
type Observer interface {
	Scanned(query string, total int)
	Focused(m Match, cursor, total int)
	Blurred(m Match)
}

type nopObserver struct{}

func (nopObserver) Scanned(string, int)      {}
func (nopObserver) Focused(Match, int, int) {}
func (nopObserver) Blurred(Match)           {}

// Options configures a Session.
type Options struct {
	Mode      Mode
	Emphasis  time.Duration
	AutoFocus bool // focus the first match after a non-empty scan
	Observer  Observer
	Stats     *Stats
	Log       *slog.Logger

	// Page is the tree Render writes, usually the whole document around
	// the scan root. Defaults to the scan root.
	Page *doctree.Node
}

// Session owns the match set and cursor for one document tree.
type Session struct {
	mu      sync.Mutex
	root    *doctree.Node
	opts    Options
	query   string
	matches []Match
	cursor  int
	gen     uint64
	timers  map[*time.Timer]struct{}
	closed  bool
}

// NewSession creates a session that searches the tree under root.
func NewSession(root *doctree.Node, opts Options) *Session {
	if opts.Mode == "" {
		opts.Mode = ModeLiteral
	}
	if opts.Emphasis <= 0 {
		opts.Emphasis = DefaultEmphasis
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Page == nil {
		opts.Page = root
	}
	return &Session{
		root:   root,
		opts:   opts,
		cursor: -1,
		timers: make(map[*time.Timer]struct{}),
	}
}

// Search clears previous markers, scans for query and resets the cursor.
// An empty query only clears.
func (s *Session) Search(query string) []Match {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	start := time.Now()
	Clear(s.root)
	m := Compile(query, s.opts.Mode)
	if m.Fallback {
		s.opts.Log.Warn("query is not a valid pattern, matching literally", "query", query, "error", m.CompileErr)
	}
	s.matches = Scan(s.root, m)
	s.cursor = -1
	s.gen++
	s.query = query
	elapsed := time.Since(start)
	out := append([]Match(nil), s.matches...)
	obs := s.opts.Observer
	s.mu.Unlock()

	if query != "" {
		s.opts.Stats.Record(elapsed, len(out))
	}
	s.opts.Log.Debug("scan complete", "query", query, "matches", len(out), "duration_us", elapsed.Microseconds())
	obs.Scanned(query, len(out))

	if s.opts.AutoFocus && len(out) > 0 {
		s.FocusNext()
	}
	return out
}

// Clear removes all markers and empties the match set.
func (s *Session) Clear() {
	s.Search("")
}

// FocusNext moves to the next match, wrapping after the last one.
func (s *Session) FocusNext() (Match, bool) {
	return s.focus(FocusNext)
}

// FocusPrev moves to the previous match, wrapping before the first one.
func (s *Session) FocusPrev() (Match, bool) {
	return s.focus(FocusPrev)
}

func (s *Session) focus(step func([]Match, int) (int, Match, bool)) (Match, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Match{}, false
	}
	cursor, m, ok := step(s.matches, s.cursor)
	if !ok {
		s.mu.Unlock()
		return Match{}, false
	}
	s.cursor = cursor
	m.Marker.AddClass(ActiveClass)
	s.scheduleBlurLocked(m, s.gen)
	total := len(s.matches)
	obs := s.opts.Observer
	s.mu.Unlock()

	obs.Focused(m, cursor, total)
	return m, true
}

// scheduleBlurLocked removes the emphasis from m after the emphasis
// duration. Overlapping timers are fine: removing the class is idempotent.
func (s *Session) scheduleBlurLocked(m Match, gen uint64) {
	var t *time.Timer
	t = time.AfterFunc(s.opts.Emphasis, func() {
		s.mu.Lock()
		delete(s.timers, t)
		m.Marker.RemoveClass(ActiveClass)
		stale := s.closed || s.gen != gen
		obs := s.opts.Observer
		s.mu.Unlock()
		if !stale {
			obs.Blurred(m)
		}
	})
	s.timers[t] = struct{}{}
}

func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Cursor returns the focused index, or -1 when nothing is focused.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Matches returns a copy of the current match set.
func (s *Session) Matches() []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Match(nil), s.matches...)
}

// MatchInfo is a JSON-safe description of a match.
type MatchInfo struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Excerpt string `json:"excerpt"`
}

// State is a JSON-safe snapshot of the session.
type State struct {
	Query   string      `json:"query"`
	Total   int         `json:"total"`
	Cursor  int         `json:"cursor"`
	Matches []MatchInfo `json:"matches"`
}

// Snapshot describes the session. Excerpts carry up to radius runes of
// surrounding text on each side.
func (s *Session) Snapshot(radius int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Query:   s.query,
		Total:   len(s.matches),
		Cursor:  s.cursor,
		Matches: Describe(s.matches, radius),
	}
}

// Render writes the page, markers included, as HTML.
func (s *Session) Render(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return doctree.Render(w, s.opts.Page)
}

// Close stops pending emphasis timers. Later calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// Describe converts matches into MatchInfo values.
func Describe(matches []Match, radius int) []MatchInfo {
	out := make([]MatchInfo, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchInfo{
			Index:   m.Index,
			Text:    m.Text(),
			Excerpt: Excerpt(m, radius),
		})
	}
	return out
}

// Excerpt returns the match with up to radius runes of neighbouring text
// from the sibling text nodes on either side.
func Excerpt(m Match, radius int) string {
	if m.Marker == nil {
		return ""
	}
	var before, after string
	if p := m.Marker.PrevSibling; p != nil && p.Kind == doctree.TextNode {
		before = lastRunes(p.Data, radius)
	}
	if n := m.Marker.NextSibling; n != nil && n.Kind == doctree.TextNode {
		after = firstRunes(n.Data, radius)
	}
	return strings.TrimSpace(before + m.Text() + after)
}

func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
