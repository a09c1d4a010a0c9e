// Package overlay drives a highlight session from keyboard and input
// events, the way a floating search box on a web page does.
package overlay

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/docmark/internal/highlight"
)

// DefaultDebounce is the quiet period before a typed query is scanned.
const DefaultDebounce = 300 * time.Millisecond

// Key is a keydown event.
type Key struct {
	Key      string `json:"key"`
	Ctrl     bool   `json:"ctrl"`
	Alt      bool   `json:"alt"`
	Shift    bool   `json:"shift"`
	Meta     bool   `json:"meta"`
	Editable bool   `json:"editable"` // focus is in an input, textarea or contenteditable
}

// Action reports what a key event did.
type Action string

const (
	ActionNone   Action = ""
	ActionOpen   Action = "open"
	ActionNext   Action = "next"
	ActionPrev   Action = "prev"
	ActionCancel Action = "cancel"
)

// State is the visible state of the search box.
type State struct {
	Open  bool   `json:"open"`
	Value string `json:"value"`
}

// Controller owns the search box state for one session.
//
// Scans run with mu held, and each open of the box gets a new generation,
// so a scan that was already dequeued when Escape arrived cannot put
// markers back on a closed box.
type Controller struct {
	mu       sync.Mutex
	session  *highlight.Session
	debounce *highlight.Debouncer
	open     bool
	value    string
	gen      uint64
}

func NewController(session *highlight.Session, delay time.Duration) *Controller {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Controller{
		session:  session,
		debounce: highlight.NewDebouncer(delay),
	}
}

// KeyDown handles a keydown event from the page or the search box.
func (c *Controller) KeyDown(k Key) Action {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()

	switch {
	case open && k.Key == "Escape":
		c.mu.Lock()
		c.gen++
		c.open = false
		c.value = ""
		c.debounce.Cancel()
		c.session.Clear()
		c.mu.Unlock()
		return ActionCancel
	case open && k.Key == "Enter" && k.Shift:
		c.session.FocusPrev()
		return ActionPrev
	case open && k.Key == "Enter":
		c.session.FocusNext()
		return ActionNext
	case !open && opensSearch(k):
		c.mu.Lock()
		c.gen++
		c.open = true
		c.value = k.Key
		task := c.scanTask(k.Key)
		c.mu.Unlock()
		c.debounce.Schedule(task)
		return ActionOpen
	}
	return ActionNone
}

// Input handles the search box value changing. It is ignored while the
// box is closed.
func (c *Controller) Input(value string) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.value = value
	task := c.scanTask(value)
	c.mu.Unlock()
	c.debounce.Schedule(task)
}

// scanTask returns the debounced scan for query. It does nothing if the
// box was closed or reopened after the task was created. Callers hold mu.
func (c *Controller) scanTask(query string) func() {
	gen := c.gen
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.open || c.gen != gen {
			return
		}
		c.session.Search(query)
	}
}

// Flush runs a pending debounced scan immediately.
func (c *Controller) Flush() {
	c.debounce.Flush()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Open: c.open, Value: c.value}
}

// Close drops any pending scan.
func (c *Controller) Close() {
	c.debounce.Cancel()
}

// opensSearch reports whether k is a bare letter or digit typed outside
// an editable element.
func opensSearch(k Key) bool {
	if k.Editable || k.Ctrl || k.Alt || k.Shift || k.Meta {
		return false
	}
	if utf8.RuneCountInString(k.Key) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(k.Key)
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
