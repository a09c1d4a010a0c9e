// Package sessions keeps live highlighter sessions in memory, each one
// bound to a parsed document and its search box controller.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docmark/internal/doctree"
	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/overlay"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrFull     = errors.New("session limit reached")
)

// Options configures a Store.
type Options struct {
	TTL         time.Duration
	MaxSessions int
	Debounce    time.Duration
	Highlight   highlight.Options
}

// Entry is one live session.
type Entry struct {
	ID        string
	Title     string
	Source    string // filename or URL the document came from
	CreatedAt time.Time

	Document   *doctree.Document
	Session    *highlight.Session
	Controller *overlay.Controller
	Events     *highlight.Fanout // subscribe here to watch the session

	mu       sync.Mutex
	lastUsed time.Time
}

// Touch marks the entry as used now.
func (e *Entry) Touch() {
	e.mu.Lock()
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

func (e *Entry) LastUsed() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

func (e *Entry) close() {
	e.Controller.Close()
	e.Session.Close()
}

// Info is a JSON-safe description of an entry.
type Info struct {
	ID        string          `json:"session_id"`
	Title     string          `json:"title"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	LastUsed  time.Time       `json:"last_used"`
	Overlay   overlay.State   `json:"overlay"`
	State     highlight.State `json:"state"`
}

// Info snapshots the entry. Excerpts carry up to radius runes of context.
func (e *Entry) Info(radius int) Info {
	return Info{
		ID:        e.ID,
		Title:     e.Title,
		Source:    e.Source,
		CreatedAt: e.CreatedAt,
		LastUsed:  e.LastUsed(),
		Overlay:   e.Controller.State(),
		State:     e.Session.Snapshot(radius),
	}
}

// Store is a thread-safe session registry with idle TTL eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	opts    Options
	log     *slog.Logger
}

func NewStore(opts Options, log *slog.Logger) *Store {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	return &Store{
		entries: make(map[string]*Entry),
		opts:    opts,
		log:     log,
	}
}

// Create starts a session over doc. When the store is full, expired
// sessions are evicted first; ErrFull is returned if that frees nothing.
func (s *Store) Create(doc *doctree.Document, source string) (*Entry, error) {
	s.mu.Lock()
	var evicted []*Entry
	if s.opts.MaxSessions > 0 && len(s.entries) >= s.opts.MaxSessions {
		evicted = s.expireLocked(time.Now())
	}
	if s.opts.MaxSessions > 0 && len(s.entries) >= s.opts.MaxSessions {
		s.mu.Unlock()
		closeAll(evicted)
		return nil, ErrFull
	}

	id := uuid.NewString()
	events := highlight.NewFanout()
	hopts := s.opts.Highlight
	if hopts.Observer != nil {
		events.Add(hopts.Observer)
	}
	hopts.Observer = events
	hopts.Log = s.log.With("session_id", id)
	hopts.Page = doc.Root
	session := highlight.NewSession(doc.Body(), hopts)

	now := time.Now()
	e := &Entry{
		ID:         id,
		Title:      doc.Title,
		Source:     source,
		CreatedAt:  now,
		Document:   doc,
		Session:    session,
		Controller: overlay.NewController(session, s.opts.Debounce),
		Events:     events,
		lastUsed:   now,
	}
	s.entries[id] = e
	s.mu.Unlock()

	closeAll(evicted)
	s.log.Info("session created", "session_id", id, "source", source, "title", doc.Title)
	return e, nil
}

// Get returns a session and marks it used.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.Touch()
	return e, nil
}

// Delete closes and removes a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.close()
	s.log.Info("session deleted", "session_id", id)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup removes idle sessions and returns how many were evicted.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	evicted := s.expireLocked(time.Now())
	s.mu.Unlock()
	closeAll(evicted)
	if len(evicted) > 0 {
		s.log.Info("evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

func (s *Store) expireLocked(now time.Time) []*Entry {
	var out []*Entry
	for id, e := range s.entries {
		if now.Sub(e.LastUsed()) > s.opts.TTL {
			delete(s.entries, id)
			out = append(out, e)
		}
	}
	return out
}

// Janitor runs Cleanup every interval until ctx is done.
func (s *Store) Janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// CloseAll closes and removes every session.
func (s *Store) CloseAll() {
	s.mu.Lock()
	all := make([]*Entry, 0, len(s.entries))
	for id, e := range s.entries {
		delete(s.entries, id)
		all = append(all, e)
	}
	s.mu.Unlock()
	closeAll(all)
}

func closeAll(entries []*Entry) {
	for _, e := range entries {
		e.close()
	}
}
