package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgallion1/docmark/internal/doctree"
	"github.com/dgallion1/docmark/internal/fetch"
	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/parser"
	"github.com/dgallion1/docmark/internal/pipeline"
	"github.com/dgallion1/docmark/internal/sessions"
	"github.com/go-chi/chi/v5"
)

// sessionResponse wraps session info with the URLs a client needs next.
type sessionResponse struct {
	sessions.Info
	DocumentURL string `json:"document_url"`
	WSURL       string `json:"ws_url"`
}

// focusResponse answers next/prev. Focused is nil when there are no matches.
type focusResponse struct {
	Focused *highlight.MatchInfo `json:"focused"`
	Cursor  int                  `json:"cursor"`
	Total   int                  `json:"total"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	err := r.ParseMultipartForm(32 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var (
		doc    *doctree.Document
		source string
		status int
	)
	if rawURL := r.FormValue("url"); rawURL != "" {
		doc, status, err = s.loadURL(r, rawURL)
		source = rawURL
	} else {
		doc, source, status, err = s.loadUpload(r)
	}
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}
	if title := r.FormValue("title"); title != "" {
		doc.Title = title
	}

	entry, err := s.sessions.Create(doc, source)
	if errors.Is(err, sessions.ErrFull) {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if q := r.FormValue("query"); q != "" {
		entry.Session.Search(q)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s.sessionResponse(entry))
}

func (s *Server) loadUpload(r *http.Request) (*doctree.Document, string, int, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", http.StatusBadRequest, fmt.Errorf("file or url is required: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	data, status, err := s.readUpload(file, filename)
	if err != nil {
		return nil, "", status, err
	}
	p, err := parser.ForFile(filename, s.parserOptions())
	if err != nil {
		return nil, "", http.StatusBadRequest, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, "", http.StatusUnprocessableEntity, fmt.Errorf("parse failed: %w", err)
	}
	return doc, filename, http.StatusOK, nil
}

func (s *Server) loadURL(r *http.Request, rawURL string) (*doctree.Document, int, error) {
	if s.fetcher == nil {
		return nil, http.StatusForbidden, errors.New("page fetching is disabled")
	}
	page, err := s.fetcher.Fetch(r.Context(), rawURL)
	switch {
	case errors.Is(err, fetch.ErrBlockedHost):
		return nil, http.StatusForbidden, err
	case errors.Is(err, fetch.ErrInvalidURL):
		return nil, http.StatusBadRequest, err
	case errors.Is(err, fetch.ErrTooLarge):
		return nil, http.StatusRequestEntityTooLarge, err
	case err != nil:
		return nil, http.StatusBadGateway, err
	}

	p := parser.ForContentType(page.ContentType, s.parserOptions())
	doc, err := p.Parse(bytes.NewReader(page.Body), page.Name())
	if err != nil {
		return nil, http.StatusUnprocessableEntity, fmt.Errorf("parse failed: %w", err)
	}
	return doc, http.StatusOK, nil
}

func (s *Server) sessionResponse(e *sessions.Entry) sessionResponse {
	return sessionResponse{
		Info:        e.Info(pipeline.ExcerptRadius),
		DocumentURL: fmt.Sprintf("/api/sessions/%s/document", e.ID),
		WSURL:       fmt.Sprintf("/api/sessions/%s/ws", e.ID),
	}
}

// sessionFromRequest looks up the {sessionID} parameter, answering 404 when
// it does not exist.
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*sessions.Entry, bool) {
	entry, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return entry, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.sessionResponse(entry))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry.Session.Search(req.Query)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry.Session.Snapshot(pipeline.ExcerptRadius))
}

func (s *Server) handleClearQuery(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	entry.Session.Clear()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry.Session.Snapshot(pipeline.ExcerptRadius))
}

func (s *Server) handleFocusNext(w http.ResponseWriter, r *http.Request) {
	s.handleFocus(w, r, (*highlight.Session).FocusNext)
}

func (s *Server) handleFocusPrev(w http.ResponseWriter, r *http.Request) {
	s.handleFocus(w, r, (*highlight.Session).FocusPrev)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request, step func(*highlight.Session) (highlight.Match, bool)) {
	entry, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	resp := focusResponse{Cursor: -1}
	if _, focused := step(entry.Session); focused {
		st := entry.Session.Snapshot(pipeline.ExcerptRadius)
		resp.Cursor = st.Cursor
		resp.Total = st.Total
		if st.Cursor >= 0 && st.Cursor < len(st.Matches) {
			resp.Focused = &st.Matches[st.Cursor]
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := entry.Session.Render(&buf); err != nil {
		jsonError(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
