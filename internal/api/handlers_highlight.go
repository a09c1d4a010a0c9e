package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/parser"
	"github.com/dgallion1/docmark/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

var errUploadTooLarge = errors.New("file exceeds max size")

// highlightResponse is the JSON answer to a one-shot highlight.
type highlightResponse struct {
	*pipeline.Result
	Total int    `json:"total"`
	HTML  string `json:"html"`
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, err := s.requestMode(r.FormValue("mode"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	data, status, err := s.readUpload(file, filename)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	p, err := parser.ForFile(filename, s.parserOptions())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, "parse failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if title := r.FormValue("title"); title != "" {
		doc.Title = title
	}

	res, err := pipeline.Highlight(doc, r.FormValue("query"), mode, s.stats)
	if err != nil {
		jsonError(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if r.FormValue("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(res.HTML)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(highlightResponse{
		Result: res,
		Total:  len(res.Matches),
		HTML:   string(res.HTML),
	})
}

func (s *Server) handleBatchHighlight(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	query := r.FormValue("query")
	if query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	mode, err := s.requestMode(r.FormValue("mode"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		data, err := s.readFileHeader(fh, filename)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(filename, "", query, mode, data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) readFileHeader(fh *multipart.FileHeader, filename string) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("failed to open file")
	}
	defer f.Close()
	data, _, err := s.readUpload(f, filename)
	return data, err
}

// readUpload checks the extension and size limit of an uploaded file and
// returns its bytes, or an error with the HTTP status to answer.
func (s *Server) readUpload(r io.Reader, filename string) ([]byte, int, error) {
	if !parser.IsSupportedExtension(filename) {
		return nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("%w (%d bytes)", errUploadTooLarge, s.cfg.MaxUploadBytes)
	}
	return data, http.StatusOK, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	html, matches, ok := job.Result()
	if !ok {
		snap := job.Snapshot()
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   snap.ID,
		"title":    snap.Title,
		"query":    snap.Query,
		"mode":     snap.Mode,
		"fallback": snap.Progress.Fallback,
		"total":    len(matches),
		"matches":  matches,
		"html":     string(html),
	})
}

// requestMode parses a request's mode value, falling back to the
// configured default.
func (s *Server) requestMode(v string) (highlight.Mode, error) {
	if v == "" {
		return s.cfg.Mode(), nil
	}
	return highlight.ParseMode(v)
}

func (s *Server) parserOptions() parser.Options {
	return parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
