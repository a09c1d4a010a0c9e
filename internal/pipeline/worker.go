package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docmark/internal/doctree"
	"github.com/dgallion1/docmark/internal/highlight"
	"github.com/dgallion1/docmark/internal/parser"
)

// ExcerptRadius is how much context job results carry around each match.
const ExcerptRadius = 40

// Worker processes a single document job.
type Worker struct {
	parserOpts parser.Options
	stats      *highlight.Stats
	log        *slog.Logger
}

func NewWorker(popts parser.Options, stats *highlight.Stats, log *slog.Logger) *Worker {
	return &Worker{
		parserOpts: popts,
		stats:      stats,
		log:        log,
	}
}

// Process parses the upload, highlights the query and renders the result.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	if err := ctx.Err(); err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "queued")
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parserOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.mu.Lock()
	if job.Title == "" {
		job.Title = doc.Title
	}
	job.ContentHash = ContentHashHex([]byte(doc.Body().TextContent()))
	job.mu.Unlock()

	// Phase 2: Highlight
	job.SetStatus(StatusHighlighting, "highlighting")
	res, err := Highlight(doc, job.Query, job.Mode, w.stats)
	if err != nil {
		log.Error("render failed", "error", err)
		job.AddError(fmt.Sprintf("render: %s", err))
		job.SetStatus(StatusFailed, "highlighting")
		return
	}
	if res.Fallback {
		log.Warn("query is not a valid pattern, matched literally", "query", job.Query)
	}

	job.SetResult(res.HTML, res.Matches, res.Fallback)
	job.SetStatus(StatusCompleted, "done")
	log.Info("highlight complete", "matches", len(res.Matches), "duration_us", res.Duration.Microseconds())
}

// Result is a highlighted, rendered document.
type Result struct {
	Title    string                `json:"title"`
	Query    string                `json:"query"`
	Mode     highlight.Mode        `json:"mode"`
	Fallback bool                  `json:"fallback"`
	Matches  []highlight.MatchInfo `json:"matches"`
	HTML     []byte                `json:"-"`
	Duration time.Duration         `json:"-"`
}

// Highlight marks every match of query in doc's body, records the scan in
// stats and renders the whole document.
func Highlight(doc *doctree.Document, query string, mode highlight.Mode, stats *highlight.Stats) (*Result, error) {
	start := time.Now()
	body := doc.Body()
	highlight.Clear(body)
	m := highlight.Compile(query, mode)
	matches := highlight.Scan(body, m)
	elapsed := time.Since(start)
	if query != "" {
		stats.Record(elapsed, len(matches))
	}

	var buf bytes.Buffer
	if err := doctree.Render(&buf, doc.Root); err != nil {
		return nil, err
	}
	return &Result{
		Title:    doc.Title,
		Query:    query,
		Mode:     m.Mode,
		Fallback: m.Fallback,
		Matches:  highlight.Describe(matches, ExcerptRadius),
		HTML:     buf.Bytes(),
		Duration: elapsed,
	}, nil
}
