package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docmark/internal/highlight"
)

// JobStatus represents the state of a highlight job.
type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusParsing      JobStatus = "parsing"
	StatusHighlighting JobStatus = "highlighting"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
)

// Job tracks one uploaded document through parse, scan and render.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status   JobStatus      `json:"status"`
	Phase    string         `json:"phase"`
	Filename string         `json:"filename"`
	Title    string         `json:"title"`
	Query    string         `json:"query"`
	Mode     highlight.Mode `json:"mode"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   []byte
	matches  []highlight.MatchInfo
	errors   []string
}

// Progress tracks what the scan found.
type Progress struct {
	Matches  int      `json:"matches"`
	Fallback bool     `json:"fallback"` // regex query was matched literally
	Errors   []string `json:"errors"`
}

// NewJob builds a queued job for data.
func NewJob(filename, title, query string, mode highlight.Mode, data []byte) *Job {
	now := time.Now()
	j := &Job{
		ID:        ContentHashHex([]byte(fmt.Sprintf("%s-%s-%d", filename, query, now.UnixNano())))[:20],
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		Query:     query,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	j.fileData = data
	return j
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs untouched for longer than the TTL and reports how
// many it dropped.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Counts returns the number of stored jobs per status.
func (s *JobStore) Counts() map[JobStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[JobStatus]int)
	for _, job := range s.jobs {
		job.mu.Lock()
		out[job.Status]++
		job.mu.Unlock()
	}
	return out
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetResult stores the rendered document and its matches, and drops the
// upload since it is no longer needed.
func (j *Job) SetResult(html []byte, matches []highlight.MatchInfo, fallback bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = html
	j.matches = matches
	j.fileData = nil
	j.Progress.Matches = len(matches)
	j.Progress.Fallback = fallback
	j.UpdatedAt = time.Now()
}

// Result returns the rendered HTML and matches once the job has completed.
func (j *Job) Result() ([]byte, []highlight.MatchInfo, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusCompleted {
		return nil, nil, false
	}
	return j.result, j.matches, true
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string         `json:"job_id"`
	Status      JobStatus      `json:"status"`
	Phase       string         `json:"phase"`
	Filename    string         `json:"filename"`
	Title       string         `json:"title"`
	Query       string         `json:"query"`
	Mode        highlight.Mode `json:"mode"`
	ContentHash string         `json:"content_hash,omitempty"`
	Progress    Progress       `json:"progress"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		Query:       j.Query,
		Mode:        j.Mode,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		Progress: Progress{
			Matches:  j.Progress.Matches,
			Fallback: j.Progress.Fallback,
			Errors:   append([]string{}, j.Progress.Errors...),
		},
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
