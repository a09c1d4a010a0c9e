package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/docmark/internal/highlight"
)

func TestContentHashHex(t *testing.T) {
	tests := map[string]string{
		"hello world": "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		"":            "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	}
	for in, want := range tests {
		if got := ContentHashHex([]byte(in)); got != want {
			t.Errorf("ContentHashHex(%q) = %q, want %q", in, got, want)
		}
	}
	if ContentHashHex([]byte("aaa")) == ContentHashHex([]byte("bbb")) {
		t.Error("expected different hashes for different inputs")
	}
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob("a.txt", "", "x", highlight.ModeLiteral, []byte("x"))

	steps := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusHighlighting, "highlighting"},
		{StatusCompleted, "completed"},
	}
	for _, st := range steps {
		before := job.Snapshot().UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(st.status, st.phase)

		snap := job.Snapshot()
		if snap.Status != st.status || snap.Phase != st.phase {
			t.Errorf("expected %q/%q, got %q/%q", st.status, st.phase, snap.Status, snap.Phase)
		}
		if !snap.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance on %q", st.status)
		}
	}
}

func TestJob_Errors(t *testing.T) {
	job := NewJob("a.txt", "", "x", highlight.ModeLiteral, nil)
	if snap := job.Snapshot(); snap.Progress.Errors == nil || len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty non-nil errors, got %#v", snap.Progress.Errors)
	}

	job.AddError("parse: bad header")
	job.AddError("render: closed pipe")
	job.SetStatus(StatusFailed, "highlighting")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 || snap.Progress.Errors[0] != "parse: bad header" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
	if _, _, ok := job.Result(); ok {
		t.Error("expected no result for a failed job")
	}
}

func TestJob_ResultOnlyWhenCompleted(t *testing.T) {
	job := NewJob("a.txt", "", "x", highlight.ModeLiteral, []byte("x"))
	job.SetResult([]byte("<p>x</p>"), []highlight.MatchInfo{{Index: 0, Text: "x"}}, false)

	if _, _, ok := job.Result(); ok {
		t.Error("expected no result before completion")
	}
	job.SetStatus(StatusCompleted, "done")
	html, matches, ok := job.Result()
	if !ok || string(html) != "<p>x</p>" || len(matches) != 1 {
		t.Errorf("unexpected result: %q %v %v", html, matches, ok)
	}
	if job.FileData() != nil {
		t.Error("expected upload dropped once the result is stored")
	}
	if snap := job.Snapshot(); snap.Progress.Matches != 1 {
		t.Errorf("expected 1 match in progress, got %d", snap.Progress.Matches)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("a.txt", "Title", "q", highlight.ModeRegex, []byte("data"))
	if len(job.ID) != 20 {
		t.Errorf("expected 20-char id, got %q", job.ID)
	}
	if job.Status != StatusQueued || job.Phase != "queued" {
		t.Errorf("unexpected initial state %q/%q", job.Status, job.Phase)
	}
	if string(job.FileData()) != "data" {
		t.Errorf("unexpected file data %q", job.FileData())
	}
	job.SetFileData([]byte("other"))
	if string(job.FileData()) != "other" {
		t.Errorf("expected replaced file data, got %q", job.FileData())
	}
}

func TestJobStore(t *testing.T) {
	store := NewJobStore(time.Minute)
	if store.Get("missing") != nil {
		t.Error("expected nil for missing job")
	}
	if n := store.Cleanup(); n != 0 {
		t.Errorf("expected empty cleanup to remove nothing, got %d", n)
	}

	stale := NewJob("old.txt", "", "x", highlight.ModeLiteral, nil)
	stale.UpdatedAt = time.Now().Add(-2 * time.Minute)
	fresh := NewJob("new.txt", "", "x", highlight.ModeLiteral, nil)
	fresh.SetStatus(StatusCompleted, "completed")
	store.Put(stale)
	store.Put(fresh)

	if got := store.Get(fresh.ID); got != fresh {
		t.Fatal("expected stored job back")
	}
	counts := store.Counts()
	if counts[StatusQueued] != 1 || counts[StatusCompleted] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}

	if n := store.Cleanup(); n != 1 {
		t.Errorf("expected 1 expired job removed, got %d", n)
	}
	if store.Get(stale.ID) != nil || store.Get(fresh.ID) == nil {
		t.Error("expected only the stale job removed")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job left, got %d", store.Len())
	}
}
