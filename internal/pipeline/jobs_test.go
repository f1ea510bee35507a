package pipeline

import (
	"testing"
	"time"

	"github.com/igzam/itemgest/internal/model"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("/data/input/questions/ENG-2024.docx", "ENG-2024.docx")
	if job.ID == "" || len(job.ID) != 26 {
		t.Errorf("expected 26-char job id, got %q", job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if job.Source() != "/data/input/questions/ENG-2024.docx" {
		t.Errorf("expected source path kept, got %q", job.Source())
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusConverting, "converting"},
		{StatusExtracting, "extracting"},
		{StatusPublishing, "publishing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("order 3: rejected")
	job.AddError("order 7: rejected")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "order 3: rejected" {
		t.Errorf("expected first error %q, got %q", "order 3: rejected", snap.Progress.Errors[0])
	}

	job.AddError("later")
	if len(snap.Progress.Errors) != 2 {
		t.Error("expected snapshot errors to be a copy")
	}
}

func TestJob_SetVerdict(t *testing.T) {
	job := &Job{ID: "verdict-test"}
	v := &model.Verdict{
		Status: true,
		Data: []model.Group{
			{Grouped: true, Items: []model.Question{{Order: 1}, {Order: 2}}},
			{Items: []model.Question{{Order: 3}}},
		},
		Units: []model.Unit{{}, {}},
	}
	job.SetVerdict(v)

	snap := job.Snapshot()
	if snap.Progress.TotalItems != 3 || snap.Progress.Units != 2 {
		t.Errorf("expected 3 items in 2 units, got %d in %d", snap.Progress.TotalItems, snap.Progress.Units)
	}
	if snap.Verdict != v || job.Verdict() != v {
		t.Error("expected verdict exposed on snapshot")
	}
}

func TestJob_AddPublished(t *testing.T) {
	job := &Job{ID: "pub-test"}
	job.AddPublished(5, 1)
	job.AddPublished(3, 0)

	snap := job.Snapshot()
	if snap.Progress.Published != 8 {
		t.Errorf("expected 8 published, got %d", snap.Progress.Published)
	}
	if snap.Progress.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", snap.Progress.Failed)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
