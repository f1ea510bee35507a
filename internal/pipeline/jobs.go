package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/igzam/itemgest/internal/model"
)

// JobStatus represents the state of a document job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConverting JobStatus = "converting"
	StatusExtracting JobStatus = "extracting"
	StatusPublishing JobStatus = "publishing"
	StatusCompleted  JobStatus = "completed"
	StatusRejected   JobStatus = "rejected"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Job tracks the state of a single exam document.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Batch    string `json:"batch"`
	Subject  string `json:"subject"`
	Filename string `json:"filename"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	source  string
	verdict *model.Verdict
	errors  []string
}

// Progress tracks extraction and publication counts.
type Progress struct {
	TotalItems int      `json:"total_items"`
	Units      int      `json:"units"`
	Published  int      `json:"published"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// NewJob returns a queued job for the document at source.
func NewJob(source, filename string) *Job {
	now := time.Now()
	return &Job{
		ID:        newJobID(),
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		source:    source,
	}
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

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetBatch records the batch name and detected subject code.
func (j *Job) SetBatch(batch, subject string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Batch = batch
	j.Subject = subject
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

// SetVerdict stores the engine result and its item counts.
func (j *Job) SetVerdict(v *model.Verdict) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.verdict = v
	j.Progress.TotalItems = model.TotalItems(v.Data)
	j.Progress.Units = len(v.Units)
	j.UpdatedAt = time.Now()
}

// Verdict returns the engine result, or nil before extraction finished.
func (j *Job) Verdict() *model.Verdict {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.verdict
}

// AddPublished records published and failed item counts.
func (j *Job) AddPublished(published, failed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Published += published
	j.Progress.Failed += failed
	j.UpdatedAt = time.Now()
}

// Source returns the path of the document being processed.
func (j *Job) Source() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.source
}

func (j *Job) setContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

func (j *Job) setSource(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.source = path
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string         `json:"job_id"`
	Batch    string         `json:"batch"`
	Subject  string         `json:"subject"`
	Filename string         `json:"filename"`
	Status   JobStatus      `json:"status"`
	Phase    string         `json:"phase"`
	Progress Progress       `json:"progress"`
	Verdict  *model.Verdict `json:"verdict,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = make([]string, len(j.errors))
	copy(p.Errors, j.errors)
	return JobSnapshot{
		ID:       j.ID,
		Batch:    j.Batch,
		Subject:  j.Subject,
		Filename: j.Filename,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: p,
		Verdict:  j.verdict,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
