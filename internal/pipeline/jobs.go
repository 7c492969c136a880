package pipeline

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/docuwrite/internal/annotate"
)

// JobStatus represents the state of a build job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusAssembling JobStatus = "assembling"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial" // rendered, but units were skipped or figures failed
)

// Job tracks the state of a single document build submitted to the service.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	Title string `json:"title"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`
	Files  []string  `json:"files"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	dir      string // job workspace holding src/ and out/
	manifest *annotate.Manifest
	errors   []string
}

// Progress summarizes what a build produced so far.
type Progress struct {
	Units         int      `json:"units"`
	SkippedUnits  int      `json:"skipped_units"`
	Figures       int      `json:"figures"`
	FailedFigures int      `json:"failed_figures"`
	Tables        int      `json:"tables"`
	Todos         int      `json:"todos"`
	Errors        []string `json:"errors"`
}

// NewJob returns a queued job working in dir.
func NewJob(id, title, dir string, files []string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Title:     title,
		Status:    StatusQueued,
		Phase:     "queued",
		Files:     files,
		CreatedAt: now,
		UpdatedAt: now,
		dir:       dir,
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

// List returns snapshots of all jobs ordered by creation time.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	out := make([]JobSnapshot, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}

// Cleanup removes expired jobs and returns them so their workspaces can be
// deleted.
func (s *JobStore) Cleanup() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var expired []*Job
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	return expired
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

// SetManifest records the build manifest and derives progress counts.
func (j *Job) SetManifest(m *annotate.Manifest) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.manifest = m
	j.Progress.Units = len(m.Processed) + len(m.Skipped)
	j.Progress.SkippedUnits = len(m.Skipped)
	j.Progress.Figures = len(m.Figures)
	j.Progress.FailedFigures = len(m.FailedFigures())
	j.Progress.Tables = len(m.Tables)
	j.Progress.Todos = len(m.Todos)
	j.UpdatedAt = time.Now()
}

// Manifest returns the build manifest, nil until the build assembled.
func (j *Job) Manifest() *annotate.Manifest {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.manifest
}

// Dir returns the job workspace.
func (j *Job) Dir() string {
	return j.dir
}

// SourceDir holds the uploaded sources and their order file.
func (j *Job) SourceDir() string {
	return filepath.Join(j.dir, "src")
}

// OutputDir receives the images, annotated document, manifest and output.
func (j *Job) OutputDir() string {
	return filepath.Join(j.dir, "out")
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Title     string    `json:"title"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Files     []string  `json:"files"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	files := j.Files
	if files == nil {
		files = []string{}
	}
	progress := j.Progress
	progress.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		Title:     j.Title,
		Status:    j.Status,
		Phase:     j.Phase,
		Files:     files,
		Progress:  progress,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
