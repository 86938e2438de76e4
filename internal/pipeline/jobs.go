package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an expansion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusFetching   JobStatus = "fetching"
	StatusParsing    JobStatus = "parsing"
	StatusGenerating JobStatus = "generating"
	StatusPublishing JobStatus = "publishing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	// StatusPartial means at least one story issue was created but a later
	// step (completion marking or the epic update) failed. The created
	// issues are committed facts; only the epic bookkeeping is behind.
	StatusPartial JobStatus = "partial"
)

// Job tracks the state of a single epic expansion.
type Job struct {
	mu sync.Mutex

	ID      string `json:"job_id"`
	EpicKey string `json:"epic_key"`
	// StoryID restricts the expansion to one shell story; empty expands
	// every pending story in the section.
	StoryID string `json:"story_id,omitempty"`
	// Force regenerates drafts even when a cached one exists.
	Force bool `json:"force,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress tracks expansion progress.
type Progress struct {
	TotalStories  int      `json:"total_stories"`
	Drafted       int      `json:"drafted"`
	FromCache     int      `json:"from_cache"`
	IssuesCreated []string `json:"issues_created"`
	Errors        []string `json:"errors"`
}

// NewJob creates a queued job for an epic.
func NewJob(epicKey, storyID string, force bool) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		EpicKey:   epicKey,
		StoryID:   storyID,
		Force:     force,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
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

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// AddIssue records a created story issue key.
func (j *Job) AddIssue(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.IssuesCreated = append(j.Progress.IssuesCreated, key)
	j.UpdatedAt = time.Now()
}

// SetTotalStories records how many stories the job will expand.
func (j *Job) SetTotalStories(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalStories = n
	j.UpdatedAt = time.Now()
}

// IncrDrafted counts one drafted story, from cache or fresh.
func (j *Job) IncrDrafted(fromCache bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Drafted++
	if fromCache {
		j.Progress.FromCache++
	}
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	EpicKey  string    `json:"epic_key"`
	StoryID  string    `json:"story_id,omitempty"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	issues := j.Progress.IssuesCreated
	if issues == nil {
		issues = []string{}
	}
	return JobSnapshot{
		ID:      j.ID,
		EpicKey: j.EpicKey,
		StoryID: j.StoryID,
		Status:  j.Status,
		Phase:   j.Phase,
		Progress: Progress{
			TotalStories:  j.Progress.TotalStories,
			Drafted:       j.Progress.Drafted,
			FromCache:     j.Progress.FromCache,
			IssuesCreated: issues,
			Errors:        errs,
		},
	}
}

// terminal reports whether the job can no longer change state.
func (j *Job) terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusPartial
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

// ActiveForEpic reports whether a non-terminal job already exists for the
// epic. The tracker offers no transactions, so the service enforces at most
// one in-flight expansion per epic to rule out lost-update races between
// concurrent read-modify-write cycles on the same description.
func (s *JobStore) ActiveForEpic(epicKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		j.mu.Lock()
		active := j.EpicKey == epicKey && !j.terminal()
		j.mu.Unlock()
		if active {
			return true
		}
	}
	return false
}

// Cleanup removes terminal jobs past their TTL. In-flight jobs are never
// evicted; they back the one-expansion-per-epic guard.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		stale := job.terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if stale {
			delete(s.jobs, id)
		}
	}
}
