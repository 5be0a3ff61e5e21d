package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a background ingestion.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job is the status record for one scheduled ingestion. The triggering call
// only acknowledges scheduling; completion is visible through this record.
type Job struct {
	ID          string    `json:"job_id"`
	Backend     string    `json:"backend"`
	IndexName   string    `json:"index_name"`
	State       JobState  `json:"state"`
	ChunksAdded int       `json:"chunks_added"`
	Error       string    `json:"error,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// JobRegistry tracks ingestion jobs by id.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobRegistry returns an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*Job)}
}

// Create registers a new pending job and returns it.
func (r *JobRegistry) Create(backendName, indexName string) *Job {
	job := &Job{
		ID:          uuid.New().String(),
		Backend:     backendName,
		IndexName:   indexName,
		State:       JobPending,
		ScheduledAt: time.Now().UTC(),
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

// Get returns a copy of the job with the given id, or false.
func (r *JobRegistry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (r *JobRegistry) setRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.State = JobRunning
	}
}

func (r *JobRegistry) setCompleted(id string, added int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.State = JobCompleted
		job.ChunksAdded = added
		job.FinishedAt = time.Now().UTC()
	}
}

func (r *JobRegistry) setFailed(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.State = JobFailed
		job.Error = err.Error()
		job.FinishedAt = time.Now().UTC()
	}
}
