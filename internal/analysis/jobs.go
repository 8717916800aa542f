package analysis

import (
	"sync"
	"time"

	"github.com/cvlens/cvlens/internal/models"
)

// Stage labels reported through the live progress feed.
const (
	StageQueued     = "queued"
	StageExtracting = "extracting text"
	StageScoring    = "scoring"
	StageDone       = "done"
)

// Job tracks the live progress of one resume's analysis. It exists from
// enqueue until the TTL sweep collects it, outliving completion so late
// progress readers still see a terminal snapshot.
type Job struct {
	ResumeID    string                `json:"resumeId"`
	Status      models.AnalysisStatus `json:"status"`
	Stage       string                `json:"stage"`
	Progress    float64               `json:"progress"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"startedAt"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
}

// Jobs is the in-memory registry of analysis jobs, keyed by resume ID.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*Job)}
}

// Begin registers a freshly queued job.
func (j *Jobs) Begin(resumeID string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jobs[resumeID] = &Job{
		ResumeID:  resumeID,
		Status:    models.StatusPending,
		Stage:     StageQueued,
		StartedAt: time.Now(),
	}
}

// Get returns a snapshot of the job for a resume.
func (j *Jobs) Get(resumeID string) (Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	job, ok := j.jobs[resumeID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// SetStage updates the stage and progress of a running job.
func (j *Jobs) SetStage(resumeID, stage string, progress float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.jobs[resumeID]
	if !ok {
		return
	}
	job.Status = models.StatusProcessing
	job.Stage = stage
	job.Progress = progress
}

// Complete marks the job finished at full progress.
func (j *Jobs) Complete(resumeID string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.jobs[resumeID]
	if !ok {
		return
	}
	job.Status = models.StatusCompleted
	job.Stage = StageDone
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
}

// Fail records the failure message and ends the job.
func (j *Jobs) Fail(resumeID, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.jobs[resumeID]
	if !ok {
		return
	}
	job.Status = models.StatusFailed
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
}

// CleanupOldJobs removes terminal jobs older than maxAge and reports
// how many were dropped.
func (j *Jobs) CleanupOldJobs(maxAge time.Duration) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range j.jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(j.jobs, id)
			removed++
		}
	}
	return removed
}
