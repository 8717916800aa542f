// Package models contains domain types for cvlens.
package models

import "time"

// AnalysisStatus is the server-owned lifecycle tag for a resume's
// asynchronous analysis. Clients observe it, never set it.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// IsTerminal reports whether no further transitions can occur.
func (s AnalysisStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving to next is a legal lifecycle step.
// The lifecycle runs pending -> processing -> completed|failed. Skipping
// forward to failed is allowed (a job can die before it starts), moving
// backward never is.
func (s AnalysisStatus) CanTransition(next AnalysisStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Resume represents one submitted document and its analysis outcome.
// ID is assigned by the server and immutable once created, as are the
// file metadata fields captured at upload time.
type Resume struct {
	ID             string         `json:"id" msgpack:"id"`
	FileName       string         `json:"fileName" msgpack:"fileName"`
	FileSizeBytes  int64          `json:"fileSizeBytes" msgpack:"fileSizeBytes"`
	CreatedAt      time.Time      `json:"createdAt" msgpack:"createdAt"`
	AnalysisStatus AnalysisStatus `json:"analysisStatus" msgpack:"analysisStatus"`
	FailureReason  string         `json:"failureReason,omitempty" msgpack:"failureReason,omitempty"`

	// StorageKey locates the stored blob server-side. It never crosses
	// the wire.
	StorageKey string `json:"-" msgpack:"-"`
}

// NewResume creates a Resume in pending status.
func NewResume(id, fileName string, sizeBytes int64) *Resume {
	return &Resume{
		ID:             id,
		FileName:       fileName,
		FileSizeBytes:  sizeBytes,
		CreatedAt:      time.Now().UTC(),
		AnalysisStatus: StatusPending,
	}
}
