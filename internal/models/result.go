package models

import "time"

// AnalysisResult is the outcome the analysis pipeline produces for a
// completed resume.
type AnalysisResult struct {
	ResumeID    string    `json:"resumeId"`
	Score       float64   `json:"score"`
	Summary     string    `json:"summary"`
	Skills      []string  `json:"skills,omitempty"`
	Sections    []string  `json:"sections,omitempty"`
	WordCount   int       `json:"wordCount"`
	CompletedAt time.Time `json:"completedAt"`
}

// StatusEvent records one analysis status transition for a resume.
type StatusEvent struct {
	Seq        int64          `json:"seq,omitempty"`
	ResumeID   string         `json:"resumeId"`
	FromStatus AnalysisStatus `json:"fromStatus"`
	ToStatus   AnalysisStatus `json:"toStatus"`
	OccurredAt time.Time      `json:"occurredAt"`
}
