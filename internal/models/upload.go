package models

// UploadPhase tracks where a single upload attempt is in its lifecycle.
type UploadPhase string

const (
	PhaseIdle         UploadPhase = "idle"
	PhaseValidating   UploadPhase = "validating"
	PhaseTransmitting UploadPhase = "transmitting"
	PhaseSucceeded    UploadPhase = "succeeded"
	PhaseFailed       UploadPhase = "failed"
)

// FileMeta describes a candidate file as selected by the user: the declared
// name, size and media type, plus the local path when uploading from disk.
type FileMeta struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	MediaType string `json:"mediaType"`
	Path      string `json:"path,omitempty"`
}

// UploadAttempt is the ephemeral state of one submission, from file
// selection through success or failure. Exactly one attempt is active per
// coordinator; progress never decreases within an attempt.
type UploadAttempt struct {
	CandidateFile   *FileMeta   `json:"candidateFile,omitempty"`
	ProgressPercent int         `json:"progressPercent"`
	Phase           UploadPhase `json:"phase"`
	Message         string      `json:"message,omitempty"`
}
