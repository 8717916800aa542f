// Package client implements the upload coordinator and resume collection
// state machine: candidate-file validation, a single-flight upload with
// progress feedback, and a consistent local view of the resume list while
// analysis status changes out-of-band on the server.
package client

import (
	"fmt"

	"github.com/cvlens/cvlens/internal/models"
)

// AcceptedMediaType is the only document type an upload accepts.
const AcceptedMediaType = "application/pdf"

// MaxFileSizeBytes is the upload size ceiling (10 MiB). A file of exactly
// this size is still accepted.
const MaxFileSizeBytes = 10 * 1024 * 1024

// ValidationReason identifies why a candidate file was rejected.
type ValidationReason string

const (
	ReasonUnsupportedType ValidationReason = "unsupported_type"
	ReasonTooLarge        ValidationReason = "too_large"
)

// ValidationError reports a locally rejected candidate file. Validation
// runs before any network call and is never retried automatically.
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonUnsupportedType:
		return fmt.Sprintf("unsupported file type: only %s is accepted", AcceptedMediaType)
	case ReasonTooLarge:
		return fmt.Sprintf("file exceeds the %d byte upload limit", MaxFileSizeBytes)
	default:
		return "invalid file"
	}
}

// ValidateFile checks a candidate file's declared media type and size.
// Pure predicate: no I/O, no side effects. A nil return means the file
// may be submitted. The server applies the same predicate on arrival.
func ValidateFile(f models.FileMeta) error {
	if f.MediaType != AcceptedMediaType {
		return &ValidationError{Reason: ReasonUnsupportedType}
	}
	if f.SizeBytes > MaxFileSizeBytes {
		return &ValidationError{Reason: ReasonTooLarge}
	}
	return nil
}
