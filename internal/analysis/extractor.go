// Package analysis turns stored resume documents into scored results.
// Extraction pulls plain text out of the uploaded blob, the Analyzer
// scores that text, and the Pipeline drives both against the repository.
package analysis

import (
	"context"
	"fmt"
	"io"
)

// ProgressFunc receives extraction progress as a percentage of the
// document processed so far.
type ProgressFunc func(pct float64)

// Extractor pulls plain text out of one document format.
type Extractor interface {
	// Name identifies the extractor in logs and job stages.
	Name() string
	// CanExtract reports whether this extractor handles the media type.
	CanExtract(mediaType string) bool
	// Extract reads the document and returns its plain text. The
	// progress callback may be nil.
	Extract(ctx context.Context, r io.ReaderAt, size int64, progress ProgressFunc) (string, error)
}

// Registry holds all available extractors and resolves them by media type.
type Registry struct {
	extractors []Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			NewPDFExtractor(),
		},
	}
}

// Register adds an extractor to the registry.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Find returns the extractor for a media type.
func (r *Registry) Find(mediaType string) (Extractor, error) {
	for _, e := range r.extractors {
		if e.CanExtract(mediaType) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no extractor for media type: %s", mediaType)
}
