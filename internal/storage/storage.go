// Package storage persists uploaded resume documents as opaque blobs.
// Metadata about resumes lives in the repository; a Store only moves bytes.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/cvlens/cvlens/internal/models"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("stored file not found")

// Store defines the interface for document blob storage.
type Store interface {
	// Save writes the blob and returns its storage key and metadata.
	Save(ctx context.Context, name string, r io.Reader) (*models.StoredFile, error)
	// Open returns a reader over the blob. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// Path returns a local filesystem path for the blob when the backend
	// has one, for readers that want random access without a copy.
	Path(key string) (string, bool)
}
