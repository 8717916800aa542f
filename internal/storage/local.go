package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cvlens/cvlens/internal/models"
)

// LocalStore implements Store using the local filesystem. Blobs are stored
// under their uuid key directly in the upload directory, so the store needs
// no state of its own and survives restarts.
type LocalStore struct {
	uploadDir string
}

// NewLocalStore creates a new LocalStore rooted at uploadDir.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{uploadDir: uploadDir}, nil
}

// Save writes the blob to a fresh uuid-named file.
func (s *LocalStore) Save(_ context.Context, name string, r io.Reader) (*models.StoredFile, error) {
	key := uuid.New().String()
	path := filepath.Join(s.uploadDir, key)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &models.StoredFile{
		Key:      key,
		Name:     name,
		Size:     size,
		StoredAt: time.Now().UTC(),
	}, nil
}

// Open opens the blob for reading.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.uploadDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Delete removes the blob from disk.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.uploadDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Path returns the absolute path of the blob. A path is reported even for
// keys that were saved in a previous run.
func (s *LocalStore) Path(key string) (string, bool) {
	path := filepath.Join(s.uploadDir, key)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
