package models

import "time"

// StoredFile represents a document blob held by the storage backend. The
// key is the backend's own identifier and is independent of the resume id;
// all other metadata about a resume lives in the repository.
type StoredFile struct {
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	StoredAt time.Time `json:"storedAt"`
}
