// interfaces.go - Service contracts the handlers depend on
package api

import (
	"context"

	"github.com/cvlens/cvlens/internal/models"
)

// Repository is the persistence surface the handlers need. The DuckDB
// repository satisfies it; tests substitute in-memory fakes.
type Repository interface {
	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResume(ctx context.Context, id string) (*models.Resume, error)
	ListResumes(ctx context.Context) ([]models.Resume, error)
	DeleteResume(ctx context.Context, id string) (string, error)
	GetResult(ctx context.Context, resumeID string) (*models.AnalysisResult, error)
	ListEvents(ctx context.Context, resumeID string) ([]models.StatusEvent, error)
	Count(ctx context.Context) (int, error)
	CountNonTerminal(ctx context.Context) (int, error)
}

// Enqueuer accepts a stored resume for asynchronous analysis.
type Enqueuer interface {
	Enqueue(resumeID, storageKey, mediaType string) error
}

// StatusSource delivers live status transitions to streaming handlers.
// The returned cancel func releases the subscription.
type StatusSource interface {
	Subscribe() (<-chan models.StatusEvent, func())
}
