// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/analysis"
	"github.com/cvlens/cvlens/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Repo        Repository
	Store       storage.Store
	Pipeline    Enqueuer
	Jobs        *analysis.Jobs
	Statuses    StatusSource
	Log         *zap.SugaredLogger
	Version     string
	AllowDelete bool
}

// Handlers holds all handler instances
type Handlers struct {
	Health  *HealthHandler
	Resumes *ResumeHandler
	Status  *StatusSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Repo, deps.Version),
		Resumes: NewResumeHandler(deps),
		Status:  NewStatusSocketHandler(deps.Statuses, deps.Log),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	api.GET("/health", handlers.Health.HandleHealth)

	resumes := api.Group("/resumes")
	resumes.POST("", handlers.Resumes.HandleUpload)
	resumes.GET("", handlers.Resumes.HandleList)
	resumes.GET("/msgpack", handlers.Resumes.HandleListMsgpack)
	resumes.GET("/:id", handlers.Resumes.HandleGet)
	resumes.DELETE("/:id", handlers.Resumes.HandleDelete)
	resumes.GET("/:id/result", handlers.Resumes.HandleResult)
	resumes.GET("/:id/events", handlers.Resumes.HandleEvents)
	resumes.GET("/:id/progress", handlers.Resumes.HandleProgress)

	api.GET("/ws/status", handlers.Status.HandleStatusSocket)
}
