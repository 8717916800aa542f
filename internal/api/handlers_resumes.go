// handlers_resumes.go - Resume upload and retrieval handlers
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/analysis"
	"github.com/cvlens/cvlens/internal/client"
	"github.com/cvlens/cvlens/internal/models"
	"github.com/cvlens/cvlens/internal/repository"
	"github.com/cvlens/cvlens/internal/storage"
)

const (
	// progressTickInterval is how often the SSE stream re-reads the job
	// registry while analysis is in flight.
	progressTickInterval = 100 * time.Millisecond
	// progressStreamTimeout bounds a single SSE connection.
	progressStreamTimeout = 5 * time.Minute
)

// listResponse is the wire shape of the resume collection. Both the JSON
// and msgpack endpoints serve it.
type listResponse struct {
	Resumes []models.Resume `json:"resumes" msgpack:"resumes"`
	Count   int             `json:"count" msgpack:"count"`
}

// ResumeHandler serves the resume collection endpoints
type ResumeHandler struct {
	repo        Repository
	store       storage.Store
	pipeline    Enqueuer
	jobs        *analysis.Jobs
	log         *zap.SugaredLogger
	allowDelete bool
}

// NewResumeHandler creates a new resume handler
func NewResumeHandler(deps *Dependencies) *ResumeHandler {
	return &ResumeHandler{
		repo:        deps.Repo,
		store:       deps.Store,
		pipeline:    deps.Pipeline,
		jobs:        deps.Jobs,
		log:         deps.Log,
		allowDelete: deps.AllowDelete,
	}
}

// HandleUpload accepts a multipart resume upload, persists the blob and
// its record, and queues analysis. The response is the created record;
// analysis outcome arrives asynchronously.
func (h *ResumeHandler) HandleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("multipart field 'file' is required", err)
	}

	meta := models.FileMeta{
		Name:      fileHeader.Filename,
		SizeBytes: fileHeader.Size,
		MediaType: fileHeader.Header.Get("Content-Type"),
	}
	if err := client.ValidateFile(meta); err != nil {
		var vErr *client.ValidationError
		if errors.As(err, &vErr) && vErr.Reason == client.ReasonTooLarge {
			return NewFileTooLargeError(err.Error())
		}
		return NewUnsupportedTypeError(err.Error())
	}

	src, err := fileHeader.Open()
	if err != nil {
		return NewInternalError("failed to read uploaded file", err)
	}
	defer src.Close()

	ctx := c.Request().Context()
	stored, err := h.store.Save(ctx, fileHeader.Filename, src)
	if err != nil {
		return NewInternalError("failed to store uploaded file", err)
	}

	resume := models.NewResume(uuid.New().String(), fileHeader.Filename, fileHeader.Size)
	resume.StorageKey = stored.Key
	if err := h.repo.CreateResume(ctx, resume); err != nil {
		if delErr := h.store.Delete(ctx, stored.Key); delErr != nil {
			h.log.Warnw("failed to remove orphaned blob", "key", stored.Key, "error", delErr)
		}
		return NewInternalError("failed to create resume record", err)
	}

	if err := h.pipeline.Enqueue(resume.ID, stored.Key, meta.MediaType); err != nil {
		// The record exists either way; a queue-full rejection has
		// already been written to it as a failure.
		h.log.Warnw("failed to enqueue analysis", "resumeId", resume.ID, "error", err)
		if updated, getErr := h.repo.GetResume(ctx, resume.ID); getErr == nil {
			resume = updated
		}
	}

	h.log.Infow("resume uploaded",
		"resumeId", resume.ID,
		"fileName", resume.FileName,
		"sizeBytes", resume.FileSizeBytes)
	return c.JSON(http.StatusCreated, resume)
}

// HandleList returns every resume in server order
func (h *ResumeHandler) HandleList(c echo.Context) error {
	resumes, err := h.repo.ListResumes(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list resumes", err)
	}
	return c.JSON(http.StatusOK, listResponse{Resumes: resumes, Count: len(resumes)})
}

// HandleListMsgpack returns the resume collection msgpack-encoded for
// clients that negotiate the compact transfer format.
func (h *ResumeHandler) HandleListMsgpack(c echo.Context) error {
	resumes, err := h.repo.ListResumes(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list resumes", err)
	}
	data, err := msgpack.Marshal(listResponse{Resumes: resumes, Count: len(resumes)})
	if err != nil {
		return NewInternalError("failed to encode resumes", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGet returns a single resume record
func (h *ResumeHandler) HandleGet(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	resume, err := h.repo.GetResume(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("resume", id)
		}
		return NewInternalError("failed to load resume", err)
	}
	return c.JSON(http.StatusOK, resume)
}

// HandleDelete removes a resume record and its stored blob. The endpoint
// is disabled unless deletion is switched on in the server config.
func (h *ResumeHandler) HandleDelete(c echo.Context) error {
	if !h.allowDelete {
		return NewForbiddenError("resume deletion is disabled")
	}
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	ctx := c.Request().Context()
	storageKey, err := h.repo.DeleteResume(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("resume", id)
		}
		return NewInternalError("failed to delete resume", err)
	}
	if storageKey != "" {
		if err := h.store.Delete(ctx, storageKey); err != nil {
			// Record is gone; an orphaned blob is only worth a warning.
			h.log.Warnw("failed to delete stored blob", "key", storageKey, "error", err)
		}
	}

	h.log.Infow("resume deleted", "resumeId", id)
	return c.NoContent(http.StatusNoContent)
}

// HandleResult returns the analysis result once analysis has completed.
// Until then the result does not exist and the endpoint returns 404.
func (h *ResumeHandler) HandleResult(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	result, err := h.repo.GetResult(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("analysis result", id)
		}
		return NewInternalError("failed to load analysis result", err)
	}
	return c.JSON(http.StatusOK, result)
}

// HandleEvents returns the status transition history for a resume
func (h *ResumeHandler) HandleEvents(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	ctx := c.Request().Context()
	if _, err := h.repo.GetResume(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("resume", id)
		}
		return NewInternalError("failed to load resume", err)
	}
	events, err := h.repo.ListEvents(ctx, id)
	if err != nil {
		return NewInternalError("failed to list status events", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// HandleProgress streams analysis progress as Server-Sent Events until
// the job reaches a terminal status, the stream times out, or the client
// disconnects.
func (h *ResumeHandler) HandleProgress(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	// Resolve the first snapshot before committing to the stream so an
	// unknown id still gets a plain 404.
	job, err := h.progressSnapshot(c, id)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	h.sendSSEData(c, job)
	if job.Status.IsTerminal() {
		return nil
	}

	ticker := time.NewTicker(progressTickInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(progressStreamTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
			job, err := h.progressSnapshot(c, id)
			if err != nil {
				h.sendSSEError(c, "resume not found")
				return nil
			}
			h.sendSSEData(c, job)
			if job.Status.IsTerminal() {
				return nil
			}
		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// progressSnapshot reads the live job registry, falling back to the
// persisted record when the registry entry has been swept.
func (h *ResumeHandler) progressSnapshot(c echo.Context, id string) (analysis.Job, error) {
	if job, ok := h.jobs.Get(id); ok {
		return job, nil
	}
	resume, err := h.repo.GetResume(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return analysis.Job{}, NewNotFoundError("resume", id)
		}
		return analysis.Job{}, NewInternalError("failed to load resume", err)
	}
	return jobFromRecord(resume), nil
}

// jobFromRecord rebuilds a progress snapshot from the persisted record
// for resumes whose registry entry is gone, such as after a restart.
func jobFromRecord(resume *models.Resume) analysis.Job {
	job := analysis.Job{
		ResumeID:  resume.ID,
		Status:    resume.AnalysisStatus,
		StartedAt: resume.CreatedAt,
		Error:     resume.FailureReason,
	}
	switch resume.AnalysisStatus {
	case models.StatusPending:
		job.Stage = analysis.StageQueued
	case models.StatusCompleted:
		job.Stage = analysis.StageDone
		job.Progress = 100
	}
	return job
}

// sendSSEData writes one JSON-encoded SSE frame and flushes it
func (h *ResumeHandler) sendSSEData(c echo.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.log.Errorw("failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

// sendSSEError writes an error frame to the SSE stream
func (h *ResumeHandler) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}
