// handlers_test.go - Shared test fixtures and health endpoint tests
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/analysis"
	"github.com/cvlens/cvlens/internal/models"
	"github.com/cvlens/cvlens/internal/notify"
	"github.com/cvlens/cvlens/internal/storage"
	"github.com/cvlens/cvlens/internal/testutil"
)

// Interface checks for the shared test doubles
var (
	_ Repository = (*testutil.MockRepository)(nil)
	_ Enqueuer   = (*fakeEnqueuer)(nil)
)

type enqueueCall struct {
	resumeID   string
	storageKey string
	mediaType  string
}

// fakeEnqueuer records enqueue calls instead of running analysis
type fakeEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (f *fakeEnqueuer) Enqueue(resumeID, storageKey, mediaType string) error {
	f.calls = append(f.calls, enqueueCall{resumeID, storageKey, mediaType})
	return f.err
}

// newTestDeps builds handler dependencies backed by in-memory doubles
func newTestDeps() (*Dependencies, *testutil.MockRepository, *testutil.MockStore, *fakeEnqueuer) {
	repo := testutil.NewMockRepository()
	store := testutil.NewMockStore()
	enq := &fakeEnqueuer{}
	deps := &Dependencies{
		Repo:        repo,
		Store:       store,
		Pipeline:    enq,
		Jobs:        analysis.NewJobs(),
		Statuses:    notify.NewHub(),
		Log:         zap.NewNop().Sugar(),
		Version:     "test",
		AllowDelete: true,
	}
	return deps, repo, store, enq
}

// multipartFile builds a multipart body with an explicit part media type,
// the way real browsers and the CLI submit files.
func multipartFile(t *testing.T, filename, mediaType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mediaType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("creating multipart part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing multipart data: %v", err)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

// storeBlob seeds a blob and returns its storage key
func storeBlob(t *testing.T, store storage.Store, name string, data []byte) string {
	t.Helper()

	stored, err := store.Save(context.Background(), name, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("seeding blob: %v", err)
	}
	return stored.Key
}

// asAPIError asserts the error is a structured API error
func asAPIError(t *testing.T, err error) *APIError {
	t.Helper()

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	return apiErr
}

func TestHandleHealth(t *testing.T) {
	deps, repo, _, _ := newTestDeps()
	h := NewHandlers(deps)
	repo.AddResume(models.NewResume("res-1", "a.pdf", 100))
	done := models.NewResume("res-2", "b.pdf", 200)
	done.AnalysisStatus = models.StatusCompleted
	repo.AddResume(done)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, h.Health.HandleHealth(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "cvlens", body["name"])
		assert.Equal(t, "test", body["version"])
		assert.Equal(t, float64(2), body["resumes"])
		assert.Equal(t, float64(1), body["activeAnalyses"])
		assert.NotEmpty(t, body["uptime"])
	}
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler

	t.Run("api error keeps its status and code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		ErrorHandler(NewNotFoundError("resume", "res-404"), c)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
		assert.Contains(t, rec.Body.String(), "res-404")
	})

	t.Run("echo error is wrapped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		ErrorHandler(echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), c)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
	})

	t.Run("unknown error becomes 500 without leaking detail", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		ErrorHandler(errors.New("sensitive internals"), c)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "sensitive internals")
	})
}
