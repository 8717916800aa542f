package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cvlens/cvlens/internal/models"
)

// fakeServer speaks the resume API over real HTTP so the transport,
// query service, cache and coordinator can be exercised together.
type fakeServer struct {
	mu      sync.Mutex
	resumes []models.Resume
	nextID  int
}

func (s *fakeServer) handler() http.Handler {
	// Dispatch on the method inside each path handler; method-prefixed
	// mux patterns ("POST /api/resumes") need go >= 1.22 and go.mod
	// targets 1.21.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/resumes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleUpload(w, r)
		case http.MethodGet, http.MethodHead:
			s.handleList(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD, POST")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/resumes/msgpack", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			s.handleListMsgpack(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (s *fakeServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
		writeJSONError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("media type %q is not accepted", ct))
		return
	}

	s.mu.Lock()
	s.nextID++
	created := models.NewResume(fmt.Sprintf("res-%04d", s.nextID), header.Filename, header.Size)
	s.resumes = append(s.resumes, *created)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (s *fakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Resume, len(s.resumes))
	copy(out, s.resumes)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listResponse{Resumes: out, Count: len(out)})
}

func (s *fakeServer) handleListMsgpack(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Resume, len(s.resumes))
	copy(out, s.resumes)
	s.mu.Unlock()

	data, err := msgpack.Marshal(listResponse{Resumes: out, Count: len(out)})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/msgpack")
	w.Write(data)
}

// setStatus flips a stored resume's analysis status, standing in for the
// server-side pipeline advancing a job.
func (s *fakeServer) setStatus(id string, status models.AnalysisStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.resumes {
		if s.resumes[i].ID == id {
			s.resumes[i].AnalysisStatus = status
			return
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func writeTempPDF(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.pdf")
	data := make([]byte, size)
	copy(data, "%PDF-1.7\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestUploadThenListAgainstLiveServer(t *testing.T) {
	srv := &fakeServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	query := NewHTTPQueryService(ts.URL)
	cache := NewCache(query)
	ch, cancelSub := cache.Subscribe()
	defer cancelSub()

	var historyMu sync.Mutex
	var progress []int
	coord := NewCoordinator(NewHTTPTransport(ts.URL), cache, func(a models.UploadAttempt) {
		historyMu.Lock()
		if a.Phase == models.PhaseTransmitting {
			progress = append(progress, a.ProgressPercent)
		}
		historyMu.Unlock()
	})

	path := writeTempPDF(t, 2*1024*1024)
	meta := &models.FileMeta{
		Name:      "resume.pdf",
		SizeBytes: 2 * 1024 * 1024,
		MediaType: "application/pdf",
		Path:      path,
	}

	require.NoError(t, coord.Submit(context.Background(), meta))

	// Success invalidated the cache; the refreshed list shows the new
	// upload as pending, which projects to Pending.
	snap := waitForState(t, ch, CacheReady)
	require.Len(t, snap.Resumes, 1)
	require.Equal(t, "resume.pdf", snap.Resumes[0].FileName)
	require.Equal(t, models.StatusPending, snap.Resumes[0].AnalysisStatus)
	require.Equal(t, models.StatePending, models.Project(snap.Resumes[0].AnalysisStatus))

	// The pipeline advances server-side; each refresh tracks it.
	id := snap.Resumes[0].ID
	srv.setStatus(id, models.StatusProcessing)
	cache.Invalidate()
	snap = waitForState(t, ch, CacheReady)
	require.Equal(t, models.StateProcessing, models.Project(snap.Resumes[0].AnalysisStatus))

	srv.setStatus(id, models.StatusCompleted)
	cache.Invalidate()
	snap = waitForState(t, ch, CacheReady)
	require.Equal(t, models.StateCompleted, models.Project(snap.Resumes[0].AnalysisStatus))

	// Transmission progress never regressed and reached 100.
	historyMu.Lock()
	defer historyMu.Unlock()
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		require.GreaterOrEqual(t, progress[i], progress[i-1], "progress regressed at %d: %v", i, progress)
	}
	require.Equal(t, 100, progress[len(progress)-1])
}

func TestUploadServerRejectionSurfacesMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusInsufficientStorage, "storage quota exhausted, retry later")
	}))
	defer ts.Close()

	inv := &countingInvalidator{}
	coord := NewCoordinator(NewHTTPTransport(ts.URL), inv, nil)

	meta := &models.FileMeta{
		Name:      "resume.pdf",
		SizeBytes: 512,
		MediaType: "application/pdf",
		Path:      writeTempPDF(t, 512),
	}

	err := coord.Submit(context.Background(), meta)
	require.Error(t, err)

	// The server's message passes through untouched, and a failed
	// upload never invalidates the cache.
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, "storage quota exhausted, retry later", tErr.Message)
	require.Equal(t, 0, inv.invalidations())
	require.Equal(t, models.PhaseFailed, coord.Attempt().Phase)
}

func TestQueryServiceMsgpackListing(t *testing.T) {
	srv := &fakeServer{}
	srv.resumes = []models.Resume{
		resume("b", models.StatusProcessing),
		resume("a", models.StatusCompleted),
	}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	jsonList, err := NewHTTPQueryService(ts.URL).List(context.Background())
	require.NoError(t, err)
	packList, err := NewHTTPQueryService(ts.URL).UseMsgpack(true).List(context.Background())
	require.NoError(t, err)

	require.Len(t, packList, 2)
	require.Equal(t, "b", packList[0].ID, "binary listing keeps server order too")
	for i := range jsonList {
		require.Equal(t, jsonList[i].ID, packList[i].ID)
		require.Equal(t, jsonList[i].AnalysisStatus, packList[i].AnalysisStatus)
	}
}

func TestQueryServiceErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusServiceUnavailable, "database starting up")
	}))
	defer ts.Close()

	_, err := NewHTTPQueryService(ts.URL).List(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "database starting up")
}

func TestTransportContextCancellation(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tr := NewHTTPTransport(ts.URL)
	err := tr.Send(ctx, models.FileMeta{
		Name:      "resume.pdf",
		SizeBytes: 128,
		MediaType: "application/pdf",
		Path:      writeTempPDF(t, 128),
	}, nil)
	require.Error(t, err)
}
