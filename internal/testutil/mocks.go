// mocks.go - In-memory doubles for handler and pipeline tests
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cvlens/cvlens/internal/models"
	"github.com/cvlens/cvlens/internal/notify"
	"github.com/cvlens/cvlens/internal/repository"
	"github.com/cvlens/cvlens/internal/storage"
)

// MockStore implements storage.Store in memory
type MockStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	names   map[string]string
	counter int

	// SaveErr, when set, is returned by Save to exercise failure paths.
	SaveErr error
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{
		blobs: make(map[string][]byte),
		names: make(map[string]string),
	}
}

func (m *MockStore) Save(ctx context.Context, name string, r io.Reader) (*models.StoredFile, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	key := fmt.Sprintf("blob-%04d", m.counter)
	m.blobs[key] = data
	m.names[key] = name
	return &models.StoredFile{
		Key:      key,
		Name:     name,
		Size:     int64(len(data)),
		StoredAt: time.Now(),
	}, nil
}

func (m *MockStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, key)
	delete(m.names, key)
	return nil
}

func (m *MockStore) Path(key string) (string, bool) {
	return "", false
}

// BlobCount returns the number of stored blobs
func (m *MockStore) BlobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Data returns the stored bytes for a key
func (m *MockStore) Data(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	return data, ok
}

var _ storage.Store = (*MockStore)(nil)

// MockRepository implements the persistence surface of both the API
// handlers and the analysis pipeline. Listing returns newest first,
// matching the real repository's order.
type MockRepository struct {
	mu      sync.RWMutex
	resumes map[string]*models.Resume
	order   []string
	results map[string]*models.AnalysisResult
	events  map[string][]models.StatusEvent
	nextSeq int64

	// CreateErr, when set, is returned by CreateResume.
	CreateErr error
}

// NewMockRepository creates an empty in-memory repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		resumes: make(map[string]*models.Resume),
		results: make(map[string]*models.AnalysisResult),
		events:  make(map[string][]models.StatusEvent),
	}
}

func (m *MockRepository) CreateResume(ctx context.Context, resume *models.Resume) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.resumes[resume.ID]; exists {
		return fmt.Errorf("resume already exists: %s", resume.ID)
	}
	stored := *resume
	m.resumes[resume.ID] = &stored
	m.order = append(m.order, resume.ID)
	return nil
}

func (m *MockRepository) GetResume(ctx context.Context, id string) (*models.Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resume, ok := m.resumes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *resume
	return &copied, nil
}

func (m *MockRepository) ListResumes(ctx context.Context) ([]models.Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resumes := make([]models.Resume, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		resumes = append(resumes, *m.resumes[m.order[i]])
	}
	return resumes, nil
}

func (m *MockRepository) DeleteResume(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resume, ok := m.resumes[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	key := resume.StorageKey
	delete(m.resumes, id)
	delete(m.results, id)
	delete(m.events, id)
	for i, ordered := range m.order {
		if ordered == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return key, nil
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id string, next models.AnalysisStatus, failureReason string) (*models.StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resume, ok := m.resumes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !resume.AnalysisStatus.CanTransition(next) {
		return nil, &repository.TransitionError{ResumeID: id, From: resume.AnalysisStatus, To: next}
	}
	if next != models.StatusFailed {
		failureReason = ""
	}

	m.nextSeq++
	event := models.StatusEvent{
		Seq:        m.nextSeq,
		ResumeID:   id,
		FromStatus: resume.AnalysisStatus,
		ToStatus:   next,
		OccurredAt: time.Now().UTC(),
	}
	resume.AnalysisStatus = next
	resume.FailureReason = failureReason
	m.events[id] = append(m.events[id], event)
	return &event, nil
}

func (m *MockRepository) SaveResult(ctx context.Context, result *models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *result
	m.results[result.ResumeID] = &stored
	return nil
}

func (m *MockRepository) GetResult(ctx context.Context, resumeID string) (*models.AnalysisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, ok := m.results[resumeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *result
	return &copied, nil
}

func (m *MockRepository) ListEvents(ctx context.Context, resumeID string) ([]models.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]models.StatusEvent, len(m.events[resumeID]))
	copy(events, m.events[resumeID])
	return events, nil
}

func (m *MockRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.resumes), nil
}

func (m *MockRepository) CountNonTerminal(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := 0
	for _, r := range m.resumes {
		if !r.AnalysisStatus.IsTerminal() {
			active++
		}
	}
	return active, nil
}

// AddResume seeds a resume directly, bypassing validation
func (m *MockRepository) AddResume(resume *models.Resume) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *resume
	m.resumes[resume.ID] = &stored
	m.order = append(m.order, resume.ID)
}

// AddResult seeds an analysis result directly
func (m *MockRepository) AddResult(result *models.AnalysisResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *result
	m.results[result.ResumeID] = &stored
}

// MockNotifier records status events for assertions
type MockNotifier struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

// NewMockNotifier creates an empty recording notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyStatus(event *models.StatusEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
}

func (m *MockNotifier) Close() error { return nil }

// Events returns a copy of everything notified so far
func (m *MockNotifier) Events() []models.StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]models.StatusEvent, len(m.events))
	copy(events, m.events)
	return events
}

var _ notify.Notifier = (*MockNotifier)(nil)
