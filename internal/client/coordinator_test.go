package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cvlens/cvlens/internal/models"
)

// scriptedTransport reports a fixed progress sequence and then resolves
// with err (nil for success).
type scriptedTransport struct {
	mu       sync.Mutex
	progress []int
	err      error
	calls    int
}

func (t *scriptedTransport) Send(_ context.Context, _ models.FileMeta, onProgress ProgressFunc) error {
	t.mu.Lock()
	t.calls++
	progress := t.progress
	err := t.err
	t.mu.Unlock()

	for _, p := range progress {
		onProgress(p)
	}
	return err
}

func (t *scriptedTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *scriptedTransport) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// blockingTransport parks inside Send until released, so tests can hold
// an upload in flight.
type blockingTransport struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (t *blockingTransport) Send(_ context.Context, _ models.FileMeta, _ ProgressFunc) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	close(t.started)
	<-t.release
	return nil
}

func (t *blockingTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type countingInvalidator struct {
	mu    sync.Mutex
	count int
}

func (i *countingInvalidator) Invalidate() {
	i.mu.Lock()
	i.count++
	i.mu.Unlock()
}

func (i *countingInvalidator) invalidations() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.count
}

func pdfMeta(size int64) *models.FileMeta {
	return &models.FileMeta{Name: "cv.pdf", SizeBytes: size, MediaType: "application/pdf"}
}

func TestCoordinatorSubmitSuccess(t *testing.T) {
	var phases []models.UploadPhase
	tr := &scriptedTransport{progress: []int{25, 50, 100}}
	inv := &countingInvalidator{}
	c := NewCoordinator(tr, inv, func(a models.UploadAttempt) {
		phases = append(phases, a.Phase)
	})

	err := c.Submit(context.Background(), pdfMeta(1024))
	require.NoError(t, err)

	// Exactly one invalidation per successful upload.
	require.Equal(t, 1, inv.invalidations())
	require.Equal(t, 1, tr.callCount())

	// The attempt reset to idle: zero progress, no file.
	attempt := c.Attempt()
	require.Equal(t, models.PhaseIdle, attempt.Phase)
	require.Equal(t, 0, attempt.ProgressPercent)
	require.Nil(t, attempt.CandidateFile)

	// Success was observable before the reset.
	require.Contains(t, phases, models.PhaseSucceeded)
	require.Equal(t, models.PhaseIdle, phases[len(phases)-1])
}

func TestCoordinatorValidationFailureSkipsTransport(t *testing.T) {
	tr := &scriptedTransport{}
	inv := &countingInvalidator{}
	c := NewCoordinator(tr, inv, nil)

	err := c.Submit(context.Background(), &models.FileMeta{
		Name: "cv.txt", SizeBytes: 10, MediaType: "text/plain",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ReasonUnsupportedType, verr.Reason)
	require.Equal(t, 0, tr.callCount(), "validation rejection must not reach the transport")
	require.Equal(t, 0, inv.invalidations())
	require.Equal(t, models.PhaseFailed, c.Attempt().Phase)
}

func TestCoordinatorNilFile(t *testing.T) {
	c := NewCoordinator(&scriptedTransport{}, nil, nil)
	require.ErrorIs(t, c.Submit(context.Background(), nil), ErrNoFile)
}

func TestCoordinatorSingleFlight(t *testing.T) {
	tr := newBlockingTransport()
	inv := &countingInvalidator{}
	c := NewCoordinator(tr, inv, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Submit(context.Background(), pdfMeta(1024))
	}()

	<-tr.started // the first submit is inside the transport now

	err := c.Submit(context.Background(), pdfMeta(2048))
	require.ErrorIs(t, err, ErrConcurrentUpload)

	close(tr.release)
	require.NoError(t, <-errCh)

	// Two submits, exactly one transport invocation.
	require.Equal(t, 1, tr.callCount())
	require.Equal(t, 1, inv.invalidations())
}

func TestCoordinatorResetDuringFlightKeepsGuard(t *testing.T) {
	tr := newBlockingTransport()
	c := NewCoordinator(tr, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Submit(context.Background(), pdfMeta(1024))
	}()
	<-tr.started

	// Dismissal clears the displayed attempt but must not allow a second
	// concurrent transport call.
	c.Reset()
	require.Equal(t, models.PhaseIdle, c.Attempt().Phase)
	require.ErrorIs(t, c.Submit(context.Background(), pdfMeta(512)), ErrConcurrentUpload)

	close(tr.release)
	require.NoError(t, <-errCh)
	require.Equal(t, 1, tr.callCount())
}

func TestCoordinatorProgressNeverRegresses(t *testing.T) {
	var observed []int
	tr := &scriptedTransport{progress: []int{10, 5, 50}}
	c := NewCoordinator(tr, nil, func(a models.UploadAttempt) {
		if a.Phase == models.PhaseTransmitting {
			observed = append(observed, a.ProgressPercent)
		}
	})

	require.NoError(t, c.Submit(context.Background(), pdfMeta(1024)))

	// The leading 0 is the transition into transmitting; the transport's
	// 10, 5, 50 is observed as 10, 10, 50.
	require.Equal(t, []int{0, 10, 10, 50}, observed)
}

func TestCoordinatorProgressClampsRange(t *testing.T) {
	var observed []int
	tr := &scriptedTransport{progress: []int{-20, 30, 250}}
	c := NewCoordinator(tr, nil, func(a models.UploadAttempt) {
		if a.Phase == models.PhaseTransmitting {
			observed = append(observed, a.ProgressPercent)
		}
	})

	require.NoError(t, c.Submit(context.Background(), pdfMeta(1024)))
	require.Equal(t, []int{0, 0, 30, 100}, observed)
}

func TestCoordinatorTransportFailure(t *testing.T) {
	tr := &scriptedTransport{err: errors.New("upstream rejected the document")}
	inv := &countingInvalidator{}
	c := NewCoordinator(tr, inv, nil)

	err := c.Submit(context.Background(), pdfMeta(1024))

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "upstream rejected the document", terr.Message)

	// No invalidation on failure; the message is retained verbatim.
	require.Equal(t, 0, inv.invalidations())
	attempt := c.Attempt()
	require.Equal(t, models.PhaseFailed, attempt.Phase)
	require.Equal(t, "upstream rejected the document", attempt.Message)

	// The coordinator stays usable: fix the transport and resubmit.
	tr.setErr(nil)
	require.NoError(t, c.Submit(context.Background(), pdfMeta(1024)))
	require.Equal(t, 1, inv.invalidations())
	require.Equal(t, models.PhaseIdle, c.Attempt().Phase)
}
