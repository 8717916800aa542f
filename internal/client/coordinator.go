package client

import (
	"context"
	"errors"
	"sync"

	"github.com/cvlens/cvlens/internal/models"
)

// ErrConcurrentUpload is returned by Submit while another upload is in
// flight. It is a notice, not a fault: the in-flight attempt continues
// untouched and no second transport call is made.
var ErrConcurrentUpload = errors.New("an upload is already in flight")

// ErrNoFile is returned by Submit when no candidate file was provided.
var ErrNoFile = errors.New("no file selected")

// TransportError carries a failed submission's message verbatim so the
// display layer shows exactly what the server or network reported.
type TransportError struct {
	Message string
}

func (e *TransportError) Error() string { return e.Message }

// Invalidator is the one signal the coordinator sends downstream after a
// successful upload. *Cache satisfies it.
type Invalidator interface {
	Invalidate()
}

// Coordinator owns the lifecycle of at most one in-flight upload attempt:
// validation, transport invocation, success or failure outcome, cache
// refresh trigger. It never mutates the resume list itself.
//
// Single-flight is enforced with a guard flag set under the mutex before
// the blocking transport call, so a racing Submit is rejected before it
// can reach the transport. The guard is independent of the displayed
// phase: Reset clears what is shown, never the flag, so a reset during
// transmission cannot open the door to a second concurrent upload.
type Coordinator struct {
	transport Transport
	cache     Invalidator
	onChange  func(models.UploadAttempt)

	mu       sync.Mutex
	inFlight bool
	attempt  models.UploadAttempt
}

// NewCoordinator creates a Coordinator. onChange, when non-nil, receives
// an attempt snapshot after every observable transition, including each
// progress observation; it runs synchronously and must not call back into
// the coordinator.
func NewCoordinator(transport Transport, cache Invalidator, onChange func(models.UploadAttempt)) *Coordinator {
	return &Coordinator{
		transport: transport,
		cache:     cache,
		onChange:  onChange,
		attempt:   models.UploadAttempt{Phase: models.PhaseIdle},
	}
}

// Attempt returns a snapshot of the current upload attempt.
func (c *Coordinator) Attempt() models.UploadAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Submit validates and transmits file, blocking until the outcome is
// known. It returns nil on success, a *ValidationError or *TransportError
// on failure, or ErrConcurrentUpload when an upload is already running.
//
// On success the cache is told to invalidate exactly once and the attempt
// resets to idle with zero progress and no file. On any failure there is
// no invalidation, the failure message is retained verbatim, and the
// coordinator remains usable for the next Submit.
func (c *Coordinator) Submit(ctx context.Context, file *models.FileMeta) error {
	if file == nil {
		return ErrNoFile
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrConcurrentUpload
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	c.transition(func(a *models.UploadAttempt) {
		*a = models.UploadAttempt{CandidateFile: file, Phase: models.PhaseValidating}
	})

	if err := ValidateFile(*file); err != nil {
		c.transition(func(a *models.UploadAttempt) {
			a.Phase = models.PhaseFailed
			a.Message = err.Error()
		})
		return err
	}

	c.transition(func(a *models.UploadAttempt) {
		a.Phase = models.PhaseTransmitting
	})

	if err := c.transport.Send(ctx, *file, c.observeProgress); err != nil {
		terr := &TransportError{Message: err.Error()}
		c.transition(func(a *models.UploadAttempt) {
			a.Phase = models.PhaseFailed
			a.Message = terr.Message
		})
		return terr
	}

	c.transition(func(a *models.UploadAttempt) {
		a.Phase = models.PhaseSucceeded
		a.ProgressPercent = 100
	})

	if c.cache != nil {
		c.cache.Invalidate()
	}

	c.Reset()
	return nil
}

// Reset clears the attempt back to idle: no file, zero progress. It does
// not cancel an in-flight transport; dismissing the upload affordance
// only resets what is displayed, and the transport runs to completion.
func (c *Coordinator) Reset() {
	c.transition(func(a *models.UploadAttempt) {
		*a = models.UploadAttempt{Phase: models.PhaseIdle}
	})
}

// observeProgress folds transport-reported progress into the attempt.
// Values are clamped to [0,100]; a report lower than what was already
// observed re-reports the current value instead of regressing, so the
// observed sequence is non-decreasing.
func (c *Coordinator) observeProgress(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	c.mu.Lock()
	if c.attempt.Phase != models.PhaseTransmitting {
		c.mu.Unlock()
		return
	}
	if pct > c.attempt.ProgressPercent {
		c.attempt.ProgressPercent = pct
	}
	snapshot := c.attempt
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// transition mutates the attempt under the lock and reports the new
// snapshot to onChange.
func (c *Coordinator) transition(mutate func(*models.UploadAttempt)) {
	c.mu.Lock()
	mutate(&c.attempt)
	snapshot := c.attempt
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}
