package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/models"
	"github.com/cvlens/cvlens/internal/storage"
)

const (
	defaultWorkers   = 3
	defaultQueueSize = 256

	// jobTimeout bounds one analysis end to end.
	jobTimeout = 2 * time.Minute
	// statusWriteTimeout bounds the repository write that records a
	// transition, independent of the job's own context.
	statusWriteTimeout = 10 * time.Second
)

// ErrQueueFull is returned by Enqueue when the intake queue is at
// capacity. The resume is marked failed before Enqueue returns.
var ErrQueueFull = errors.New("analysis queue full")

// ErrPipelineClosed is returned by Enqueue after Shutdown has begun.
var ErrPipelineClosed = errors.New("analysis pipeline is shut down")

// Repository is the slice of the persistence layer the pipeline needs.
type Repository interface {
	UpdateStatus(ctx context.Context, id string, next models.AnalysisStatus, failureReason string) (*models.StatusEvent, error)
	SaveResult(ctx context.Context, result *models.AnalysisResult) error
}

// Notifier receives status transitions as they commit.
type Notifier interface {
	NotifyStatus(event *models.StatusEvent)
}

// Options sizes the worker pool. Zero values pick defaults.
type Options struct {
	Workers   int
	QueueSize int
}

type task struct {
	resumeID   string
	storageKey string
	mediaType  string
}

// Pipeline runs resume analysis on a bounded worker pool. Each job
// moves its resume processing -> completed|failed in the repository,
// publishes every transition, and feeds live progress into the job
// registry.
type Pipeline struct {
	repo     Repository
	store    storage.Store
	registry *Registry
	analyzer Analyzer
	jobs     *Jobs
	notifier Notifier
	log      *zap.SugaredLogger

	tasks  chan task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewPipeline builds the pool and starts its workers.
func NewPipeline(repo Repository, store storage.Store, analyzer Analyzer, notifier Notifier, log *zap.SugaredLogger, opts Options) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		repo:     repo,
		store:    store,
		registry: NewRegistry(),
		analyzer: analyzer,
		jobs:     NewJobs(),
		notifier: notifier,
		log:      log,
		tasks:    make(chan task, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Jobs exposes the live job registry for progress readers.
func (p *Pipeline) Jobs() *Jobs {
	return p.jobs
}

// RegisterExtractor adds a document format to the pipeline.
func (p *Pipeline) RegisterExtractor(e Extractor) {
	p.registry.Register(e)
}

// Enqueue submits a resume for analysis. It never blocks: when the
// queue is full the resume is marked failed and ErrQueueFull returned,
// so the record stays honest instead of pending forever.
func (p *Pipeline) Enqueue(resumeID, storageKey, mediaType string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	p.jobs.Begin(resumeID)
	select {
	case p.tasks <- task{resumeID: resumeID, storageKey: storageKey, mediaType: mediaType}:
		p.mu.Unlock()
		return nil
	default:
		p.mu.Unlock()
		p.fail(resumeID, ErrQueueFull.Error())
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued work to drain. When ctx
// expires first, in-flight jobs are cancelled and recorded as failed.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.process(t)
	}
}

func (p *Pipeline) process(t task) {
	// Recover so one malformed document cannot take down the pool.
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("analysis panicked", "resume", t.resumeID, "panic", r)
			p.fail(t.resumeID, fmt.Sprintf("analysis panicked: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(p.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	p.transition(t.resumeID, models.StatusProcessing, "")
	p.jobs.SetStage(t.resumeID, StageExtracting, 10)

	extractor, err := p.registry.Find(t.mediaType)
	if err != nil {
		p.fail(t.resumeID, err.Error())
		return
	}

	r, size, cleanup, err := p.openBlob(ctx, t.storageKey)
	if err != nil {
		p.fail(t.resumeID, fmt.Sprintf("opening stored document: %v", err))
		return
	}
	defer cleanup()

	text, err := extractor.Extract(ctx, r, size, func(pct float64) {
		// Extraction owns 10-90; the last stretch is for scoring.
		overall := 10 + pct*0.8
		if overall > 89.9 {
			overall = 89.9
		}
		p.jobs.SetStage(t.resumeID, StageExtracting, overall)
	})
	if err != nil {
		p.fail(t.resumeID, err.Error())
		return
	}

	p.jobs.SetStage(t.resumeID, StageScoring, 90)
	result := p.analyzer.Analyze(text)
	result.ResumeID = t.resumeID
	result.CompletedAt = time.Now().UTC()

	if err := p.repo.SaveResult(ctx, result); err != nil {
		p.fail(t.resumeID, fmt.Sprintf("saving result: %v", err))
		return
	}

	p.transition(t.resumeID, models.StatusCompleted, "")
	p.jobs.Complete(t.resumeID)
	p.log.Infow("analysis completed",
		"resume", t.resumeID,
		"score", result.Score,
		"words", result.WordCount,
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// fail records the failure reason verbatim; it becomes the message
// clients see on the resume record.
func (p *Pipeline) fail(resumeID, reason string) {
	p.transition(resumeID, models.StatusFailed, reason)
	p.jobs.Fail(resumeID, reason)
	p.log.Warnw("analysis failed", "resume", resumeID, "reason", reason)
}

// transition commits the status change and publishes the event. It uses
// its own deadline so a cancelled job can still record its failure.
func (p *Pipeline) transition(resumeID string, next models.AnalysisStatus, failureReason string) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	event, err := p.repo.UpdateStatus(ctx, resumeID, next, failureReason)
	if err != nil {
		p.log.Errorw("status update failed", "resume", resumeID, "to", next, "error", err)
		return
	}
	if p.notifier != nil {
		p.notifier.NotifyStatus(event)
	}
}

// openBlob prefers the store's local path so extraction reads the file
// in place; backends without one are drained into memory, which the
// upload size cap keeps small.
func (p *Pipeline) openBlob(ctx context.Context, key string) (io.ReaderAt, int64, func(), error) {
	if path, ok := p.store.Path(key); ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, nil, err
		}
		return f, info.Size(), func() { f.Close() }, nil
	}

	rc, err := p.store.Open(ctx, key)
	if err != nil {
		return nil, 0, nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, 0, nil, err
	}
	return bytes.NewReader(data), int64(len(data)), func() {}, nil
}
