// Package repository persists resume records, analysis results, and the
// status-transition history in DuckDB.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/models"
)

// ErrNotFound is returned when a resume or result does not exist.
var ErrNotFound = errors.New("resume not found")

// TransitionError reports a rejected status write. The transition table is
// monotonic; an illegal write changes nothing.
type TransitionError struct {
	ResumeID string
	From     models.AnalysisStatus
	To       models.AnalysisStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s for resume %s", e.From, e.To, e.ResumeID)
}

// Options tunes the embedded database.
type Options struct {
	Threads     int
	MemoryLimit string
}

// DuckRepository is the DuckDB-backed store for all resume metadata. The
// document blobs themselves live in the storage package; this repository
// is the single writer of analysis status.
type DuckRepository struct {
	db     *sql.DB
	dbPath string
	log    *zap.SugaredLogger

	// nextSeq numbers status events across the repository lifetime,
	// initialized from the table on open.
	nextSeq atomic.Int64
}

// NewDuckRepository opens (or creates) the database file and ensures the
// schema exists.
func NewDuckRepository(dbPath string, opts Options, log *zap.SugaredLogger) (*DuckRepository, error) {
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "1GB"
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS resumes (
			id              VARCHAR PRIMARY KEY,
			file_name       VARCHAR NOT NULL,
			file_size_bytes BIGINT NOT NULL,
			created_at      TIMESTAMP NOT NULL,
			analysis_status VARCHAR NOT NULL,
			failure_reason  VARCHAR NOT NULL DEFAULT '',
			storage_key     VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_results (
			resume_id    VARCHAR PRIMARY KEY,
			score        DOUBLE NOT NULL,
			summary      VARCHAR NOT NULL,
			skills       VARCHAR NOT NULL,
			sections     VARCHAR NOT NULL,
			word_count   INTEGER NOT NULL,
			completed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS status_events (
			seq         BIGINT PRIMARY KEY,
			resume_id   VARCHAR NOT NULL,
			from_status VARCHAR NOT NULL,
			to_status   VARCHAR NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_resume ON status_events(resume_id)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	repo := &DuckRepository{db: db, dbPath: dbPath, log: log}

	var maxSeq sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM status_events").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read event sequence: %w", err)
	}
	repo.nextSeq.Store(maxSeq.Int64)

	log.Infow("repository opened", "path", dbPath, "last_event_seq", maxSeq.Int64)
	return repo, nil
}

// CreateResume inserts a new record. The resume's StorageKey must point at
// the already-saved blob.
func (r *DuckRepository) CreateResume(ctx context.Context, resume *models.Resume) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resumes (id, file_name, file_size_bytes, created_at, analysis_status, failure_reason, storage_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, resume.ID, resume.FileName, resume.FileSizeBytes, resume.CreatedAt,
		string(resume.AnalysisStatus), resume.FailureReason, resume.StorageKey)
	if err != nil {
		return fmt.Errorf("inserting resume: %w", err)
	}
	return nil
}

// GetResume returns one record by id.
func (r *DuckRepository) GetResume(ctx context.Context, id string) (*models.Resume, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, file_name, file_size_bytes, created_at, analysis_status, failure_reason, storage_key
		FROM resumes WHERE id = ?
	`, id)

	resume, err := scanResume(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying resume: %w", err)
	}
	return resume, nil
}

// ListResumes returns every record, newest first. Ties on created_at break
// by id so the order is stable; this ordering is the one clients must
// preserve.
func (r *DuckRepository) ListResumes(ctx context.Context) ([]models.Resume, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, file_name, file_size_bytes, created_at, analysis_status, failure_reason, storage_key
		FROM resumes ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing resumes: %w", err)
	}
	defer rows.Close()

	resumes := make([]models.Resume, 0, 16)
	for rows.Next() {
		resume, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resume: %w", err)
		}
		resumes = append(resumes, *resume)
	}
	return resumes, rows.Err()
}

// DeleteResume removes the record, its result, and its events, returning
// the storage key so the caller can drop the blob too.
func (r *DuckRepository) DeleteResume(ctx context.Context, id string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	var storageKey string
	err = tx.QueryRowContext(ctx, "SELECT storage_key FROM resumes WHERE id = ?", id).Scan(&storageKey)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying resume: %w", err)
	}

	for _, stmt := range []string{
		"DELETE FROM analysis_results WHERE resume_id = ?",
		"DELETE FROM status_events WHERE resume_id = ?",
		"DELETE FROM resumes WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return "", fmt.Errorf("deleting resume rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing delete: %w", err)
	}
	return storageKey, nil
}

// UpdateStatus applies one lifecycle transition and appends its event row
// in the same transaction. Illegal transitions return a *TransitionError
// and write nothing. failureReason is recorded only when next is failed.
func (r *DuckRepository) UpdateStatus(ctx context.Context, id string, next models.AnalysisStatus, failureReason string) (*models.StatusEvent, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning status update: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT analysis_status FROM resumes WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying status: %w", err)
	}

	from := models.AnalysisStatus(current)
	if !from.CanTransition(next) {
		return nil, &TransitionError{ResumeID: id, From: from, To: next}
	}

	if next != models.StatusFailed {
		failureReason = ""
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE resumes SET analysis_status = ?, failure_reason = ? WHERE id = ?",
		string(next), failureReason, id); err != nil {
		return nil, fmt.Errorf("updating status: %w", err)
	}

	event := &models.StatusEvent{
		Seq:        r.nextSeq.Add(1),
		ResumeID:   id,
		FromStatus: from,
		ToStatus:   next,
		OccurredAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status_events (seq, resume_id, from_status, to_status, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.Seq, event.ResumeID, string(event.FromStatus), string(event.ToStatus), event.OccurredAt); err != nil {
		return nil, fmt.Errorf("recording status event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status update: %w", err)
	}

	r.log.Infow("status updated", "resume_id", id, "from", from, "to", next)
	return event, nil
}

// SaveResult stores the analysis outcome, replacing any previous result
// for the resume.
func (r *DuckRepository) SaveResult(ctx context.Context, result *models.AnalysisResult) error {
	skills, err := json.Marshal(result.Skills)
	if err != nil {
		return fmt.Errorf("encoding skills: %w", err)
	}
	sections, err := json.Marshal(result.Sections)
	if err != nil {
		return fmt.Errorf("encoding sections: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_results (resume_id, score, summary, skills, sections, word_count, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, result.ResumeID, result.Score, result.Summary, string(skills), string(sections),
		result.WordCount, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// GetResult returns the stored analysis outcome for a resume.
func (r *DuckRepository) GetResult(ctx context.Context, resumeID string) (*models.AnalysisResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT resume_id, score, summary, skills, sections, word_count, completed_at
		FROM analysis_results WHERE resume_id = ?
	`, resumeID)

	var result models.AnalysisResult
	var skills, sections string
	err := row.Scan(&result.ResumeID, &result.Score, &result.Summary, &skills, &sections,
		&result.WordCount, &result.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result for %s: %w", resumeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying result: %w", err)
	}

	if err := json.Unmarshal([]byte(skills), &result.Skills); err != nil {
		return nil, fmt.Errorf("decoding skills: %w", err)
	}
	if err := json.Unmarshal([]byte(sections), &result.Sections); err != nil {
		return nil, fmt.Errorf("decoding sections: %w", err)
	}
	result.CompletedAt = result.CompletedAt.UTC()
	return &result, nil
}

// ListEvents returns the transition history of one resume in order.
func (r *DuckRepository) ListEvents(ctx context.Context, resumeID string) ([]models.StatusEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, resume_id, from_status, to_status, occurred_at
		FROM status_events WHERE resume_id = ? ORDER BY seq
	`, resumeID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := make([]models.StatusEvent, 0, 4)
	for rows.Next() {
		var ev models.StatusEvent
		var from, to string
		if err := rows.Scan(&ev.Seq, &ev.ResumeID, &from, &to, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.FromStatus = models.AnalysisStatus(from)
		ev.ToStatus = models.AnalysisStatus(to)
		ev.OccurredAt = ev.OccurredAt.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the total number of resumes.
func (r *DuckRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM resumes").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting resumes: %w", err)
	}
	return n, nil
}

// CountNonTerminal returns how many resumes are still pending or processing.
func (r *DuckRepository) CountNonTerminal(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM resumes WHERE analysis_status IN (?, ?)",
		string(models.StatusPending), string(models.StatusProcessing)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting non-terminal resumes: %w", err)
	}
	return n, nil
}

// Close closes the database. The file persists across runs.
func (r *DuckRepository) Close() error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("closing repository: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResume(s rowScanner) (*models.Resume, error) {
	var resume models.Resume
	var status string
	err := s.Scan(&resume.ID, &resume.FileName, &resume.FileSizeBytes, &resume.CreatedAt,
		&status, &resume.FailureReason, &resume.StorageKey)
	if err != nil {
		return nil, err
	}
	resume.AnalysisStatus = models.AnalysisStatus(status)
	resume.CreatedAt = resume.CreatedAt.UTC()
	return &resume, nil
}
