// Package status implements the status-and-checkpoint store (§4.9, §3).
// StatusWriter/StatusReader/CheckpointStore are the capability interfaces
// the pipeline orchestrator depends on, per §9's design note: "cyclic
// references between the orchestrator and the store are broken by passing
// a StatusWriter capability, not the concrete store". PostgresStore is the
// production implementation (grounded on the teacher's lib/pq usage
// pattern for its Mist state cache); MemStore is an in-memory fake for
// tests and the godog harness.
package status

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/videoreport/api/job"
	"github.com/videoreport/api/metrics"
)

// StatusWriter is the capability the pipeline needs to publish progress.
// Implementations must make writes visible to readers in the order they
// were issued (§5's "sequentially consistent" ordering guarantee).
type StatusWriter interface {
	Put(ctx context.Context, s job.JobStatus) error
}

// StatusReader serves GET /status/{upload_id} (§4.9).
type StatusReader interface {
	Get(ctx context.Context, uploadID string) (job.JobStatus, bool, error)
}

// CheckpointStore persists and resumes OCR batch progress (§3, §4.5.3).
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, uploadID string) (job.Checkpoint, bool, error)
	PutCheckpoint(ctx context.Context, c job.Checkpoint) error
	DeleteCheckpoint(ctx context.Context, uploadID string) error
	// DeleteExpired removes checkpoints past their ExpiresAt, returning the
	// count deleted; backs the /cron/cleanup-checkpoints handler (§6).
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// PostgresStore implements StatusWriter, StatusReader and CheckpointStore
// against two tables: job_status and job_checkpoint.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open status store connection: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Put(ctx context.Context, s job.JobStatus) error {
	start := time.Now()
	var metadataJSON []byte
	var err error
	if s.Metadata != nil {
		metadataJSON, err = marshalMetadata(s.Metadata)
		if err != nil {
			return err
		}
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO job_status (
			upload_id, status, progress, phase, phase_progress, phase_status,
			stage, sub_task, estimated_time_remaining, started_at, updated_at,
			result_key, metadata, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (upload_id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			phase = EXCLUDED.phase,
			phase_progress = EXCLUDED.phase_progress,
			phase_status = EXCLUDED.phase_status,
			stage = EXCLUDED.stage,
			sub_task = EXCLUDED.sub_task,
			estimated_time_remaining = EXCLUDED.estimated_time_remaining,
			updated_at = EXCLUDED.updated_at,
			result_key = EXCLUDED.result_key,
			metadata = EXCLUDED.metadata,
			error = EXCLUDED.error
	`, s.UploadID, s.Status, s.Progress, s.Phase, s.PhaseProgress, s.PhaseStatus,
		s.Stage, s.SubTask, s.EstimatedTimeRemaining, s.StartedAt, s.UpdatedAt,
		s.ResultKey, metadataJSON, s.Error)

	if err != nil {
		metrics.Metrics.StatusStoreClient.FailureCount.WithLabelValues("postgres", "000").Inc()
		return fmt.Errorf("failed to write job status for %s: %w", s.UploadID, err)
	}
	metrics.Metrics.StatusStoreClient.RequestDuration.WithLabelValues("postgres").Observe(time.Since(start).Seconds())
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, uploadID string) (job.JobStatus, bool, error) {
	var s job.JobStatus
	var metadataJSON []byte
	row := p.db.QueryRowContext(ctx, `
		SELECT upload_id, status, progress, phase, phase_progress, phase_status,
			stage, sub_task, estimated_time_remaining, started_at, updated_at,
			result_key, metadata, error
		FROM job_status WHERE upload_id = $1
	`, uploadID)

	err := row.Scan(&s.UploadID, &s.Status, &s.Progress, &s.Phase, &s.PhaseProgress, &s.PhaseStatus,
		&s.Stage, &s.SubTask, &s.EstimatedTimeRemaining, &s.StartedAt, &s.UpdatedAt,
		&s.ResultKey, &metadataJSON, &s.Error)
	if err == sql.ErrNoRows {
		return job.JobStatus{}, false, nil
	}
	if err != nil {
		return job.JobStatus{}, false, fmt.Errorf("failed to read job status for %s: %w", uploadID, err)
	}
	if len(metadataJSON) > 0 {
		s.Metadata, err = unmarshalMetadata(metadataJSON)
		if err != nil {
			return job.JobStatus{}, false, err
		}
	}
	return s, true, nil
}

func (p *PostgresStore) GetCheckpoint(ctx context.Context, uploadID string) (job.Checkpoint, bool, error) {
	var c job.Checkpoint
	var completed []byte
	row := p.db.QueryRowContext(ctx, `
		SELECT upload_id, current_step, total_scenes, completed_ocr_scenes,
			retry_count, updated_at, expires_at
		FROM job_checkpoint WHERE upload_id = $1
	`, uploadID)

	err := row.Scan(&c.UploadID, &c.CurrentStep, &c.TotalScenes, &completed,
		&c.RetryCount, &c.UpdatedAt, &c.ExpiresAt)
	if err == sql.ErrNoRows {
		return job.Checkpoint{}, false, nil
	}
	if err != nil {
		return job.Checkpoint{}, false, fmt.Errorf("failed to read checkpoint for %s: %w", uploadID, err)
	}
	c.CompletedOCRScenes, err = unmarshalSceneSet(completed)
	if err != nil {
		return job.Checkpoint{}, false, err
	}
	return c, true, nil
}

func (p *PostgresStore) PutCheckpoint(ctx context.Context, c job.Checkpoint) error {
	completed, err := marshalSceneSet(c.CompletedOCRScenes)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO job_checkpoint (
			upload_id, current_step, total_scenes, completed_ocr_scenes,
			retry_count, updated_at, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (upload_id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			total_scenes = EXCLUDED.total_scenes,
			completed_ocr_scenes = EXCLUDED.completed_ocr_scenes,
			retry_count = EXCLUDED.retry_count,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`, c.UploadID, c.CurrentStep, c.TotalScenes, completed, c.RetryCount, c.UpdatedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to write checkpoint for %s: %w", c.UploadID, err)
	}
	return nil
}

func (p *PostgresStore) DeleteCheckpoint(ctx context.Context, uploadID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM job_checkpoint WHERE upload_id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint for %s: %w", uploadID, err)
	}
	return nil
}

func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM job_checkpoint WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired checkpoints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted checkpoints: %w", err)
	}
	return int(n), nil
}

// MemStore is a mutex-guarded in-memory implementation of all three
// interfaces, used by pipeline/handler tests and the godog harness.
type MemStore struct {
	mu          sync.Mutex
	statuses    map[string]job.JobStatus
	checkpoints map[string]job.Checkpoint
}

func NewMemStore() *MemStore {
	return &MemStore{
		statuses:    map[string]job.JobStatus{},
		checkpoints: map[string]job.Checkpoint{},
	}
}

func (m *MemStore) Put(_ context.Context, s job.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[s.UploadID] = s
	return nil
}

func (m *MemStore) Get(_ context.Context, uploadID string) (job.JobStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[uploadID]
	return s, ok, nil
}

func (m *MemStore) GetCheckpoint(_ context.Context, uploadID string) (job.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkpoints[uploadID]
	return c, ok, nil
}

func (m *MemStore) PutCheckpoint(_ context.Context, c job.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[c.UploadID] = c
	return nil
}

func (m *MemStore) DeleteCheckpoint(_ context.Context, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, uploadID)
	return nil
}

func (m *MemStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.checkpoints {
		if c.ExpiresAt.Before(now) {
			delete(m.checkpoints, id)
			n++
		}
	}
	return n, nil
}
