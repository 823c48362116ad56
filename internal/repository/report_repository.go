package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

const reportJobColumns = `id, type, params, status, progress, attempts, result_url, created_by, created_at, started_at, finished_at, error_message`

// ErrJobNotClaimable is returned when a worker tries to start a job that is no longer queued.
var ErrJobNotClaimable = errors.New("report job is not queued")

// ReportRepository persists export jobs. Status changes go through the
// transition methods so each one is guarded by the state it leaves.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a queued job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = models.ReportStatusQueued
	job.Progress = 0
	job.Attempts = 0

	const query = `INSERT INTO report_jobs (id, type, params, status, progress, attempts, created_by, created_at)
VALUES (:id, :type, :params, :status, :progress, :attempts, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns a job. Missing rows yield sql.ErrNoRows.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, `SELECT `+reportJobColumns+` FROM report_jobs WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report job: %w", err)
	}
	return &job, nil
}

// Claim moves a queued job to PROCESSING and returns it with its attempt counted.
// Concurrent claims of one job see ErrJobNotClaimable.
func (r *ReportRepository) Claim(ctx context.Context, id string, at time.Time) (*models.ReportJob, error) {
	const query = `UPDATE report_jobs SET status = 'PROCESSING', progress = 10, attempts = attempts + 1, started_at = $2, error_message = NULL
WHERE id = $1 AND status = 'QUEUED' RETURNING ` + reportJobColumns
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotClaimable
		}
		return nil, fmt.Errorf("claim report job: %w", err)
	}
	return &job, nil
}

// Finish records a rendered export.
func (r *ReportRepository) Finish(ctx context.Context, id, resultURL string, at time.Time) error {
	const query = `UPDATE report_jobs SET status = 'FINISHED', progress = 100, result_url = $2, finished_at = $3, error_message = NULL
WHERE id = $1 AND status = 'PROCESSING'`
	return r.transition(ctx, "finish", query, id, resultURL, at)
}

// Fail marks a job permanently failed.
func (r *ReportRepository) Fail(ctx context.Context, id, reason string, at time.Time) error {
	const query = `UPDATE report_jobs SET status = 'FAILED', progress = 100, error_message = $2, finished_at = $3
WHERE id = $1 AND status IN ('QUEUED', 'PROCESSING')`
	return r.transition(ctx, "fail", query, id, reason, at)
}

// Requeue returns a processing job to the queue after a retryable failure.
func (r *ReportRepository) Requeue(ctx context.Context, id, reason string) error {
	const query = `UPDATE report_jobs SET status = 'QUEUED', progress = 0, error_message = $2 WHERE id = $1 AND status = 'PROCESSING'`
	return r.transition(ctx, "requeue", query, id, reason)
}

// Expire clears the result of a finished job whose export was removed.
func (r *ReportRepository) Expire(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET status = 'EXPIRED', result_url = NULL WHERE id = $1 AND status = 'FINISHED'`
	return r.transition(ctx, "expire", query, id)
}

func (r *ReportRepository) transition(ctx context.Context, name, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s report job: %w", name, err)
	}
	return requireRow(res)
}

// RequeueInterrupted returns jobs left PROCESSING by a stopped process to the queue.
func (r *ReportRepository) RequeueInterrupted(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE report_jobs SET status = 'QUEUED', progress = 0 WHERE status = 'PROCESSING'`)
	if err != nil {
		return 0, fmt.Errorf("requeue interrupted report jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count requeued report jobs: %w", err)
	}
	return n, nil
}

// ListQueued returns the oldest queued jobs first.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	_, limit = models.NormalizePage(1, limit)
	var jobs []models.ReportJob
	query := `SELECT ` + reportJobColumns + ` FROM report_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued report jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore returns finished jobs whose export is older than cutoff.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	_, limit = models.NormalizePage(1, limit)
	var jobs []models.ReportJob
	query := `SELECT ` + reportJobColumns + ` FROM report_jobs WHERE status = 'FINISHED' AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished report jobs: %w", err)
	}
	return jobs, nil
}
