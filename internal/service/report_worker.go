package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/repository"
	"github.com/noah-isme/civic-portal-api/pkg/jobs"
)

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportWorker renders one queued job per call. Attempts are counted on the
// job row, so the retry budget survives restarts.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
	now        func() time.Time
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{repo: repo, exporter: exporter, logger: logger, maxRetries: maxRetries, now: func() time.Time { return time.Now().UTC() }}
}

// Handle is the jobs.Handler for report jobs. A returned error asks the queue to retry.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	claimed, err := w.repo.Claim(ctx, job.ID, w.now())
	if errors.Is(err, repository.ErrJobNotClaimable) {
		w.logger.Debug("report job already handled", zap.String("job_id", job.ID))
		return nil
	}
	if err != nil {
		return err
	}

	result, genErr := w.exporter.Generate(ctx, claimed)
	if genErr == nil {
		return w.repo.Finish(ctx, claimed.ID, result.URL, w.now())
	}

	reason := genErr.Error()
	if claimed.Attempts >= w.maxRetries {
		w.logger.Error("report job failed permanently", zap.String("job_id", claimed.ID), zap.Int("attempts", claimed.Attempts), zap.Error(genErr))
		if err := w.repo.Fail(ctx, claimed.ID, reason, w.now()); err != nil {
			w.logger.Warn("failed to mark report job failed", zap.String("job_id", claimed.ID), zap.Error(err))
		}
		return nil
	}
	if err := w.repo.Requeue(ctx, claimed.ID, reason); err != nil {
		w.logger.Warn("failed to requeue report job", zap.String("job_id", claimed.ID), zap.Error(err))
	}
	return genErr
}
