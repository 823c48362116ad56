package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/dto"
	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/jobs"
	"github.com/noah-isme/civic-portal-api/pkg/validation"
)

const recoveryBatch = 100

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Claim(ctx context.Context, id string, at time.Time) (*models.ReportJob, error)
	Finish(ctx context.Context, id, resultURL string, at time.Time) error
	Fail(ctx context.Context, id, reason string, at time.Time) error
	Requeue(ctx context.Context, id, reason string) error
	Expire(ctx context.Context, id string) error
	RequeueInterrupted(ctx context.Context) (int64, error)
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportFiles interface {
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	Cleanup(ttl time.Duration) ([]string, error)
}

// ReportService accepts export requests and serves the finished files.
type ReportService struct {
	repo      reportJobStore
	guard     *authz.Guard
	queue     jobDispatcher
	files     exportFiles
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportServiceConfig governs retention of rendered exports.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload is an opened export ready to stream.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, guard *authz.Guard, queue jobDispatcher, files exportFiles, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{repo: repo, guard: guard, queue: queue, files: files, audit: audit, validator: validate, logger: logger, cfg: cfg}
}

// CreateJob records a queued export and hands it to the worker pool.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, principal *models.Principal) (*dto.ReportJobView, error) {
	if err := s.guard.Authorize(principal, authz.GenerateReport); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	params, err := req.Params()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	job := &models.ReportJob{Type: req.Type, Params: params, CreatedBy: principal.ID}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		if failErr := s.repo.Fail(ctx, job.ID, "could not be queued", time.Now().UTC()); failErr != nil {
			s.logger.Warn("failed to mark unqueued report job", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &principal.ID,
		Action:     models.AuditActionReportRequest,
		Resource:   "report",
		ResourceID: &job.ID,
		NewValues:  auditPayload(map[string]interface{}{"type": job.Type, "format": params.Format}),
	})
	s.logger.Info("report job queued", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.String("actor_id", principal.ID))
	return dto.NewReportJobView(job), nil
}

// GetStatus shows a job to its creator or an Admin. Anyone else sees NOT_FOUND.
func (s *ReportService) GetStatus(ctx context.Context, id string, principal *models.Principal) (*dto.ReportJobView, error) {
	if err := s.guard.Authorize(principal, authz.GenerateReport); err != nil {
		return nil, err
	}
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.VisibleTo(principal) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	return dto.NewReportJobView(job), nil
}

func (s *ReportService) load(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

// ResolveDownload checks a signed token against its job and opens the export.
func (s *ReportService) ResolveDownload(ctx context.Context, token string, meta models.RequestMeta) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.files.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Downloadable() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report is not available")
	}
	if tokenFromURL(*job.ResultURL) != token {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match report")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		Action:     models.AuditActionReportDownload,
		Resource:   "report",
		ResourceID: &job.ID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return &ReportDownload{File: file, Filename: filepath.Base(relPath), Format: job.Params.Format, ExpiresAt: expiresAt}, nil
}

// RecoverPendingJobs requeues work left behind by a previous process: jobs
// interrupted mid-render go back to QUEUED, then every queued job is dispatched.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	if n, err := s.repo.RequeueInterrupted(ctx); err != nil {
		s.logger.Warn("failed to reset interrupted report jobs", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("reset interrupted report jobs", zap.Int64("count", n))
	}

	pending, err := s.repo.ListQueued(ctx, recoveryBatch)
	if err != nil {
		s.logger.Warn("failed to list queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil && !errors.Is(err, jobs.ErrDuplicate) {
			s.logger.Warn("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup expires old exports every CleanupInterval until ctx ends.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireFinished(ctx, time.Now())
			}
		}
	}()
}

// expireFinished deletes exports older than the retention window and marks
// their jobs EXPIRED so they are not revisited. Stray files are swept after.
func (s *ReportService) expireFinished(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.cfg.ResultTTL)
	expired := 0
	for ctx.Err() == nil {
		batch, err := s.repo.ListFinishedBefore(ctx, cutoff, recoveryBatch)
		if err != nil {
			s.logger.Warn("failed to list expired reports", zap.Error(err))
			break
		}
		progressed := false
		for _, job := range batch {
			if job.ResultURL != nil {
				if _, relPath, _, err := s.files.ParseToken(tokenFromURL(*job.ResultURL), true); err == nil {
					if err := s.files.Delete(relPath); err != nil && !errors.Is(err, os.ErrNotExist) {
						s.logger.Warn("failed to delete expired export", zap.String("job_id", job.ID), zap.Error(err))
					}
				}
			}
			if err := s.repo.Expire(ctx, job.ID); err != nil {
				s.logger.Warn("failed to expire report job", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			expired++
			progressed = true
		}
		if len(batch) < recoveryBatch || !progressed {
			break
		}
	}
	if removed, err := s.files.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export directory sweep failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("swept stray exports", zap.Int("count", len(removed)))
	}
	return expired
}

func tokenFromURL(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}
