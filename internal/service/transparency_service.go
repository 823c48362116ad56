package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type projectTotalsReader interface {
	ApprovedTotals(ctx context.Context) (*models.ProjectTotals, error)
}

type contentStatusCounter interface {
	CountByStatus(ctx context.Context, kind models.ContentKind) ([]models.StatusCount, error)
}

type complaintStatusCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type attendanceCounter interface {
	CountAll(ctx context.Context) (*models.AttendanceCounts, error)
}

// TransparencyService builds the public summary and serves it from cache when possible.
type TransparencyService struct {
	projects   projectTotalsReader
	content    contentStatusCounter
	complaints complaintStatusCounter
	attendance attendanceCounter
	cache      *CacheService
	metrics    *MetricsService
	ttl        time.Duration
	logger     *zap.Logger
}

// NewTransparencyService constructs a TransparencyService. A nil cache disables caching.
func NewTransparencyService(projects projectTotalsReader, content contentStatusCounter, complaints complaintStatusCounter, attendance attendanceCounter, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *TransparencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransparencyService{projects: projects, content: content, complaints: complaints, attendance: attendance, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// Summary returns the public transparency figures and whether they came from cache.
func (s *TransparencyService) Summary(ctx context.Context) (*models.TransparencySummary, bool, error) {
	return Remember(ctx, s.cache, StatsKey("summary"), s.ttl, s.build)
}

func (s *TransparencyService) build(ctx context.Context) (*models.TransparencySummary, error) {
	start := time.Now()
	totals, err := s.projects.ApprovedTotals(ctx)
	s.metrics.ObserveDBQuery("summary_project_totals", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total projects")
	}
	schemes, err := s.approvedCount(ctx, models.ContentScheme)
	if err != nil {
		return nil, err
	}
	events, err := s.approvedCount(ctx, models.ContentEvent)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	complaintRows, err := s.complaints.CountByStatus(ctx)
	s.metrics.ObserveDBQuery("summary_complaints", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count complaints")
	}
	byStatus := map[models.ComplaintStatus]int{
		models.ComplaintSubmitted:  0,
		models.ComplaintInProgress: 0,
		models.ComplaintResolved:   0,
	}
	for _, row := range complaintRows {
		byStatus[models.ComplaintStatus(row.Status)] += row.Count
	}

	start = time.Now()
	counts, err := s.attendance.CountAll(ctx)
	s.metrics.ObserveDBQuery("summary_attendance", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}

	s.logger.Debug("transparency summary rebuilt", zap.Int("approved_projects", totals.Count))
	return &models.TransparencySummary{
		ApprovedProjects:  totals.Count,
		FundsAllocated:    totals.FundsAllocated,
		FundsUtilized:     totals.FundsUtilized,
		ApprovedSchemes:   schemes,
		ApprovedEvents:    events,
		ComplaintsByState: byStatus,
		Attendance: models.AttendancePercentage{
			Verified:   counts.Verified,
			Total:      counts.Total,
			Percentage: workflow.Percentage(*counts),
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *TransparencyService) approvedCount(ctx context.Context, kind models.ContentKind) (int, error) {
	start := time.Now()
	rows, err := s.content.CountByStatus(ctx, kind)
	s.metrics.ObserveDBQuery("summary_"+string(kind)+"s", time.Since(start))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count "+string(kind)+"s")
	}
	for _, row := range rows {
		if row.Status == string(models.ApprovalApproved) {
			return row.Count, nil
		}
	}
	return 0, nil
}
