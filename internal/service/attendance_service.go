package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/validation"
)

type attendanceRepository interface {
	InsertDay(ctx context.Context, season, mlaID string, day *models.AttendanceDay) error
	FindDay(ctx context.Context, id string) (*models.AttendanceDay, error)
	VerifyDay(ctx context.Context, id string, status models.AttendanceDayStatus, verifiedBy string, remarks *string, at time.Time) error
	FindRecord(ctx context.Context, season, mlaID string) (*models.AttendanceRecord, error)
	ListRecords(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	CountAll(ctx context.Context) (*models.AttendanceCounts, error)
	CountForMLA(ctx context.Context, mlaID string, season *string) (*models.AttendanceCounts, error)
}

// AttendanceService keeps the per-season sitting ledger of each MLA.
type AttendanceService struct {
	repo      attendanceRepository
	guard     *authz.Guard
	audit     auditLogger
	stats     statsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, guard *authz.Guard, audit auditLogger, stats statsInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if guard == nil {
		guard = authz.NewGuard(nil)
	}
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, guard: guard, audit: audit, stats: stats, metrics: metrics, validator: validate, logger: logger}
}

// RecordDay adds a pending day to the MLA's ledger for the season. A repeated date is rejected.
func (s *AttendanceService) RecordDay(ctx context.Context, req models.RecordDayRequest, principal *models.Principal, meta models.RequestMeta) (*models.AttendanceDay, error) {
	if err := s.guard.Authorize(principal, authz.RecordAttendance); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := workflow.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}

	day := &models.AttendanceDay{Date: date, Present: req.Present, Remarks: req.Remarks}
	if err := s.repo.InsertDay(ctx, req.Season, req.MLAID, day); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateDate, "attendance for "+req.Date+" is already recorded in season "+req.Season)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.metrics.RecordAttendance("record", day.Status)
	s.record(ctx, models.AuditActionAttendanceRecord, day.ID, principal, meta, map[string]interface{}{"season": req.Season, "mla_id": req.MLAID, "date": req.Date, "present": req.Present})
	s.invalidate(ctx)
	return day, nil
}

// VerifyDay marks a day Verified or Non-Verified.
func (s *AttendanceService) VerifyDay(ctx context.Context, id string, req models.VerifyDayRequest, principal *models.Principal, meta models.RequestMeta) (*models.AttendanceDay, error) {
	if err := s.guard.Authorize(principal, authz.VerifyAttendance); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil || !workflow.CanVerify(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Verified or Non-Verified")
	}

	day, err := s.repo.FindDay(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance day not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance day")
	}

	now := time.Now().UTC()
	if err := s.repo.VerifyDay(ctx, id, req.Status, principal.ID, req.Remarks, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance day not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify attendance day")
	}

	verifier := principal.ID
	day.Status = req.Status
	day.VerifiedBy = &verifier
	day.VerifiedAt = &now
	day.UpdatedAt = now
	if req.Remarks != nil {
		day.Remarks = req.Remarks
	}

	s.metrics.RecordAttendance("verify", day.Status)
	s.record(ctx, models.AuditActionAttendanceVerify, day.ID, principal, meta, map[string]interface{}{"status": day.Status})
	s.invalidate(ctx)
	return day, nil
}

// GetRecord returns the full ledger of an MLA for a season.
func (s *AttendanceService) GetRecord(ctx context.Context, season, mlaID string, principal *models.Principal) (*models.AttendanceRecord, error) {
	if err := s.guard.Authorize(principal, authz.ReadAttendance); err != nil {
		return nil, err
	}
	record, err := s.repo.FindRecord(ctx, season, mlaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	return record, nil
}

// ListRecords returns ledgers matching filter.
func (s *AttendanceService) ListRecords(ctx context.Context, filter models.AttendanceFilter, principal *models.Principal) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.guard.Authorize(principal, authz.ReadAttendance); err != nil {
		return nil, nil, err
	}
	records, total, err := s.repo.ListRecords(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance records")
	}
	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return records, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// PublicPercentage is the share of verified days across every recorded day.
func (s *AttendanceService) PublicPercentage(ctx context.Context) (*models.AttendancePercentage, error) {
	start := time.Now()
	counts, err := s.repo.CountAll(ctx)
	s.metrics.ObserveDBQuery("attendance_percentage", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	return &models.AttendancePercentage{
		Verified:   counts.Verified,
		Total:      counts.Total,
		Percentage: workflow.Percentage(*counts),
	}, nil
}

// MLAPercentage is the share of verified days for one MLA, optionally within one season.
func (s *AttendanceService) MLAPercentage(ctx context.Context, mlaID string, season *string) (*models.AttendancePercentage, error) {
	if mlaID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mla id is required")
	}
	start := time.Now()
	counts, err := s.repo.CountForMLA(ctx, mlaID, season)
	s.metrics.ObserveDBQuery("attendance_mla_percentage", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	id := mlaID
	return &models.AttendancePercentage{
		MLAID:      &id,
		Season:     season,
		Verified:   counts.Verified,
		Total:      counts.Total,
		Percentage: workflow.Percentage(*counts),
	}, nil
}

func (s *AttendanceService) invalidate(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateStats(ctx)
	}
}

func (s *AttendanceService) record(ctx context.Context, action, id string, principal *models.Principal, meta models.RequestMeta, values map[string]interface{}) {
	actor := principal.ID
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor,
		Action:     action,
		Resource:   "attendance",
		ResourceID: &id,
		NewValues:  auditPayload(values),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
}
