package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/repository"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/validation"
)

type scheduleRepository interface {
	Create(ctx context.Context, schedule *models.Schedule) error
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	UpdatePending(ctx context.Context, schedule *models.Schedule) error
	Review(ctx context.Context, params repository.ScheduleReviewParams) error
	Delete(ctx context.Context, id string) error
}

// ScheduleService manages MLA appointments proposed by assistants.
type ScheduleService struct {
	repo      scheduleRepository
	machine   *workflow.Machine
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(repo scheduleRepository, machine *workflow.Machine, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if machine == nil {
		machine = workflow.NewMachine(nil)
	}
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, machine: machine, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Submit proposes a schedule entry for an MLA.
func (s *ScheduleService) Submit(ctx context.Context, req models.ScheduleRequest, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error) {
	if err := s.machine.AuthorizeSubmit(models.ContentSchedule, principal); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	schedule := &models.Schedule{CreatedBy: principal.ID}
	applyScheduleRequest(schedule, req)
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	s.record(ctx, models.AuditActionContentSubmit, schedule.ID, principal, meta, nil, map[string]interface{}{"mla_id": schedule.MLAID, "start_time": schedule.StartTime})
	return schedule, nil
}

// List returns schedules. Callers without ReadAllContent only see approved entries.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter, principal *models.Principal) ([]models.Schedule, *models.Pagination, error) {
	if !s.machine.Guard().Can(principal, authz.ReadAllContent) {
		approved := models.ScheduleApproved
		filter.Status = &approved
	}
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return schedules, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a schedule visible to principal.
func (s *ScheduleService) Get(ctx context.Context, id string, principal *models.Principal) (*models.Schedule, error) {
	schedule, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Status != models.ScheduleApproved && !s.machine.Guard().Can(principal, authz.ReadAllContent) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	return schedule, nil
}

// Update edits a pending schedule on behalf of the assistant who proposed it.
func (s *ScheduleService) Update(ctx context.Context, id string, req models.ScheduleRequest, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error) {
	schedule, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.machine.AuthorizeEdit(models.ContentSchedule, principal, schedule.CreatedBy, schedule.Status == models.SchedulePending); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	before := map[string]interface{}{"start_time": schedule.StartTime, "end_time": schedule.EndTime}
	applyScheduleRequest(schedule, req)
	if err := s.repo.UpdatePending(ctx, schedule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotEditable, "schedule is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	s.record(ctx, models.AuditActionContentUpdate, schedule.ID, principal, meta, before, map[string]interface{}{"start_time": schedule.StartTime, "end_time": schedule.EndTime})
	return schedule, nil
}

// Review approves or cancels a pending schedule.
func (s *ScheduleService) Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error) {
	if err := s.machine.AuthorizeReview(models.ContentSchedule, principal); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(decision); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	schedule, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	to := scheduleStatusOf(decision.Status)
	if err := s.machine.Transition(models.ContentSchedule, string(schedule.Status), string(to), principal); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.repo.Review(ctx, repository.ScheduleReviewParams{
		ID:         id,
		From:       schedule.Status,
		Status:     to,
		Remarks:    decision.Remarks,
		ApprovedBy: principal.ID,
		ApprovedAt: now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "schedule is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review schedule")
	}

	s.metrics.RecordTransition(models.ContentSchedule, string(to))
	s.record(ctx, models.AuditActionContentReview, id, principal, meta,
		map[string]interface{}{"status": schedule.Status},
		map[string]interface{}{"status": to, "remarks": decision.Remarks})

	approver := principal.ID
	schedule.Status = to
	schedule.Remarks = decision.Remarks
	schedule.ApprovedBy = &approver
	schedule.ApprovedAt = &now
	schedule.UpdatedAt = now
	return schedule, nil
}

// Delete removes a schedule.
func (s *ScheduleService) Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error {
	if err := s.machine.Guard().Authorize(principal, authz.DeleteContent); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.record(ctx, models.AuditActionContentDelete, id, principal, meta, nil, nil)
	return nil
}

func (s *ScheduleService) load(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

func (s *ScheduleService) record(ctx context.Context, action, id string, principal *models.Principal, meta models.RequestMeta, oldValues, newValues interface{}) {
	actor := principal.ID
	entry := &models.AuditLog{UserID: &actor, Action: action, Resource: string(models.ContentSchedule), ResourceID: &id, IPAddress: meta.IP, UserAgent: meta.UserAgent}
	if oldValues != nil {
		entry.OldValues = auditPayload(oldValues)
	}
	if newValues != nil {
		entry.NewValues = auditPayload(newValues)
	}
	recordAudit(ctx, s.audit, s.logger, entry)
}

// scheduleStatusOf matches a requested status case-insensitively; unknown values pass through
// unchanged so the transition table rejects them.
func scheduleStatusOf(raw string) models.ScheduleStatus {
	raw = strings.TrimSpace(raw)
	for _, st := range []models.ScheduleStatus{models.SchedulePending, models.ScheduleApproved, models.ScheduleCancelled} {
		if strings.EqualFold(raw, string(st)) {
			return st
		}
	}
	return models.ScheduleStatus(raw)
}

func applyScheduleRequest(schedule *models.Schedule, req models.ScheduleRequest) {
	schedule.MLAID = req.MLAID
	schedule.Title = req.Title
	schedule.Description = req.Description
	schedule.Location = req.Location
	schedule.StartTime = req.StartTime
	schedule.EndTime = req.EndTime
}
