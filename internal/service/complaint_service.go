package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/validation"
)

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	Update(ctx context.Context, complaint *models.Complaint) error
}

// ComplaintService handles citizen grievances and their staff follow-up.
type ComplaintService struct {
	repo            complaintRepository
	guard           *authz.Guard
	audit           auditLogger
	stats           statsInvalidator
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	defaultPriority models.ComplaintPriority
}

// NewComplaintService constructs a ComplaintService. An invalid defaultPriority falls back to medium.
func NewComplaintService(repo complaintRepository, guard *authz.Guard, audit auditLogger, stats statsInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, defaultPriority string) *ComplaintService {
	if guard == nil {
		guard = authz.NewGuard(nil)
	}
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	priority := models.ComplaintPriority(strings.ToLower(defaultPriority))
	if !priority.Valid() {
		priority = models.PriorityMedium
	}
	return &ComplaintService{repo: repo, guard: guard, audit: audit, stats: stats, metrics: metrics, validator: validate, logger: logger, defaultPriority: priority}
}

// Create files a complaint for a citizen.
func (s *ComplaintService) Create(ctx context.Context, req models.CreateComplaintRequest, principal *models.Principal, meta models.RequestMeta) (*models.Complaint, error) {
	if err := s.guard.Authorize(principal, authz.CreateComplaint); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}

	priority := req.Priority
	if priority == "" {
		priority = s.defaultPriority
	}
	complaint := &models.Complaint{
		UserID:      principal.ID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Status:      models.ComplaintSubmitted,
		Priority:    priority,
	}
	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}

	s.metrics.RecordComplaint("create", complaint.Status)
	s.record(ctx, models.AuditActionComplaintCreate, complaint.ID, principal, meta, nil, map[string]interface{}{"title": complaint.Title, "priority": complaint.Priority})
	s.invalidate(ctx)
	return complaint, nil
}

// ListOwn returns the caller's complaints.
func (s *ComplaintService) ListOwn(ctx context.Context, filter models.ComplaintFilter, principal *models.Principal) ([]models.Complaint, *models.Pagination, error) {
	if err := s.guard.Authorize(principal, authz.ReadOwnComplaints); err != nil {
		return nil, nil, err
	}
	filter.UserID = principal.ID
	filter.AssignedTo = ""
	return s.list(ctx, filter)
}

// ListAll returns every complaint matching filter for staff.
func (s *ComplaintService) ListAll(ctx context.Context, filter models.ComplaintFilter, principal *models.Principal) ([]models.Complaint, *models.Pagination, error) {
	if err := s.guard.Authorize(principal, authz.ReadAllComplaints); err != nil {
		return nil, nil, err
	}
	return s.list(ctx, filter)
}

// Get returns a complaint. Citizens asking for someone else's complaint get NOT_FOUND.
func (s *ComplaintService) Get(ctx context.Context, id string, principal *models.Principal) (*models.Complaint, error) {
	if err := s.guard.Authorize(principal); err != nil {
		return nil, err
	}
	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanReadComplaint(complaint, principal, s.guard.Can(principal, authz.ReadAllComplaints)) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
	}
	return complaint, nil
}

// Update applies a staff write. Status may move in any direction; PA writes claim the complaint.
func (s *ComplaintService) Update(ctx context.Context, id string, req models.UpdateComplaintRequest, principal *models.Principal, meta models.RequestMeta) (*models.Complaint, error) {
	if err := s.guard.Authorize(principal, authz.UpdateComplaint); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint update payload")
	}
	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	before := map[string]interface{}{"status": complaint.Status, "priority": complaint.Priority, "assigned_to": complaint.AssignedTo}
	workflow.ApplyComplaintUpdate(complaint, req, principal)
	if err := s.repo.Update(ctx, complaint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint")
	}

	s.metrics.RecordComplaint("update", complaint.Status)
	s.record(ctx, models.AuditActionComplaintUpdate, complaint.ID, principal, meta, before,
		map[string]interface{}{"status": complaint.Status, "priority": complaint.Priority, "assigned_to": complaint.AssignedTo})
	s.invalidate(ctx)
	return complaint, nil
}

func (s *ComplaintService) list(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error) {
	complaints, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return complaints, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *ComplaintService) load(ctx context.Context, id string) (*models.Complaint, error) {
	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	return complaint, nil
}

func (s *ComplaintService) invalidate(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateStats(ctx)
	}
}

func (s *ComplaintService) record(ctx context.Context, action, id string, principal *models.Principal, meta models.RequestMeta, oldValues, newValues interface{}) {
	actor := principal.ID
	entry := &models.AuditLog{UserID: &actor, Action: action, Resource: "complaint", ResourceID: &id, IPAddress: meta.IP, UserAgent: meta.UserAgent}
	if oldValues != nil {
		entry.OldValues = auditPayload(oldValues)
	}
	entry.NewValues = auditPayload(newValues)
	recordAudit(ctx, s.audit, s.logger, entry)
}
