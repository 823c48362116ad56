package service

import (
	"context"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type schemeRepository interface {
	Create(ctx context.Context, scheme *models.Scheme) error
	FindByID(ctx context.Context, id string) (*models.Scheme, error)
	List(ctx context.Context, filter models.ContentFilter) ([]models.Scheme, int, error)
	UpdatePending(ctx context.Context, scheme *models.Scheme) error
}

// SchemeService runs the scheme submission and approval workflow.
type SchemeService struct {
	contentCore
	repo schemeRepository
}

// NewSchemeService constructs a SchemeService.
func NewSchemeService(repo schemeRepository, deps ContentDeps) *SchemeService {
	return &SchemeService{contentCore: newContentCore(models.ContentScheme, deps), repo: repo}
}

// Submit creates a pending scheme owned by principal.
func (s *SchemeService) Submit(ctx context.Context, req models.SchemeRequest, principal *models.Principal, meta models.RequestMeta) (*models.Scheme, error) {
	if err := s.machine.AuthorizeSubmit(s.kind, principal); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	scheme := &models.Scheme{AuthorID: principal.ID}
	applySchemeRequest(scheme, req)
	if err := s.repo.Create(ctx, scheme); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scheme")
	}

	s.record(ctx, models.AuditActionContentSubmit, scheme.ID, principal, meta, nil, map[string]interface{}{"title": scheme.Title, "budget": scheme.Budget})
	return scheme, nil
}

// List returns schemes visible to principal.
func (s *SchemeService) List(ctx context.Context, filter models.ContentFilter, principal *models.Principal) ([]models.Scheme, *models.Pagination, error) {
	s.scope(&filter, principal)
	schemes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schemes")
	}
	return schemes, contentPagination(filter, total), nil
}

// Get returns a scheme visible to principal.
func (s *SchemeService) Get(ctx context.Context, id string, principal *models.Principal) (*models.Scheme, error) {
	scheme, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if !s.visible(scheme.Status, principal) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "scheme "+id+" not found")
	}
	return scheme, nil
}

// Update edits a pending scheme on behalf of its author.
func (s *SchemeService) Update(ctx context.Context, id string, req models.SchemeRequest, principal *models.Principal, meta models.RequestMeta) (*models.Scheme, error) {
	scheme, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if _, err := s.machine.AuthorizeEdit(s.kind, principal, scheme.AuthorID, scheme.Status == models.ApprovalPending); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	before := map[string]interface{}{"title": scheme.Title, "budget": scheme.Budget}
	applySchemeRequest(scheme, req)
	if err := s.repo.UpdatePending(ctx, scheme); err != nil {
		return nil, s.editConflict(err)
	}

	s.record(ctx, models.AuditActionContentUpdate, scheme.ID, principal, meta, before, map[string]interface{}{"title": scheme.Title, "budget": scheme.Budget})
	return scheme, nil
}

// Review approves or rejects a pending scheme.
func (s *SchemeService) Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*models.Scheme, error) {
	if err := s.machine.AuthorizeReview(s.kind, principal); err != nil {
		return nil, err
	}
	if err := s.validate(decision); err != nil {
		return nil, err
	}
	scheme, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if err := s.review(ctx, id, scheme.Status, decision, principal, meta); err != nil {
		return nil, err
	}
	reviewed, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	return reviewed, nil
}

// Delete removes a scheme.
func (s *SchemeService) Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error {
	return s.remove(ctx, id, principal, meta)
}

func applySchemeRequest(scheme *models.Scheme, req models.SchemeRequest) {
	scheme.Title = req.Title
	scheme.Description = req.Description
	scheme.Eligibility = req.Eligibility
	scheme.Benefits = req.Benefits
	scheme.Budget = req.Budget
	scheme.StartDate = req.StartDate
	scheme.EndDate = req.EndDate
}
