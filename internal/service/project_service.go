package service

import (
	"context"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type projectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.ContentFilter) ([]models.Project, int, error)
	Update(ctx context.Context, project *models.Project, onlyPending bool) error
}

// ProjectService runs the project submission and approval workflow.
type ProjectService struct {
	contentCore
	repo projectRepository
}

// NewProjectService constructs a ProjectService.
func NewProjectService(repo projectRepository, deps ContentDeps) *ProjectService {
	return &ProjectService{contentCore: newContentCore(models.ContentProject, deps), repo: repo}
}

// Submit creates a pending project owned by principal.
func (s *ProjectService) Submit(ctx context.Context, req models.ProjectRequest, principal *models.Principal, meta models.RequestMeta) (*models.Project, error) {
	if err := s.machine.AuthorizeSubmit(s.kind, principal); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	project := &models.Project{AuthorID: principal.ID}
	applyProjectRequest(project, req)
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	s.record(ctx, models.AuditActionContentSubmit, project.ID, principal, meta, nil, map[string]interface{}{"title": project.Title, "funds_allocated": project.FundsAllocated})
	return project, nil
}

// List returns projects visible to principal.
func (s *ProjectService) List(ctx context.Context, filter models.ContentFilter, principal *models.Principal) ([]models.Project, *models.Pagination, error) {
	s.scope(&filter, principal)
	projects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	return projects, contentPagination(filter, total), nil
}

// Get returns a project. Unapproved projects are hidden from callers without ReadAllContent.
func (s *ProjectService) Get(ctx context.Context, id string, principal *models.Principal) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if !s.visible(project.Status, principal) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project "+id+" not found")
	}
	return project, nil
}

// Update edits a project. Admins may edit in any status; the author only while pending.
func (s *ProjectService) Update(ctx context.Context, id string, req models.ProjectRequest, principal *models.Principal, meta models.RequestMeta) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	anyStatus, err := s.machine.AuthorizeEdit(s.kind, principal, project.AuthorID, project.Status == models.ApprovalPending)
	if err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	before := map[string]interface{}{"title": project.Title, "funds_allocated": project.FundsAllocated, "funds_utilized": project.FundsUtilized}
	applyProjectRequest(project, req)
	if err := s.repo.Update(ctx, project, !anyStatus); err != nil {
		return nil, s.editConflict(err)
	}

	s.record(ctx, models.AuditActionContentUpdate, project.ID, principal, meta, before, map[string]interface{}{"title": project.Title, "funds_allocated": project.FundsAllocated, "funds_utilized": project.FundsUtilized})
	if project.Status == models.ApprovalApproved {
		s.invalidate(ctx)
	}
	return project, nil
}

// Review approves or rejects a pending project.
func (s *ProjectService) Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*models.Project, error) {
	if err := s.machine.AuthorizeReview(s.kind, principal); err != nil {
		return nil, err
	}
	if err := s.validate(decision); err != nil {
		return nil, err
	}
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if err := s.review(ctx, id, project.Status, decision, principal, meta); err != nil {
		return nil, err
	}
	reviewed, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	return reviewed, nil
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error {
	return s.remove(ctx, id, principal, meta)
}

func applyProjectRequest(project *models.Project, req models.ProjectRequest) {
	project.Title = req.Title
	project.Description = req.Description
	project.Category = req.Category
	project.Location = req.Location
	project.FundsAllocated = req.FundsAllocated
	project.FundsUtilized = req.FundsUtilized
	project.StartDate = req.StartDate
	project.EndDate = req.EndDate
}
