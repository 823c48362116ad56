package service

import (
	"context"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.ContentFilter) ([]models.Event, int, error)
	UpdatePending(ctx context.Context, event *models.Event) error
}

// EventService runs the event submission and approval workflow.
type EventService struct {
	contentCore
	repo eventRepository
}

// NewEventService constructs an EventService.
func NewEventService(repo eventRepository, deps ContentDeps) *EventService {
	return &EventService{contentCore: newContentCore(models.ContentEvent, deps), repo: repo}
}

// Submit creates a pending event owned by principal.
func (s *EventService) Submit(ctx context.Context, req models.EventRequest, principal *models.Principal, meta models.RequestMeta) (*models.Event, error) {
	if err := s.machine.AuthorizeSubmit(s.kind, principal); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	event := &models.Event{AuthorID: principal.ID}
	applyEventRequest(event, req)
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	s.record(ctx, models.AuditActionContentSubmit, event.ID, principal, meta, nil, map[string]interface{}{"title": event.Title, "event_date": event.EventDate})
	return event, nil
}

// List returns events visible to principal.
func (s *EventService) List(ctx context.Context, filter models.ContentFilter, principal *models.Principal) ([]models.Event, *models.Pagination, error) {
	s.scope(&filter, principal)
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, contentPagination(filter, total), nil
}

// Get returns an event visible to principal.
func (s *EventService) Get(ctx context.Context, id string, principal *models.Principal) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if !s.visible(event.Status, principal) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event "+id+" not found")
	}
	return event, nil
}

// Update edits a pending event on behalf of its author.
func (s *EventService) Update(ctx context.Context, id string, req models.EventRequest, principal *models.Principal, meta models.RequestMeta) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if _, err := s.machine.AuthorizeEdit(s.kind, principal, event.AuthorID, event.Status == models.ApprovalPending); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	before := map[string]interface{}{"title": event.Title, "event_date": event.EventDate}
	applyEventRequest(event, req)
	if err := s.repo.UpdatePending(ctx, event); err != nil {
		return nil, s.editConflict(err)
	}

	s.record(ctx, models.AuditActionContentUpdate, event.ID, principal, meta, before, map[string]interface{}{"title": event.Title, "event_date": event.EventDate})
	return event, nil
}

// Review approves or rejects a pending event.
func (s *EventService) Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*models.Event, error) {
	if err := s.machine.AuthorizeReview(s.kind, principal); err != nil {
		return nil, err
	}
	if err := s.validate(decision); err != nil {
		return nil, err
	}
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	if err := s.review(ctx, id, event.Status, decision, principal, meta); err != nil {
		return nil, err
	}
	reviewed, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id)
	}
	return reviewed, nil
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error {
	return s.remove(ctx, id, principal, meta)
}

func applyEventRequest(event *models.Event, req models.EventRequest) {
	event.Title = req.Title
	event.Description = req.Description
	event.Location = req.Location
	event.EventDate = req.EventDate
}
