package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type schemeRepoStub struct {
	store   *contentStoreStub
	schemes map[string]*models.Scheme
}

func (r *schemeRepoStub) Create(ctx context.Context, scheme *models.Scheme) error {
	scheme.ID = "scheme-new"
	scheme.Status = models.ApprovalPending
	copied := *scheme
	r.schemes[scheme.ID] = &copied
	r.store.put(scheme.ID, scheme.Status)
	return nil
}

func (r *schemeRepoStub) FindByID(ctx context.Context, id string) (*models.Scheme, error) {
	s, ok := r.schemes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	copied.Status = r.store.states[id].Status
	return &copied, nil
}

func (r *schemeRepoStub) List(ctx context.Context, filter models.ContentFilter) ([]models.Scheme, int, error) {
	var out []models.Scheme
	for id, s := range r.schemes {
		if filter.Status == nil || r.store.states[id].Status == *filter.Status {
			out = append(out, *s)
		}
	}
	return out, len(out), nil
}

func (r *schemeRepoStub) UpdatePending(ctx context.Context, scheme *models.Scheme) error {
	if r.store.states[scheme.ID].Status != models.ApprovalPending {
		return sql.ErrNoRows
	}
	copied := *scheme
	r.schemes[scheme.ID] = &copied
	return nil
}

type eventRepoStub struct {
	store  *contentStoreStub
	events map[string]*models.Event
}

func (r *eventRepoStub) Create(ctx context.Context, event *models.Event) error {
	event.ID = "event-new"
	event.Status = models.ApprovalPending
	copied := *event
	r.events[event.ID] = &copied
	r.store.put(event.ID, event.Status)
	return nil
}

func (r *eventRepoStub) FindByID(ctx context.Context, id string) (*models.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *e
	copied.Status = r.store.states[id].Status
	return &copied, nil
}

func (r *eventRepoStub) List(ctx context.Context, filter models.ContentFilter) ([]models.Event, int, error) {
	var out []models.Event
	for id, e := range r.events {
		if filter.Status == nil || r.store.states[id].Status == *filter.Status {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (r *eventRepoStub) UpdatePending(ctx context.Context, event *models.Event) error {
	if r.store.states[event.ID].Status != models.ApprovalPending {
		return sql.ErrNoRows
	}
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func contentDepsFor(store *contentStoreStub, audit *auditLogStub, stats *statsStub) ContentDeps {
	return ContentDeps{Store: store, Machine: workflow.NewMachine(testGuard()), Audit: audit, Stats: stats}
}

func TestSchemeLifecycle(t *testing.T) {
	store := newContentStoreStub()
	repo := &schemeRepoStub{store: store, schemes: map[string]*models.Scheme{}}
	audit := &auditLogStub{}
	svc := NewSchemeService(repo, contentDepsFor(store, audit, &statsStub{}))
	req := models.SchemeRequest{Title: "Scholarships", Description: "Merit awards", Budget: 10000}

	scheme, err := svc.Submit(context.Background(), req, paUser, models.RequestMeta{})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), scheme.ID, citizenUser)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	req.Budget = 12000
	updated, err := svc.Update(context.Background(), scheme.ID, req, paUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 12000.0, updated.Budget)

	// Admins review schemes but never edit them.
	_, err = svc.Update(context.Background(), scheme.ID, req, adminUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)

	reviewed, err := svc.Review(context.Background(), scheme.ID, models.ReviewDecision{Status: "approved"}, adminUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, reviewed.Status)

	_, err = svc.Update(context.Background(), scheme.ID, req, paUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotEditable.Code, appErrors.FromError(err).Code)

	visible, err := svc.Get(context.Background(), scheme.ID, citizenUser)
	require.NoError(t, err)
	assert.Equal(t, "Scholarships", visible.Title)

	items, _, err := svc.List(context.Background(), models.ContentFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.Equal(t, []string{models.AuditActionContentSubmit, models.AuditActionContentUpdate, models.AuditActionContentReview}, audit.actions())
}

func TestEventLifecycle(t *testing.T) {
	store := newContentStoreStub()
	repo := &eventRepoStub{store: store, events: map[string]*models.Event{}}
	stats := &statsStub{}
	svc := NewEventService(repo, contentDepsFor(store, &auditLogStub{}, stats))
	req := models.EventRequest{Title: "Town hall", Description: "Budget Q&A", Location: "Community centre", EventDate: time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)}

	_, err := svc.Submit(context.Background(), models.EventRequest{Title: "x"}, paUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	event, err := svc.Submit(context.Background(), req, paUser, models.RequestMeta{})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), event.ID, req, otherPAUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	rejected, err := svc.Review(context.Background(), event.ID, models.ReviewDecision{Status: "rejected"}, adminUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, rejected.Status)
	assert.Equal(t, 1, stats.calls)

	_, err = svc.Review(context.Background(), event.ID, models.ReviewDecision{Status: "approved"}, adminUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	items, _, err := svc.List(context.Background(), models.ContentFilter{}, citizenUser)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, svc.Delete(context.Background(), event.ID, adminUser, models.RequestMeta{}))
	assert.Equal(t, 2, stats.calls)
}
