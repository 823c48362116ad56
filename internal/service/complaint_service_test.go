package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type complaintRepoStub struct {
	items   map[string]*models.Complaint
	filters []models.ComplaintFilter
	seq     int
}

func newComplaintRepoStub() *complaintRepoStub {
	return &complaintRepoStub{items: map[string]*models.Complaint{}}
}

func (r *complaintRepoStub) Create(ctx context.Context, complaint *models.Complaint) error {
	r.seq++
	complaint.ID = fmt.Sprintf("complaint-%d", r.seq)
	copied := *complaint
	r.items[complaint.ID] = &copied
	return nil
}

func (r *complaintRepoStub) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	c, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (r *complaintRepoStub) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	r.filters = append(r.filters, filter)
	var out []models.Complaint
	for _, c := range r.items {
		if filter.UserID == "" || c.UserID == filter.UserID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (r *complaintRepoStub) Update(ctx context.Context, complaint *models.Complaint) error {
	if _, ok := r.items[complaint.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *complaint
	r.items[complaint.ID] = &copied
	return nil
}

func newComplaintFixture(defaultPriority string) (*ComplaintService, *complaintRepoStub, *auditLogStub, *statsStub) {
	repo := newComplaintRepoStub()
	audit := &auditLogStub{}
	stats := &statsStub{}
	svc := NewComplaintService(repo, testGuard(), audit, stats, NewMetricsService(), nil, nil, defaultPriority)
	return svc, repo, audit, stats
}

func TestComplaintCreateByCitizen(t *testing.T) {
	svc, _, audit, stats := newComplaintFixture("")
	complaint, err := svc.Create(context.Background(), models.CreateComplaintRequest{Title: "Pothole", Description: "Main road"}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintSubmitted, complaint.Status)
	assert.Equal(t, models.PriorityMedium, complaint.Priority)
	assert.Equal(t, citizenUser.ID, complaint.UserID)
	assert.Nil(t, complaint.AssignedTo)
	assert.Equal(t, []string{models.AuditActionComplaintCreate}, audit.actions())
	assert.Equal(t, 1, stats.calls)
}

func TestComplaintCreateDefaultsAndDenials(t *testing.T) {
	svc, _, _, _ := newComplaintFixture("HIGH")
	complaint, err := svc.Create(context.Background(), models.CreateComplaintRequest{Title: "Flooding", Description: "Drain blocked"}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, complaint.Priority)

	complaint, err = svc.Create(context.Background(), models.CreateComplaintRequest{Title: "Noise", Description: "Late night", Priority: models.PriorityLow}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, complaint.Priority)

	_, err = svc.Create(context.Background(), models.CreateComplaintRequest{Title: "x", Description: "y", Priority: "urgent"}, citizenUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	for _, p := range []*models.Principal{adminUser, paUser, mlaUser} {
		_, err = svc.Create(context.Background(), models.CreateComplaintRequest{Title: "x", Description: "y"}, p, models.RequestMeta{})
		assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)
	}

	fallback, _, _, _ := newComplaintFixture("bogus")
	assert.Equal(t, models.PriorityMedium, fallback.defaultPriority)
}

func TestComplaintReadScopes(t *testing.T) {
	svc, repo, _, _ := newComplaintFixture("")
	mine, err := svc.Create(context.Background(), models.CreateComplaintRequest{Title: "Mine", Description: "d"}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	other := &models.Principal{ID: "citizen-2", Role: models.RolePublic}
	theirs, err := svc.Create(context.Background(), models.CreateComplaintRequest{Title: "Theirs", Description: "d"}, other, models.RequestMeta{})
	require.NoError(t, err)

	items, _, err := svc.ListOwn(context.Background(), models.ComplaintFilter{UserID: other.ID}, citizenUser)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)
	assert.Equal(t, citizenUser.ID, repo.filters[0].UserID)

	_, err = svc.Get(context.Background(), theirs.ID, citizenUser)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	_, err = svc.Get(context.Background(), mine.ID, citizenUser)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), theirs.ID, paUser)
	require.NoError(t, err)

	_, _, err = svc.ListAll(context.Background(), models.ComplaintFilter{}, citizenUser)
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)
	items, _, err = svc.ListAll(context.Background(), models.ComplaintFilter{}, adminUser)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, _, err = svc.ListOwn(context.Background(), models.ComplaintFilter{}, paUser)
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)
}

func TestComplaintUpdateAssignsPA(t *testing.T) {
	svc, _, audit, _ := newComplaintFixture("")
	complaint, err := svc.Create(context.Background(), models.CreateComplaintRequest{Title: "Pothole", Description: "d"}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)

	inProgress := models.ComplaintInProgress
	updated, err := svc.Update(context.Background(), complaint.ID, models.UpdateComplaintRequest{Status: &inProgress}, paUser, models.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, paUser.ID, *updated.AssignedTo)

	resolved := models.ComplaintResolved
	response := "Patched"
	updated, err = svc.Update(context.Background(), complaint.ID, models.UpdateComplaintRequest{Status: &resolved, AdminResponse: &response}, adminUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, paUser.ID, *updated.AssignedTo)
	assert.Equal(t, models.ComplaintResolved, updated.Status)

	// Status is permissive: a resolved complaint may be reopened.
	submitted := models.ComplaintSubmitted
	updated, err = svc.Update(context.Background(), complaint.ID, models.UpdateComplaintRequest{Status: &submitted}, otherPAUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintSubmitted, updated.Status)
	assert.Equal(t, otherPAUser.ID, *updated.AssignedTo)

	assert.Len(t, audit.actions(), 4)
}

func TestComplaintUpdateDenialsAndValidation(t *testing.T) {
	svc, _, _, _ := newComplaintFixture("")
	complaint, err := svc.Create(context.Background(), models.CreateComplaintRequest{Title: "Pothole", Description: "d"}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)

	resolved := models.ComplaintResolved
	_, err = svc.Update(context.Background(), complaint.ID, models.UpdateComplaintRequest{Status: &resolved}, citizenUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)
	_, err = svc.Update(context.Background(), complaint.ID, models.UpdateComplaintRequest{Status: &resolved}, mlaUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)

	bogus := models.ComplaintStatus("Closed")
	_, err = svc.Update(context.Background(), complaint.ID, models.UpdateComplaintRequest{Status: &bogus}, paUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "missing", models.UpdateComplaintRequest{Status: &resolved}, paUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
