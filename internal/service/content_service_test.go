package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/repository"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

var (
	adminUser   = &models.Principal{ID: "admin-1", Role: models.RoleAdmin, UserType: models.UserTypeStaff}
	mlaUser     = &models.Principal{ID: "mla-1", Role: models.RoleMLA, UserType: models.UserTypeStaff}
	paUser      = &models.Principal{ID: "pa-1", Role: models.RolePA, UserType: models.UserTypeStaff}
	otherPAUser = &models.Principal{ID: "pa-2", Role: models.RolePA, UserType: models.UserTypeStaff}
	citizenUser = &models.Principal{ID: "citizen-1", Role: models.RolePublic, UserType: models.UserTypeCitizen}
)

func testGuard() *authz.Guard {
	return authz.NewGuard(authz.DefaultTable())
}

type statsStub struct {
	calls int
}

func (s *statsStub) InvalidateStats(ctx context.Context) {
	s.calls++
}

// contentStoreStub keeps status and rating state per item and applies the same guards as the SQL.
type contentStoreStub struct {
	states  map[string]*models.RatingState
	reviews []repository.ReviewParams
	deleted []string
	saveErr error
}

func newContentStoreStub() *contentStoreStub {
	return &contentStoreStub{states: map[string]*models.RatingState{}}
}

func (s *contentStoreStub) put(id string, status models.ApprovalStatus) {
	s.states[id] = &models.RatingState{ID: id, Status: status}
}

func (s *contentStoreStub) Review(ctx context.Context, params repository.ReviewParams) error {
	state, ok := s.states[params.ID]
	if !ok || state.Status != params.From {
		return sql.ErrNoRows
	}
	state.Status = params.Status
	s.reviews = append(s.reviews, params)
	return nil
}

func (s *contentStoreStub) GetRatingState(ctx context.Context, kind models.ContentKind, id string) (*models.RatingState, error) {
	state, ok := s.states[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *state
	return &copied, nil
}

func (s *contentStoreStub) SaveRatings(ctx context.Context, params repository.SaveRatingsParams) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	state, ok := s.states[params.ID]
	if !ok || state.Version != params.ExpectedVersion {
		return sql.ErrNoRows
	}
	state.Ratings = params.Ratings
	state.AverageRating = params.AverageRating
	state.TotalRatings = params.TotalRatings
	state.Version++
	return nil
}

func (s *contentStoreStub) Delete(ctx context.Context, kind models.ContentKind, id string) error {
	if _, ok := s.states[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.states, id)
	s.deleted = append(s.deleted, id)
	return nil
}

// projectRepoStub shares the status map of a contentStoreStub so reviews are visible on reload.
type projectRepoStub struct {
	store    *contentStoreStub
	projects map[string]*models.Project
	filters  []models.ContentFilter
	updates  []bool
}

func newProjectRepoStub(store *contentStoreStub) *projectRepoStub {
	return &projectRepoStub{store: store, projects: map[string]*models.Project{}}
}

func (r *projectRepoStub) seed(p models.Project) {
	r.projects[p.ID] = &p
	r.store.put(p.ID, p.Status)
}

func (r *projectRepoStub) Create(ctx context.Context, project *models.Project) error {
	project.ID = "project-new"
	project.Status = models.ApprovalPending
	r.seed(*project)
	return nil
}

func (r *projectRepoStub) FindByID(ctx context.Context, id string) (*models.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	if state, ok := r.store.states[id]; ok {
		copied.Status = state.Status
	}
	return &copied, nil
}

func (r *projectRepoStub) List(ctx context.Context, filter models.ContentFilter) ([]models.Project, int, error) {
	r.filters = append(r.filters, filter)
	var out []models.Project
	for _, p := range r.projects {
		if filter.Status == nil || p.Status == *filter.Status {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

func (r *projectRepoStub) Update(ctx context.Context, project *models.Project, onlyPending bool) error {
	r.updates = append(r.updates, onlyPending)
	current, ok := r.projects[project.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if onlyPending && current.Status != models.ApprovalPending {
		return sql.ErrNoRows
	}
	copied := *project
	r.projects[project.ID] = &copied
	return nil
}

type projectFixture struct {
	svc   *ProjectService
	repo  *projectRepoStub
	store *contentStoreStub
	audit *auditLogStub
	stats *statsStub
}

func newProjectFixture() projectFixture {
	store := newContentStoreStub()
	repo := newProjectRepoStub(store)
	audit := &auditLogStub{}
	stats := &statsStub{}
	svc := NewProjectService(repo, ContentDeps{
		Store:   store,
		Machine: workflow.NewMachine(testGuard()),
		Audit:   audit,
		Stats:   stats,
	})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return projectFixture{svc: svc, repo: repo, store: store, audit: audit, stats: stats}
}

func validProjectRequest() models.ProjectRequest {
	return models.ProjectRequest{Title: "Bridge repair", Description: "Replace deck", FundsAllocated: 500, FundsUtilized: 100}
}

func TestProjectSubmitByPA(t *testing.T) {
	f := newProjectFixture()
	project, err := f.svc.Submit(context.Background(), validProjectRequest(), paUser, models.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, project.Status)
	assert.Equal(t, paUser.ID, project.AuthorID)
	assert.Equal(t, []string{models.AuditActionContentSubmit}, f.audit.actions())
	assert.Equal(t, 0, f.stats.calls)
}

func TestProjectSubmitDeniedAndValidated(t *testing.T) {
	f := newProjectFixture()
	_, err := f.svc.Submit(context.Background(), validProjectRequest(), citizenUser, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Submit(context.Background(), validProjectRequest(), adminUser, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)

	bad := validProjectRequest()
	bad.FundsUtilized = 900
	_, err = f.svc.Submit(context.Background(), bad, paUser, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.projects)
}

func TestProjectListScopesPublicToApproved(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "a", ReviewState: models.ReviewState{Status: models.ApprovalApproved}})
	f.repo.seed(models.Project{ID: "p", ReviewState: models.ReviewState{Status: models.ApprovalPending}})

	items, page, err := f.svc.List(context.Background(), models.ContentFilter{}, citizenUser)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 1, page.TotalCount)

	items, _, err = f.svc.List(context.Background(), models.ContentFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, _, err = f.svc.List(context.Background(), models.ContentFilter{}, mlaUser)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestProjectGetHidesUnapproved(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "p", ReviewState: models.ReviewState{Status: models.ApprovalRejected}})

	_, err := f.svc.Get(context.Background(), "p", citizenUser)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	project, err := f.svc.Get(context.Background(), "p", paUser)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, project.Status)

	_, err = f.svc.Get(context.Background(), "missing", adminUser)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProjectUpdateRules(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "pending", AuthorID: paUser.ID, ReviewState: models.ReviewState{Status: models.ApprovalPending}})
	f.repo.seed(models.Project{ID: "approved", AuthorID: paUser.ID, ReviewState: models.ReviewState{Status: models.ApprovalApproved}})

	updated, err := f.svc.Update(context.Background(), "pending", validProjectRequest(), paUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Bridge repair", updated.Title)
	assert.Equal(t, []bool{true}, f.repo.updates)

	_, err = f.svc.Update(context.Background(), "pending", validProjectRequest(), otherPAUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Update(context.Background(), "approved", validProjectRequest(), paUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotEditable.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Update(context.Background(), "approved", validProjectRequest(), adminUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, f.repo.updates)
	assert.Equal(t, 1, f.stats.calls)
}

func TestProjectUpdateLosesRaceWithReview(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "p", AuthorID: paUser.ID, ReviewState: models.ReviewState{Status: models.ApprovalPending}})
	// The review lands after the service loaded the row but before the guarded update.
	f.repo.projects["p"].Status = models.ApprovalApproved
	f.store.states["p"].Status = models.ApprovalPending

	_, err := f.svc.Update(context.Background(), "p", validProjectRequest(), paUser, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEditable.Code, appErrors.FromError(err).Code)
}

func TestProjectReviewByAdmin(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "p", ReviewState: models.ReviewState{Status: models.ApprovalPending}})
	remarks := "looks good"

	project, err := f.svc.Review(context.Background(), "p", models.ReviewDecision{Status: "Approved", Remarks: &remarks}, adminUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, project.Status)
	require.Len(t, f.store.reviews, 1)
	assert.Equal(t, adminUser.ID, f.store.reviews[0].ApproverID)
	assert.Equal(t, models.ApprovalPending, f.store.reviews[0].From)
	assert.Equal(t, []string{models.AuditActionContentReview}, f.audit.actions())
	assert.Equal(t, 1, f.stats.calls)

	_, err = f.svc.Review(context.Background(), "p", models.ReviewDecision{Status: "rejected"}, adminUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestProjectReviewDenials(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "p", ReviewState: models.ReviewState{Status: models.ApprovalPending}})

	for _, p := range []*models.Principal{paUser, mlaUser, citizenUser} {
		_, err := f.svc.Review(context.Background(), "p", models.ReviewDecision{Status: "approved"}, p, models.RequestMeta{})
		assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)
	}
	_, err := f.svc.Review(context.Background(), "p", models.ReviewDecision{Status: "pending"}, adminUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Review(context.Background(), "p", models.ReviewDecision{}, adminUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.store.reviews)
}

func TestProjectReviewConcurrentDecisionIsRejected(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "p", ReviewState: models.ReviewState{Status: models.ApprovalPending}})
	// Another admin already decided; the stub store no longer holds the row in pending.
	f.store.states["p"].Status = models.ApprovalRejected
	f.repo.store = newContentStoreStub()
	f.repo.store.put("p", models.ApprovalPending)

	_, err := f.svc.Review(context.Background(), "p", models.ReviewDecision{Status: "approved"}, adminUser, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, f.stats.calls)
}

func TestProjectDelete(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "p", ReviewState: models.ReviewState{Status: models.ApprovalApproved}})

	err := f.svc.Delete(context.Background(), "p", paUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInsufficientRole.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Delete(context.Background(), "p", adminUser, models.RequestMeta{}))
	assert.Equal(t, []string{"p"}, f.store.deleted)
	assert.Equal(t, []string{models.AuditActionContentDelete}, f.audit.actions())
	assert.Equal(t, 1, f.stats.calls)

	err = f.svc.Delete(context.Background(), "p", adminUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
