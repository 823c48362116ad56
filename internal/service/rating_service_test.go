package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/repository"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

func newRatingFixture(requireApproval bool) (*RatingService, *contentStoreStub, *auditLogStub, *statsStub, *MetricsService) {
	store := newContentStoreStub()
	audit := &auditLogStub{}
	stats := &statsStub{}
	metrics := NewMetricsService()
	svc := NewRatingService(store, testGuard(), audit, stats, metrics, nil, nil, requireApproval)
	return svc, store, audit, stats, metrics
}

func TestRateUpsertsOnePerUser(t *testing.T) {
	svc, store, audit, stats, metrics := newRatingFixture(true)
	store.put("p", models.ApprovalApproved)

	summary, err := svc.Rate(context.Background(), models.ContentProject, "p", models.RateRequest{Rating: 4}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalRatings)
	assert.Equal(t, 4.0, summary.AverageRating)
	assert.Equal(t, 1, summary.Version)

	summary, err = svc.Rate(context.Background(), models.ContentProject, "p", models.RateRequest{Rating: 2}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalRatings)
	assert.Equal(t, 2.0, summary.AverageRating)

	summary, err = svc.Rate(context.Background(), models.ContentProject, "p", models.RateRequest{Rating: 5}, paUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRatings)
	assert.Equal(t, 3.5, summary.AverageRating)
	assert.Equal(t, 3, store.states["p"].Version)

	assert.Len(t, audit.actions(), 3)
	assert.Equal(t, 3, stats.calls)
	assert.Equal(t, uint64(3), metrics.Snapshot().RatingsWritten)
}

func TestRateRejectsInvalidInput(t *testing.T) {
	svc, store, _, _, _ := newRatingFixture(true)
	store.put("p", models.ApprovalApproved)

	for _, value := range []int{0, 6, -1} {
		_, err := svc.Rate(context.Background(), models.ContentProject, "p", models.RateRequest{Rating: value}, citizenUser, models.RequestMeta{})
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}

	_, err := svc.Rate(context.Background(), models.ContentSchedule, "p", models.RateRequest{Rating: 3}, citizenUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Rate(context.Background(), models.ContentProject, "p", models.RateRequest{Rating: 3}, nil, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNoPrincipal.Code, appErrors.FromError(err).Code)

	_, err = svc.Rate(context.Background(), models.ContentProject, "missing", models.RateRequest{Rating: 3}, citizenUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Zero(t, store.states["p"].Version)
}

func TestRateRequiresApproval(t *testing.T) {
	svc, store, _, _, _ := newRatingFixture(true)
	store.put("p", models.ApprovalPending)
	_, err := svc.Rate(context.Background(), models.ContentEvent, "p", models.RateRequest{Rating: 3}, citizenUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	open, openStore, _, _, _ := newRatingFixture(false)
	openStore.put("p", models.ApprovalPending)
	summary, err := open.Rate(context.Background(), models.ContentEvent, "p", models.RateRequest{Rating: 3}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalRatings)
}

// racingStore bumps the version between the read and the write, as a concurrent rater would.
type racingStore struct {
	*contentStoreStub
	once sync.Once
}

func (s *racingStore) SaveRatings(ctx context.Context, params repository.SaveRatingsParams) error {
	s.once.Do(func() { s.states[params.ID].Version++ })
	return s.contentStoreStub.SaveRatings(ctx, params)
}

func TestRateStaleVersionIsConflict(t *testing.T) {
	store := &racingStore{contentStoreStub: newContentStoreStub()}
	store.put("p", models.ApprovalApproved)
	audit := &auditLogStub{}
	svc := NewRatingService(store, testGuard(), audit, nil, nil, nil, nil, true)

	_, err := svc.Rate(context.Background(), models.ContentScheme, "p", models.RateRequest{Rating: 5}, citizenUser, models.RequestMeta{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStaleVersion))
	assert.Empty(t, store.states["p"].Ratings)
	assert.Empty(t, audit.actions())

	summary, err := svc.Rate(context.Background(), models.ContentScheme, "p", models.RateRequest{Rating: 5}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Version)
}

func TestRateStoreFailure(t *testing.T) {
	svc, store, _, _, _ := newRatingFixture(true)
	store.put("p", models.ApprovalApproved)
	store.saveErr = errors.New("db down")
	_, err := svc.Rate(context.Background(), models.ContentProject, "p", models.RateRequest{Rating: 3}, citizenUser, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestApprovedProjectCollectsFirstRating(t *testing.T) {
	f := newProjectFixture()
	f.repo.seed(models.Project{ID: "p", FundsAllocated: 5_000_000, FundsUtilized: 0, ReviewState: models.ReviewState{Status: models.ApprovalPending}})
	ratings := NewRatingService(f.store, testGuard(), f.audit, f.stats, nil, nil, nil, true)

	project, err := f.svc.Review(context.Background(), "p", models.ReviewDecision{Status: "approved"}, adminUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, project.Status)
	assert.Equal(t, 5_000_000.0, project.FundsAllocated)

	summary, err := ratings.Rate(context.Background(), models.ContentProject, "p", models.RateRequest{Rating: 4}, citizenUser, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, summary.AverageRating)
	assert.Equal(t, 1, summary.TotalRatings)
	assert.Equal(t, 4.0, f.store.states["p"].AverageRating)
	assert.Equal(t, 1, f.store.states["p"].TotalRatings)
}
