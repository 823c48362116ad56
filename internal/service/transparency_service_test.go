package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type transparencySourceStub struct {
	totals     models.ProjectTotals
	content    map[models.ContentKind][]models.StatusCount
	complaints []models.StatusCount
	attendance models.AttendanceCounts
	calls      int
	err        error
}

func (s *transparencySourceStub) ApprovedTotals(ctx context.Context) (*models.ProjectTotals, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	totals := s.totals
	return &totals, nil
}

func (s *transparencySourceStub) CountByStatus(ctx context.Context, kind models.ContentKind) ([]models.StatusCount, error) {
	return s.content[kind], nil
}

func (s *transparencySourceStub) CountAll(ctx context.Context) (*models.AttendanceCounts, error) {
	counts := s.attendance
	return &counts, nil
}

type complaintCountStub struct {
	rows []models.StatusCount
}

func (s complaintCountStub) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	return s.rows, nil
}

func newTransparencySource() *transparencySourceStub {
	return &transparencySourceStub{
		totals: models.ProjectTotals{Count: 2, FundsAllocated: 1500, FundsUtilized: 600},
		content: map[models.ContentKind][]models.StatusCount{
			models.ContentScheme: {{Status: "approved", Count: 3}, {Status: "pending", Count: 1}},
			models.ContentEvent:  {{Status: "rejected", Count: 4}},
		},
		attendance: models.AttendanceCounts{Verified: 3, Total: 4},
	}
}

func TestTransparencySummaryBuildsFigures(t *testing.T) {
	src := newTransparencySource()
	complaints := complaintCountStub{rows: []models.StatusCount{{Status: "Resolved", Count: 5}}}
	svc := NewTransparencyService(src, src, complaints, src, nil, nil, time.Minute, zap.NewNop())

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, summary.ApprovedProjects)
	assert.Equal(t, 1500.0, summary.FundsAllocated)
	assert.Equal(t, 3, summary.ApprovedSchemes)
	assert.Equal(t, 0, summary.ApprovedEvents)
	assert.Equal(t, 5, summary.ComplaintsByState[models.ComplaintResolved])
	assert.Equal(t, 0, summary.ComplaintsByState[models.ComplaintSubmitted])
	assert.Contains(t, summary.ComplaintsByState, models.ComplaintInProgress)
	assert.Equal(t, 75.0, summary.Attendance.Percentage)
}

func TestTransparencySummaryUsesCacheUntilInvalidated(t *testing.T) {
	src := newTransparencySource()
	repo := newMemoryCache()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc := NewTransparencyService(src, src, complaintCountStub{}, src, cache, nil, time.Minute, zap.NewNop())

	_, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	_, cached, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, src.calls)
	assert.Contains(t, repo.entries, StatsKey("summary"))

	cache.InvalidateStats(context.Background())
	src.totals.Count = 3
	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 3, summary.ApprovedProjects)
}

func TestTransparencySummaryError(t *testing.T) {
	src := newTransparencySource()
	src.err = errors.New("db down")
	svc := NewTransparencyService(src, src, complaintCountStub{}, src, nil, nil, time.Minute, nil)
	_, _, err := svc.Summary(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTransparencySummaryTimesEachQuery(t *testing.T) {
	src := newTransparencySource()
	metrics := NewMetricsService()
	svc := NewTransparencyService(src, src, complaintCountStub{}, src, nil, metrics, time.Minute, nil)

	_, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	// project totals, schemes, events, complaints, attendance
	assert.Equal(t, uint64(5), metrics.Snapshot().DBQueryCount)
}
