package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

// RatingService stores one rating per user per item and keeps the aggregate in step.
type RatingService struct {
	store           contentStore
	guard           *authz.Guard
	audit           auditLogger
	stats           statsInvalidator
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	requireApproval bool
}

// NewRatingService constructs a RatingService. When requireApproval is set only approved items accept ratings.
func NewRatingService(store contentStore, guard *authz.Guard, audit auditLogger, stats statsInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, requireApproval bool) *RatingService {
	if guard == nil {
		guard = authz.NewGuard(nil)
	}
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{store: store, guard: guard, audit: audit, stats: stats, metrics: metrics, validator: validate, logger: logger, requireApproval: requireApproval}
}

// Rate records principal's rating for an item and returns the refreshed aggregate.
// A concurrent write to the same item surfaces as a conflict; callers retry.
func (s *RatingService) Rate(ctx context.Context, kind models.ContentKind, id string, req models.RateRequest, principal *models.Principal, meta models.RequestMeta) (*models.RatingSummary, error) {
	if err := s.guard.Authorize(principal, authz.WriteRating); err != nil {
		return nil, err
	}
	if !kind.Rated() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s items cannot be rated", kind))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("rating must be between %d and %d", workflow.MinRating, workflow.MaxRating))
	}

	state, err := s.store.GetRatingState(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", kind, id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ratings")
	}
	if s.requireApproval && state.Status != models.ApprovalApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s %s is not open for rating", kind, id))
	}

	ratings := workflow.UpsertRating(state.Ratings, principal.ID, req.Rating, req.Comment, time.Now().UTC())
	average, total := workflow.Summarize(ratings)
	err = s.store.SaveRatings(ctx, repository.SaveRatingsParams{
		Kind:            kind,
		ID:              id,
		Ratings:         ratings,
		AverageRating:   average,
		TotalRatings:    total,
		ExpectedVersion: state.Version,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordRating(kind, "conflict")
			return nil, appErrors.ErrStaleVersion
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rating")
	}

	s.metrics.RecordRating(kind, "stored")
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &principal.ID,
		Action:     models.AuditActionRate,
		Resource:   string(kind),
		ResourceID: &id,
		NewValues:  auditPayload(map[string]interface{}{"rating": req.Rating}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	if s.stats != nil {
		s.stats.InvalidateStats(ctx)
	}

	return &models.RatingSummary{
		Ratings:       ratings,
		AverageRating: average,
		TotalRatings:  total,
		Version:       state.Version + 1,
	}, nil
}
