package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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

type contentStore interface {
	Review(ctx context.Context, params repository.ReviewParams) error
	GetRatingState(ctx context.Context, kind models.ContentKind, id string) (*models.RatingState, error)
	SaveRatings(ctx context.Context, params repository.SaveRatingsParams) error
	Delete(ctx context.Context, kind models.ContentKind, id string) error
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context)
}

// ContentDeps bundles the collaborators shared by the approvable content services.
type ContentDeps struct {
	Store     contentStore
	Machine   *workflow.Machine
	Audit     auditLogger
	Stats     statsInvalidator
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// contentCore implements review, delete and visibility rules once for every approvable kind.
type contentCore struct {
	kind      models.ContentKind
	store     contentStore
	machine   *workflow.Machine
	audit     auditLogger
	stats     statsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func newContentCore(kind models.ContentKind, deps ContentDeps) contentCore {
	if deps.Machine == nil {
		deps.Machine = workflow.NewMachine(nil)
	}
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return contentCore{
		kind:      kind,
		store:     deps.Store,
		machine:   deps.Machine,
		audit:     deps.Audit,
		stats:     deps.Stats,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *contentCore) readsAll(principal *models.Principal) bool {
	return c.machine.Guard().Can(principal, authz.ReadAllContent)
}

// scope narrows a listing to approved items for callers without ReadAllContent.
func (c *contentCore) scope(filter *models.ContentFilter, principal *models.Principal) {
	if c.readsAll(principal) {
		return
	}
	approved := models.ApprovalApproved
	filter.Status = &approved
}

func (c *contentCore) visible(status models.ApprovalStatus, principal *models.Principal) bool {
	return status == models.ApprovalApproved || c.readsAll(principal)
}

func (c *contentCore) validate(payload interface{}) error {
	if err := c.validator.Struct(payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid %s payload", c.kind))
	}
	return nil
}

func (c *contentCore) notFound(err error, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", c.kind, id))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", c.kind))
}

func (c *contentCore) invalidate(ctx context.Context) {
	if c.stats != nil {
		c.stats.InvalidateStats(ctx)
	}
}

func (c *contentCore) record(ctx context.Context, action, id string, principal *models.Principal, meta models.RequestMeta, oldValues, newValues interface{}) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   string(c.kind),
		ResourceID: &id,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if principal != nil {
		actor := principal.ID
		entry.UserID = &actor
	}
	if oldValues != nil {
		entry.OldValues = auditPayload(oldValues)
	}
	if newValues != nil {
		entry.NewValues = auditPayload(newValues)
	}
	recordAudit(ctx, c.audit, c.logger, entry)
}

// review applies decision to an item currently in from.
func (c *contentCore) review(ctx context.Context, id string, from models.ApprovalStatus, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) error {
	to := models.ApprovalStatus(strings.ToLower(strings.TrimSpace(decision.Status)))
	if err := c.machine.Transition(c.kind, string(from), string(to), principal); err != nil {
		return err
	}

	err := c.store.Review(ctx, repository.ReviewParams{
		Kind:       c.kind,
		ID:         id,
		From:       from,
		Status:     to,
		Remarks:    decision.Remarks,
		ApproverID: principal.ID,
		ApprovedAt: c.now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s %s is no longer %s", c.kind, id, from))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to review %s", c.kind))
	}

	c.metrics.RecordTransition(c.kind, string(to))
	c.record(ctx, models.AuditActionContentReview, id, principal, meta,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": to, "remarks": decision.Remarks})
	c.invalidate(ctx)
	c.logger.Info("content reviewed", zap.String("kind", string(c.kind)), zap.String("id", id), zap.String("status", string(to)), zap.String("actor", principal.ID))
	return nil
}

func (c *contentCore) remove(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error {
	if err := c.machine.Guard().Authorize(principal, authz.DeleteContent); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, c.kind, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", c.kind, id))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to delete %s", c.kind))
	}
	c.record(ctx, models.AuditActionContentDelete, id, principal, meta, nil, nil)
	c.invalidate(ctx)
	return nil
}

// editConflict maps a guarded update that matched no row.
func (c *contentCore) editConflict(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotEditable, fmt.Sprintf("%s is no longer pending", c.kind))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to update %s", c.kind))
}

func contentPagination(filter models.ContentFilter, total int) *models.Pagination {
	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
