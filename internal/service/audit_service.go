package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditRepository interface {
	auditLogger
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// List returns audit entries newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return logs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// recordAudit writes entry if an audit sink is configured. Failures are logged and swallowed.
func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, entry *models.AuditLog) {
	if audit == nil {
		return
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.String("resource", entry.Resource), zap.Error(err))
	}
}

func auditPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func pageBounds(page, pageSize int) (int, int) {
	return models.NormalizePage(page, pageSize)
}
