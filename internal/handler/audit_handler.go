package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Param user_id query string false "Actor user ID"
// @Param action query string false "Action"
// @Param resource query string false "Resource"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	logs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
