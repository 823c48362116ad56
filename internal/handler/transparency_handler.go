package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/middleware"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type transparencyService interface {
	Summary(ctx context.Context) (*models.TransparencySummary, bool, error)
}

// TransparencyHandler serves the public district overview.
type TransparencyHandler struct {
	service transparencyService
}

// NewTransparencyHandler constructs the handler.
func NewTransparencyHandler(svc transparencyService) *TransparencyHandler {
	return &TransparencyHandler{service: svc}
}

// Summary godoc
// @Summary Public transparency summary
// @Description Approved project funding, approved scheme and event counts, complaints by status and attendance.
// @Tags Public
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/summary [get]
func (h *TransparencyHandler) Summary(c *gin.Context) {
	summary, cached, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
