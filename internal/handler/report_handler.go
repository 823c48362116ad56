package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/dto"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/service"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type reportService interface {
	CreateJob(ctx context.Context, req dto.ReportRequest, principal *models.Principal) (*dto.ReportJobView, error)
	GetStatus(ctx context.Context, id string, principal *models.Principal) (*dto.ReportJobView, error)
	ResolveDownload(ctx context.Context, token string, meta models.RequestMeta) (*service.ReportDownload, error)
}

// ReportHandler exposes asynchronous export endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Generate godoc
// @Summary Queue report export
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+job.ID, job)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download finished export via signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	result, err := h.service.ResolveDownload(c.Request.Context(), token, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	var size int64 = -1
	if info, statErr := result.File.Stat(); statErr == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, contentTypeFor(result.Format), result.File, nil)
}

func contentTypeFor(format models.ReportFormat) string {
	if format == models.ReportFormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}
