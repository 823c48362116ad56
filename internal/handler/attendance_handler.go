package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type attendanceService interface {
	RecordDay(ctx context.Context, req models.RecordDayRequest, principal *models.Principal, meta models.RequestMeta) (*models.AttendanceDay, error)
	VerifyDay(ctx context.Context, id string, req models.VerifyDayRequest, principal *models.Principal, meta models.RequestMeta) (*models.AttendanceDay, error)
	GetRecord(ctx context.Context, season, mlaID string, principal *models.Principal) (*models.AttendanceRecord, error)
	ListRecords(ctx context.Context, filter models.AttendanceFilter, principal *models.Principal) ([]models.AttendanceRecord, *models.Pagination, error)
	PublicPercentage(ctx context.Context) (*models.AttendancePercentage, error)
	MLAPercentage(ctx context.Context, mlaID string, season *string) (*models.AttendancePercentage, error)
}

// AttendanceHandler exposes the MLA attendance ledger.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// RecordDay godoc
// @Summary Record attendance day
// @Description Appends a day to the season ledger. A date may appear once per record.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.RecordDayRequest true "Day"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/days [post]
func (h *AttendanceHandler) RecordDay(c *gin.Context) {
	var req models.RecordDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	day, err := h.service.RecordDay(c.Request.Context(), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, day)
}

// VerifyDay godoc
// @Summary Verify attendance day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Day ID"
// @Param payload body models.VerifyDayRequest true "Verification"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/days/{id}/verify [patch]
func (h *AttendanceHandler) VerifyDay(c *gin.Context) {
	var req models.VerifyDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	day, err := h.service.VerifyDay(c.Request.Context(), c.Param("id"), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param season query string false "Season"
// @Param mla_id query string false "MLA ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{Season: c.Query("season"), MLAID: c.Query("mla_id")}
	filter.Page, filter.PageSize = pageParams(c)

	records, pagination, err := h.service.ListRecords(c.Request.Context(), filter, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get season record
// @Tags Attendance
// @Produce json
// @Param season path string true "Season"
// @Param mlaId path string true "MLA ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{season}/{mlaId} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	record, err := h.service.GetRecord(c.Request.Context(), c.Param("season"), c.Param("mlaId"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// PublicPercentage godoc
// @Summary Overall attendance percentage
// @Description Verified days over all recorded days.
// @Tags Public
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/attendance/percentage [get]
func (h *AttendanceHandler) PublicPercentage(c *gin.Context) {
	pct, err := h.service.PublicPercentage(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pct, nil)
}

// MLAPercentage godoc
// @Summary MLA attendance percentage
// @Tags Public
// @Produce json
// @Param mlaId path string true "MLA ID"
// @Param season query string false "Season"
// @Success 200 {object} response.Envelope
// @Router /public/attendance/mlas/{mlaId}/percentage [get]
func (h *AttendanceHandler) MLAPercentage(c *gin.Context) {
	var season *string
	if raw := c.Query("season"); raw != "" {
		season = &raw
	}

	pct, err := h.service.MLAPercentage(c.Request.Context(), c.Param("mlaId"), season)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pct, nil)
}
