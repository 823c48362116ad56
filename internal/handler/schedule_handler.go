package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type scheduleService interface {
	Submit(ctx context.Context, req models.ScheduleRequest, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter, principal *models.Principal) ([]models.Schedule, *models.Pagination, error)
	Get(ctx context.Context, id string, principal *models.Principal) (*models.Schedule, error)
	Update(ctx context.Context, id string, req models.ScheduleRequest, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error)
	Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error)
	Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error
}

// ScheduleHandler exposes MLA schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param mla_id query string false "MLA ID"
// @Param status query string false "Pending, Approved or Cancelled"
// @Param from query string false "Start (YYYY-MM-DD)"
// @Param to query string false "End (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{MLAID: c.Query("mla_id")}
	filter.Page, filter.PageSize = pageParams(c)

	if raw := c.Query("status"); raw != "" {
		status := models.ScheduleStatus(raw)
		switch status {
		case models.SchedulePending, models.ScheduleApproved, models.ScheduleCancelled:
			filter.Status = &status
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be Pending, Approved or Cancelled"))
			return
		}
	}

	var err error
	if filter.From, err = parseDateParam(c.Query("from")); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseDateParam(c.Query("to")); err != nil {
		response.Error(c, err)
		return
	}

	schedules, pagination, err := h.service.List(c.Request.Context(), filter, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Submit godoc
// @Summary Propose schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body models.ScheduleRequest true "Schedule"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Submit(c *gin.Context) {
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}

	schedule, err := h.service.Submit(c.Request.Context(), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Edit pending schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body models.ScheduleRequest true "Schedule"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}

	schedule, err := h.service.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Review godoc
// @Summary Approve or cancel schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body models.ReviewDecision true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/review [post]
func (h *ScheduleHandler) Review(c *gin.Context) {
	var decision models.ReviewDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	schedule, err := h.service.Review(c.Request.Context(), c.Param("id"), decision, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principalFromContext(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
