package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type complaintService interface {
	Create(ctx context.Context, req models.CreateComplaintRequest, principal *models.Principal, meta models.RequestMeta) (*models.Complaint, error)
	ListOwn(ctx context.Context, filter models.ComplaintFilter, principal *models.Principal) ([]models.Complaint, *models.Pagination, error)
	ListAll(ctx context.Context, filter models.ComplaintFilter, principal *models.Principal) ([]models.Complaint, *models.Pagination, error)
	Get(ctx context.Context, id string, principal *models.Principal) (*models.Complaint, error)
	Update(ctx context.Context, id string, req models.UpdateComplaintRequest, principal *models.Principal, meta models.RequestMeta) (*models.Complaint, error)
}

// ComplaintHandler exposes citizen grievance endpoints.
type ComplaintHandler struct {
	service complaintService
}

// NewComplaintHandler constructs the handler.
func NewComplaintHandler(svc complaintService) *ComplaintHandler {
	return &ComplaintHandler{service: svc}
}

// Create godoc
// @Summary File complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body models.CreateComplaintRequest true "Complaint"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	var req models.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint payload"))
		return
	}

	complaint, err := h.service.Create(c.Request.Context(), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, complaint)
}

// ListMine godoc
// @Summary List own complaints
// @Tags Complaints
// @Produce json
// @Param status query string false "Status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /complaints/mine [get]
func (h *ComplaintHandler) ListMine(c *gin.Context) {
	filter, err := parseComplaintFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	complaints, pagination, err := h.service.ListOwn(c.Request.Context(), filter, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaints, pagination)
}

// List godoc
// @Summary List all complaints
// @Tags Complaints
// @Produce json
// @Param status query string false "Status"
// @Param priority query string false "low, medium or high"
// @Param assigned_to query string false "Assignee user ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	filter, err := parseComplaintFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.AssignedTo = c.Query("assigned_to")

	complaints, pagination, err := h.service.ListAll(c.Request.Context(), filter, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaints, pagination)
}

// Get godoc
// @Summary Get complaint
// @Description Citizens may only read their own complaints.
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	complaint, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Update godoc
// @Summary Update complaint
// @Description Staff set status, priority and responses. A PA response assigns the complaint to that PA.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body models.UpdateComplaintRequest true "Update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /complaints/{id} [patch]
func (h *ComplaintHandler) Update(c *gin.Context) {
	var req models.UpdateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint update"))
		return
	}

	complaint, err := h.service.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

func parseComplaintFilter(c *gin.Context) (models.ComplaintFilter, error) {
	filter := models.ComplaintFilter{SortOrder: c.Query("sort_order")}
	filter.Page, filter.PageSize = pageParams(c)

	if raw := c.Query("status"); raw != "" {
		status := models.ComplaintStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown complaint status")
		}
		filter.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.ComplaintPriority(raw)
		if !priority.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown complaint priority")
		}
		filter.Priority = &priority
	}
	return filter, nil
}
