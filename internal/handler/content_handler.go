package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type contentService[Req any, T any] interface {
	Submit(ctx context.Context, req Req, principal *models.Principal, meta models.RequestMeta) (*T, error)
	List(ctx context.Context, filter models.ContentFilter, principal *models.Principal) ([]T, *models.Pagination, error)
	Get(ctx context.Context, id string, principal *models.Principal) (*T, error)
	Update(ctx context.Context, id string, req Req, principal *models.Principal, meta models.RequestMeta) (*T, error)
	Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*T, error)
	Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error
}

type ratingService interface {
	Rate(ctx context.Context, kind models.ContentKind, id string, req models.RateRequest, principal *models.Principal, meta models.RequestMeta) (*models.RatingSummary, error)
}

// ContentHandler serves one approvable content kind: projects, schemes or events.
type ContentHandler[Req any, T any] struct {
	kind    models.ContentKind
	service contentService[Req, T]
	ratings ratingService
}

// NewContentHandler constructs a handler for kind.
func NewContentHandler[Req any, T any](kind models.ContentKind, svc contentService[Req, T], ratings ratingService) *ContentHandler[Req, T] {
	return &ContentHandler[Req, T]{kind: kind, service: svc, ratings: ratings}
}

// List godoc
// @Summary List approvable content
// @Description Anonymous and citizen callers only see approved items.
// @Tags Content
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param mine query bool false "Only items authored by the caller"
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /projects [get]
// @Router /schemes [get]
// @Router /events [get]
func (h *ContentHandler[Req, T]) List(c *gin.Context) {
	principal := principalFromContext(c)
	filter := models.ContentFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	if raw := c.Query("status"); raw != "" {
		status := models.ApprovalStatus(strings.ToLower(raw))
		switch status {
		case models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
			filter.Status = &status
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be pending, approved or rejected"))
			return
		}
	}
	if c.Query("mine") == "true" && principal != nil {
		filter.AuthorID = principal.ID
	}

	items, pagination, err := h.service.List(c.Request.Context(), filter, principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get approvable content item
// @Tags Content
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [get]
// @Router /schemes/{id} [get]
// @Router /events/{id} [get]
func (h *ContentHandler[Req, T]) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Submit godoc
// @Summary Submit content for review
// @Description New items start pending.
// @Tags Content
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /projects [post]
// @Router /schemes [post]
// @Router /events [post]
func (h *ContentHandler[Req, T]) Submit(c *gin.Context) {
	var req Req
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	item, err := h.service.Submit(c.Request.Context(), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit content
// @Description Authors edit their own pending items. Admins may edit any project.
// @Tags Content
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id} [put]
// @Router /schemes/{id} [put]
// @Router /events/{id} [put]
func (h *ContentHandler[Req, T]) Update(c *gin.Context) {
	var req Req
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Review godoc
// @Summary Approve or reject content
// @Tags Content
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body models.ReviewDecision true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id}/review [post]
// @Router /schemes/{id}/review [post]
// @Router /events/{id}/review [post]
func (h *ContentHandler[Req, T]) Review(c *gin.Context) {
	var decision models.ReviewDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	item, err := h.service.Review(c.Request.Context(), c.Param("id"), decision, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete content
// @Tags Content
// @Param id path string true "Item ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [delete]
// @Router /schemes/{id} [delete]
// @Router /events/{id} [delete]
func (h *ContentHandler[Req, T]) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principalFromContext(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Rate godoc
// @Summary Rate content
// @Description One rating per user; rating again replaces the earlier entry.
// @Tags Ratings
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body models.RateRequest true "Rating"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id}/ratings [post]
// @Router /schemes/{id}/ratings [post]
// @Router /events/{id}/ratings [post]
func (h *ContentHandler[Req, T]) Rate(c *gin.Context) {
	var req models.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}

	summary, err := h.ratings.Rate(c.Request.Context(), h.kind, c.Param("id"), req, principalFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
