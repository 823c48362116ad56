package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/service"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, req service.CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error)
	Update(ctx context.Context, id string, req service.UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error)
	Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error
}

// UserHandler serves Admin account management.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

type userListQuery struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Role      string `form:"role"`
	Active    *bool  `form:"active"`
	District  string `form:"district" binding:"max=80"`
	Search    string `form:"search" binding:"max=100"`
	SortBy    string `form:"sort_by" binding:"omitempty,oneof=email created_at updated_at full_name role district"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

func (q userListQuery) filter() (models.UserFilter, error) {
	f := models.UserFilter{
		Active:    q.Active,
		District:  strings.TrimSpace(q.District),
		Search:    strings.TrimSpace(q.Search),
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	f.Page, f.PageSize = models.NormalizePage(q.Page, q.PageSize)
	if q.Role != "" {
		role := models.UserRole(strings.ToUpper(q.Role))
		if !role.Valid() {
			return f, appErrors.Clone(appErrors.ErrValidation, "unknown role "+q.Role)
		}
		f.Role = &role
	}
	return f, nil
}

// actor returns the calling principal, writing 401 when there is none.
func actor(c *gin.Context) (*models.Principal, bool) {
	p := principalFromContext(c)
	if p == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return p, true
}

func bindBody(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// List godoc
// @Summary List users
// @Description Page through accounts. Role matching is case-insensitive.
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "ADMIN, MLA, PA or PUBLIC"
// @Param active query bool false "Active filter"
// @Param district query string false "District filter"
// @Param search query string false "Matches email or name"
// @Param sort_by query string false "email, created_at, updated_at, full_name, role or district"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var q userListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	filter, err := q.filter()
	if err != nil {
		response.Error(c, err)
		return
	}

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create user
// @Description Provision an Admin, MLA, PA or staff-made PUBLIC account
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "Create user payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateUserRequest
	if !bindBody(c, &req) {
		return
	}

	user, err := h.service.Create(c.Request.Context(), req, p.ID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update user
// @Description Update profile fields and the active flag. Role is fixed at creation.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if !bindBody(c, &req) {
		return
	}

	user, err := h.service.Update(c.Request.Context(), c.Param("id"), req, p.ID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Deactivate user
// @Description Marks the account inactive and revokes its sessions. Admins cannot deactivate themselves.
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), p.ID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
