package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/validation"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateUserRequest represents payload for provisioning accounts by an administrator.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=120"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN MLA PA PUBLIC"`
	Phone    *string         `json:"phone,omitempty" validate:"omitempty,max=20"`
	District *string         `json:"district,omitempty" validate:"omitempty,max=80"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating users. The role of an account is fixed at creation.
type UpdateUserRequest struct {
	FullName string  `json:"full_name" validate:"required,max=120"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	District *string `json:"district,omitempty" validate:"omitempty,max=80"`
	Active   *bool   `json:"active"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &UserService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page, pageSize := pageBounds(filter.Page, filter.PageSize)
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions a staff account. PUBLIC accounts made here are tagged as staff-created.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		District:     req.District,
		Role:         req.Role,
		Active:       req.Active,
		PasswordHash: string(passwordHash),
	}
	if req.Role == models.RolePublic {
		staff := models.UserTypeStaff
		user.UserType = &staff
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     actorRef(actorID),
		Action:     models.AuditActionUserCreate,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  auditPayload(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return user, nil
}

// Update modifies profile attributes and the active flag.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldPayload := auditPayload(map[string]interface{}{"full_name": user.FullName, "active": user.Active})

	user.FullName = req.FullName
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.District != nil {
		user.District = req.District
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     actorRef(actorID),
		Action:     models.AuditActionUserUpdate,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		NewValues:  auditPayload(map[string]interface{}{"full_name": user.FullName, "active": user.Active}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return user, nil
}

// Delete deactivates a user. Open sessions are revoked with it.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrConflict, "administrators cannot deactivate their own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     actorRef(actorID),
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  auditPayload(map[string]interface{}{"active": user.Active}),
		NewValues:  auditPayload(map[string]interface{}{"active": false}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return nil
}

// actorRef returns nil for system actions such as CLI provisioning.
func actorRef(actorID string) *string {
	if actorID == "" {
		return nil
	}
	return &actorID
}
