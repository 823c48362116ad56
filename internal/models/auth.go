package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// TokenPair is an access token plus the refresh token that renews it.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	IssuedAt     time.Time `json:"issued_at"`
}

// LoginResponse is a fresh session and the user it belongs to.
type LoginResponse struct {
	TokenPair
	User UserInfo `json:"user"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// RegisterRequest is the citizen self-registration payload.
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FullName  string  `json:"full_name" validate:"required,max=120"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	District  *string `json:"district,omitempty" validate:"omitempty,max=80"`
	IP        string  `json:"-"`
	UserAgent string  `json:"-"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	UserType UserType `json:"user_type,omitempty"`
	District *string  `json:"district,omitempty"`
}

// Info is the public view of u used in auth responses.
func (u *User) Info() UserInfo {
	info := UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role, District: u.District}
	if u.UserType != nil {
		info.UserType = *u.UserType
	}
	return info
}

// JWTClaims is the access token payload.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	UserType UserType `json:"user_type,omitempty"`
	District *string  `json:"district,omitempty"`
	jwt.RegisteredClaims
}

// NewAccessClaims builds claims for u valid from issuedAt for ttl.
func NewAccessClaims(u *User, issuer string, audience []string, issuedAt time.Time, ttl time.Duration) *JWTClaims {
	info := u.Info()
	return &JWTClaims{
		UserID:   u.ID,
		Role:     u.Role,
		Email:    u.Email,
		FullName: u.FullName,
		UserType: info.UserType,
		District: u.District,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			Audience:  audience,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
}

// RefreshToken is one persisted login session. Rotation revokes the old row.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}

// Usable reports whether the session may still be exchanged for tokens at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t != nil && !t.Revoked && now.Before(t.ExpiresAt)
}
