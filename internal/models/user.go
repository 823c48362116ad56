package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleMLA    UserRole = "MLA"
	RolePA     UserRole = "PA"
	RolePublic UserRole = "PUBLIC"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleMLA, RolePA, RolePublic:
		return true
	default:
		return false
	}
}

// UserType distinguishes self-registered citizens from staff-provisioned public accounts.
type UserType string

const (
	UserTypeCitizen UserType = "CITIZEN"
	UserTypeStaff   UserType = "STAFF"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	UserType     *UserType  `db:"user_type" json:"user_type,omitempty"`
	District     *string    `db:"district" json:"district,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Principal builds the authorization subject for the user.
func (u *User) Principal() *Principal {
	if u == nil {
		return nil
	}
	p := &Principal{ID: u.ID, Role: u.Role, District: u.District}
	if u.UserType != nil {
		p.UserType = *u.UserType
	}
	return p
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	District  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
