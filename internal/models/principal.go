package models

// Principal is the authenticated actor every workflow operation is checked against.
type Principal struct {
	ID       string   `json:"id"`
	Role     UserRole `json:"role"`
	UserType UserType `json:"user_type,omitempty"`
	District *string  `json:"district,omitempty"`
}

// Is reports whether the principal holds one of the given roles.
func (p *Principal) Is(roles ...UserRole) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Principal converts verified token claims into an authorization subject.
func (c *JWTClaims) Principal() *Principal {
	if c == nil {
		return nil
	}
	return &Principal{ID: c.UserID, Role: c.Role, UserType: c.UserType, District: c.District}
}
