package authz

import (
	"fmt"
	"strings"

	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

// Guard checks principals against the capability table. It has no side effects.
type Guard struct {
	table Table
}

// NewGuard constructs a guard over table; a nil table uses DefaultTable.
func NewGuard(table Table) *Guard {
	if table == nil {
		table = DefaultTable()
	}
	return &Guard{table: table}
}

// Authorize admits the principal when it holds any of caps. No caps admits any authenticated principal.
func (g *Guard) Authorize(principal *models.Principal, caps ...Capability) error {
	if err := g.authenticated(principal); err != nil {
		return err
	}
	if len(caps) == 0 {
		return nil
	}
	for _, c := range caps {
		if g.table.Has(principal.Role, c) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrInsufficientRole, fmt.Sprintf("role %s lacks %s", principal.Role, joinCaps(caps)))
}

// AuthorizeRoles admits the principal when its role is in roles. No roles admits any authenticated principal.
func (g *Guard) AuthorizeRoles(principal *models.Principal, roles ...models.UserRole) error {
	if err := g.authenticated(principal); err != nil {
		return err
	}
	if len(roles) == 0 || principal.Is(roles...) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrInsufficientRole, fmt.Sprintf("role %s is not permitted", principal.Role))
}

// Can is the boolean form of Authorize.
func (g *Guard) Can(principal *models.Principal, caps ...Capability) bool {
	return g.Authorize(principal, caps...) == nil
}

func (g *Guard) authenticated(principal *models.Principal) error {
	if principal == nil || principal.ID == "" || !principal.Role.Valid() {
		return appErrors.ErrNoPrincipal
	}
	return nil
}

func joinCaps(caps []Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, " or ")
}
