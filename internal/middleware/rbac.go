package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

// DenialRecorder counts rejected authorization checks by error code.
type DenialRecorder interface {
	RecordDenial(code string)
}

// RequireCapability admits the request when the principal holds any of caps.
func RequireCapability(guard *authz.Guard, denials DenialRecorder, caps ...authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := guard.Authorize(PrincipalFromContext(c), caps...); err != nil {
			deny(c, denials, err)
			return
		}
		c.Next()
	}
}

// RequireRoles admits the request when the principal holds one of roles.
func RequireRoles(guard *authz.Guard, denials DenialRecorder, roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := guard.AuthorizeRoles(PrincipalFromContext(c), roles...); err != nil {
			deny(c, denials, err)
			return
		}
		c.Next()
	}
}

func deny(c *gin.Context, denials DenialRecorder, err error) {
	if denials != nil {
		denials.RecordDenial(appErrors.FromError(err).Code)
	}
	response.Error(c, err)
	c.Abort()
}
