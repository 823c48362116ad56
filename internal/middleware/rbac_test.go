package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type validatorStub struct{}

func (validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token == "good" {
		return &models.JWTClaims{UserID: "pa-1", Role: models.RolePA}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type denialRecorderStub struct {
	codes []string
}

func (d *denialRecorderStub) RecordDenial(code string) {
	d.codes = append(d.codes, code)
}

type auditWriterStub struct {
	logs []*models.AuditLog
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func serve(router *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/secure", JWT(validatorStub{}), func(c *gin.Context) {
		p := PrincipalFromContext(c)
		c.String(http.StatusOK, p.ID)
	})

	t.Run("missing header", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/secure", "").Code)
	})
	t.Run("wrong scheme", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/secure", "Basic good").Code)
	})
	t.Run("rejected token", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/secure", "Bearer bad").Code)
	})
	t.Run("valid token", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/secure", "bearer good")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "pa-1", w.Body.String())
	})
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/open", OptionalJWT(validatorStub{}), func(c *gin.Context) {
		if PrincipalFromContext(c) == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, "known")
	})

	require.Equal(t, "anonymous", serve(router, http.MethodGet, "/open", "").Body.String())
	require.Equal(t, "anonymous", serve(router, http.MethodGet, "/open", "Bearer bad").Body.String())
	require.Equal(t, "known", serve(router, http.MethodGet, "/open", "Bearer good").Body.String())
}

func TestRequireCapability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	denials := &denialRecorderStub{}
	guard := authz.NewGuard(nil)
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	router := gin.New()
	router.POST("/projects", JWT(validatorStub{}), RequireCapability(guard, denials, authz.SubmitProject), ok)
	router.POST("/review", JWT(validatorStub{}), RequireCapability(guard, denials, authz.ApproveProject), ok)
	router.POST("/anonymous", RequireCapability(guard, denials, authz.WriteRating), ok)
	router.GET("/admins", JWT(validatorStub{}), RequireRoles(guard, denials, models.RoleAdmin), ok)

	require.Equal(t, http.StatusNoContent, serve(router, http.MethodPost, "/projects", "Bearer good").Code)
	require.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/review", "Bearer good").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/anonymous", "").Code)
	require.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/admins", "Bearer good").Code)
	require.Equal(t, []string{"INSUFFICIENT_ROLE", "NO_PRINCIPAL", "INSUFFICIENT_ROLE"}, denials.codes)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditWriterStub{}
	router := gin.New()
	router.POST("/items/:id", JWT(validatorStub{}), Audit(writer, "ITEM_TOUCH", "item"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/items/i-1", "Bearer good").Code)
	require.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/items/i-2?fail=1", "Bearer good").Code)

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	require.Equal(t, "ITEM_TOUCH", entry.Action)
	require.Equal(t, "item", entry.Resource)
	require.Equal(t, "pa-1", *entry.UserID)
	require.Equal(t, "i-1", *entry.ResourceID)
	require.Contains(t, string(entry.NewValues), `"status":200`)
}
