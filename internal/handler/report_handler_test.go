package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/dto"
	"github.com/noah-isme/civic-portal-api/internal/middleware"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/service"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

func TestReportHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &reportServiceStub{
		createResp: &dto.ReportJobView{ID: "job-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(stub)

	payload, _ := json.Marshal(dto.ReportRequest{Type: models.ReportTypeProjects, Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mla-1", Role: models.RoleMLA})

	handler.Generate(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "/reports/job-1", w.Header().Get("Location"))
	require.NotNil(t, stub.principal)
	require.Equal(t, "mla-1", stub.principal.ID)
}

func TestReportHandlerGenerateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceStub{})

	c, w := newGinContext(http.MethodPost, "/reports", []byte("{"))
	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &reportServiceStub{
		statusResp: &dto.ReportJobView{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	handler := NewReportHandler(stub)

	c, w := newGinContext(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)

	stub.statusErr = appErrors.ErrNotFound
	c, w = newGinContext(http.MethodGet, "/reports/job-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-2"}}
	handler.Status(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp("", "report*.pdf")
	require.NoError(t, err)
	defer os.Remove(file.Name())
	_, _ = file.WriteString("%PDF")
	_, _ = file.Seek(0, 0)

	stub := &reportServiceStub{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "projects_all.pdf",
			Format:    models.ReportFormatPDF,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewReportHandler(stub)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	c.Request.Header.Set("User-Agent", "curl")

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "projects_all.pdf")
	require.Equal(t, "%PDF", w.Body.String())
	require.Equal(t, "curl", stub.meta.UserAgent)
}

func TestReportHandlerDownloadRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceStub{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})

	c, w := newGinContext(http.MethodGet, "/export/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
