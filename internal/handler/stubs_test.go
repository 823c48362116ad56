package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-portal-api/internal/dto"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/service"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// tokenStub accepts a bare role name as the bearer token.
type tokenStub struct{}

func (tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	role := models.UserRole(strings.ToUpper(token))
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{UserID: strings.ToLower(token) + "-1", Role: role}, nil
}

type denialStub struct {
	codes []string
}

func (d *denialStub) RecordDenial(code string) {
	d.codes = append(d.codes, code)
}

type auditWriterStub struct {
	entries []*models.AuditLog
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type authServiceStub struct{}

func (authServiceStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{TokenPair: models.TokenPair{AccessToken: "token"}}, nil
}

func (authServiceStub) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	return &models.UserInfo{ID: "citizen-1", Email: req.Email, Role: models.RolePublic, UserType: models.UserTypeCitizen}, nil
}

func (authServiceStub) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error) {
	return &models.TokenPair{AccessToken: "token"}, nil
}

func (authServiceStub) Logout(ctx context.Context, refreshToken string, userID string, meta models.RequestMeta) error {
	return nil
}

func (authServiceStub) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	return nil
}

type userServiceStub struct {
	filter    models.UserFilter
	deletedBy string
}

func (s *userServiceStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	s.filter = filter
	return []models.User{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (userServiceStub) Get(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (userServiceStub) Create(ctx context.Context, req service.CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	return &models.User{ID: "user-1", Email: req.Email, Role: req.Role}, nil
}

func (userServiceStub) Update(ctx context.Context, id string, req service.UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	return &models.User{ID: id, FullName: req.FullName}, nil
}

func (s *userServiceStub) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	s.deletedBy = actorID
	return nil
}

type auditServiceStub struct{}

func (auditServiceStub) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	return []models.AuditLog{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

type contentServiceStub[Req any, T any] struct {
	filter    models.ContentFilter
	principal *models.Principal
	decision  models.ReviewDecision
}

func (s *contentServiceStub[Req, T]) Submit(ctx context.Context, req Req, principal *models.Principal, meta models.RequestMeta) (*T, error) {
	s.principal = principal
	return new(T), nil
}

func (s *contentServiceStub[Req, T]) List(ctx context.Context, filter models.ContentFilter, principal *models.Principal) ([]T, *models.Pagination, error) {
	s.filter = filter
	s.principal = principal
	return []T{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *contentServiceStub[Req, T]) Get(ctx context.Context, id string, principal *models.Principal) (*T, error) {
	s.principal = principal
	if id == "missing" {
		return nil, appErrors.ErrNotFound
	}
	return new(T), nil
}

func (s *contentServiceStub[Req, T]) Update(ctx context.Context, id string, req Req, principal *models.Principal, meta models.RequestMeta) (*T, error) {
	s.principal = principal
	return new(T), nil
}

func (s *contentServiceStub[Req, T]) Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*T, error) {
	s.principal = principal
	s.decision = decision
	return new(T), nil
}

func (s *contentServiceStub[Req, T]) Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error {
	s.principal = principal
	return nil
}

type ratingServiceStub struct {
	kind models.ContentKind
	id   string
	req  models.RateRequest
}

func (s *ratingServiceStub) Rate(ctx context.Context, kind models.ContentKind, id string, req models.RateRequest, principal *models.Principal, meta models.RequestMeta) (*models.RatingSummary, error) {
	s.kind, s.id, s.req = kind, id, req
	return &models.RatingSummary{AverageRating: float64(req.Rating), TotalRatings: 1, Version: 1}, nil
}

type scheduleServiceStub struct {
	filter models.ScheduleFilter
}

func (s *scheduleServiceStub) Submit(ctx context.Context, req models.ScheduleRequest, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error) {
	return &models.Schedule{ID: "schedule-1", Status: models.SchedulePending, CreatedBy: principal.ID}, nil
}

func (s *scheduleServiceStub) List(ctx context.Context, filter models.ScheduleFilter, principal *models.Principal) ([]models.Schedule, *models.Pagination, error) {
	s.filter = filter
	return []models.Schedule{}, &models.Pagination{}, nil
}

func (s *scheduleServiceStub) Get(ctx context.Context, id string, principal *models.Principal) (*models.Schedule, error) {
	return &models.Schedule{ID: id}, nil
}

func (s *scheduleServiceStub) Update(ctx context.Context, id string, req models.ScheduleRequest, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error) {
	return &models.Schedule{ID: id}, nil
}

func (s *scheduleServiceStub) Review(ctx context.Context, id string, decision models.ReviewDecision, principal *models.Principal, meta models.RequestMeta) (*models.Schedule, error) {
	return &models.Schedule{ID: id, Status: models.ScheduleStatus(decision.Status)}, nil
}

func (s *scheduleServiceStub) Delete(ctx context.Context, id string, principal *models.Principal, meta models.RequestMeta) error {
	return nil
}

type complaintServiceStub struct {
	filter models.ComplaintFilter
}

func (s *complaintServiceStub) Create(ctx context.Context, req models.CreateComplaintRequest, principal *models.Principal, meta models.RequestMeta) (*models.Complaint, error) {
	return &models.Complaint{ID: "complaint-1", UserID: principal.ID, Title: req.Title, Status: models.ComplaintSubmitted}, nil
}

func (s *complaintServiceStub) ListOwn(ctx context.Context, filter models.ComplaintFilter, principal *models.Principal) ([]models.Complaint, *models.Pagination, error) {
	s.filter = filter
	return []models.Complaint{}, &models.Pagination{}, nil
}

func (s *complaintServiceStub) ListAll(ctx context.Context, filter models.ComplaintFilter, principal *models.Principal) ([]models.Complaint, *models.Pagination, error) {
	s.filter = filter
	return []models.Complaint{}, &models.Pagination{}, nil
}

func (s *complaintServiceStub) Get(ctx context.Context, id string, principal *models.Principal) (*models.Complaint, error) {
	return &models.Complaint{ID: id}, nil
}

func (s *complaintServiceStub) Update(ctx context.Context, id string, req models.UpdateComplaintRequest, principal *models.Principal, meta models.RequestMeta) (*models.Complaint, error) {
	return &models.Complaint{ID: id}, nil
}

type attendanceServiceStub struct {
	season *string
}

func (s *attendanceServiceStub) RecordDay(ctx context.Context, req models.RecordDayRequest, principal *models.Principal, meta models.RequestMeta) (*models.AttendanceDay, error) {
	return &models.AttendanceDay{ID: "day-1", Status: models.AttendancePending}, nil
}

func (s *attendanceServiceStub) VerifyDay(ctx context.Context, id string, req models.VerifyDayRequest, principal *models.Principal, meta models.RequestMeta) (*models.AttendanceDay, error) {
	return &models.AttendanceDay{ID: id, Status: req.Status}, nil
}

func (s *attendanceServiceStub) GetRecord(ctx context.Context, season, mlaID string, principal *models.Principal) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{Season: season, MLAID: mlaID}, nil
}

func (s *attendanceServiceStub) ListRecords(ctx context.Context, filter models.AttendanceFilter, principal *models.Principal) ([]models.AttendanceRecord, *models.Pagination, error) {
	return []models.AttendanceRecord{}, &models.Pagination{}, nil
}

func (s *attendanceServiceStub) PublicPercentage(ctx context.Context) (*models.AttendancePercentage, error) {
	return &models.AttendancePercentage{Verified: 3, Total: 4, Percentage: 75}, nil
}

func (s *attendanceServiceStub) MLAPercentage(ctx context.Context, mlaID string, season *string) (*models.AttendancePercentage, error) {
	s.season = season
	return &models.AttendancePercentage{MLAID: &mlaID, Season: season}, nil
}

type transparencyServiceStub struct {
	cached bool
}

func (s transparencyServiceStub) Summary(ctx context.Context) (*models.TransparencySummary, bool, error) {
	return &models.TransparencySummary{ApprovedProjects: 2}, s.cached, nil
}

type reportServiceStub struct {
	createResp  *dto.ReportJobView
	createErr   error
	statusResp  *dto.ReportJobView
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
	principal   *models.Principal
	meta        models.RequestMeta
}

func (m *reportServiceStub) CreateJob(ctx context.Context, req dto.ReportRequest, principal *models.Principal) (*dto.ReportJobView, error) {
	m.principal = principal
	return m.createResp, m.createErr
}

func (m *reportServiceStub) GetStatus(ctx context.Context, id string, principal *models.Principal) (*dto.ReportJobView, error) {
	m.principal = principal
	return m.statusResp, m.statusErr
}

func (m *reportServiceStub) ResolveDownload(ctx context.Context, token string, meta models.RequestMeta) (*service.ReportDownload, error) {
	m.meta = meta
	return m.download, m.downloadErr
}
