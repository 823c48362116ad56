package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/pkg/response"
)

func TestUserListBindsFilters(t *testing.T) {
	f := buildRouter()
	w := performRequest(f.router, request(http.MethodGet, "/api/v1/users?role=pa&active=false&district=%20North%20&page=3&page_size=500&sort_by=email&sort_order=asc", "ADMIN", ""))
	require.Equal(t, http.StatusOK, w.Code)

	got := f.users.filter
	require.NotNil(t, got.Role)
	assert.Equal(t, models.RolePA, *got.Role)
	require.NotNil(t, got.Active)
	assert.False(t, *got.Active)
	assert.Equal(t, "North", got.District)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 100, got.PageSize)
	assert.Equal(t, "email", got.SortBy)
}

func TestUserListRejectsBadQuery(t *testing.T) {
	cases := map[string]string{
		"unknown role":   "/api/v1/users?role=mayor",
		"bad bool":       "/api/v1/users?active=maybe",
		"bad sort field": "/api/v1/users?sort_by=password_hash",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			f := buildRouter()
			w := performRequest(f.router, request(http.MethodGet, path, "ADMIN", ""))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w.Body.Bytes()))
		})
	}
}

func TestUserCreateReportsFieldErrors(t *testing.T) {
	f := buildRouter()
	w := performRequest(f.router, request(http.MethodPost, "/api/v1/users", "ADMIN", `{"email":"x"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(f.router, request(http.MethodPost, "/api/v1/users", "ADMIN", `{"email":`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestUserDeletePassesActor(t *testing.T) {
	f := buildRouter()
	w := performRequest(f.router, request(http.MethodDelete, "/api/v1/users/pa-1", "ADMIN", ""))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "admin-1", f.users.deletedBy)
}
