package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

type sample struct {
	FullName string `json:"full_name,omitempty" validate:"required"`
	Code     string `validate:"required"`
}

func TestNewUsesJSONNames(t *testing.T) {
	err := New().Struct(sample{})
	var ve validator.ValidationErrors
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve, 2)
	assert.Equal(t, "sample.full_name", ve[0].Namespace())
	assert.Equal(t, "sample.Code", ve[1].Namespace())
}

func TestNewKnowsPortalTags(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(models.RateRequest{Rating: 5}))
	assert.Error(t, v.Struct(models.RateRequest{Rating: 6}))

	day := models.RecordDayRequest{Season: "Budget 2024", MLAID: "mla-1", Date: "2024-02-01"}
	assert.NoError(t, v.Struct(day))
	day.Date = "01/02/2024"
	assert.Error(t, v.Struct(day))

	resolved := models.ComplaintResolved
	assert.NoError(t, v.Struct(models.UpdateComplaintRequest{Status: &resolved}))
	closed := models.ComplaintStatus("Closed")
	assert.Error(t, v.Struct(models.UpdateComplaintRequest{Status: &closed}))

	assert.Error(t, v.Struct(models.CreateComplaintRequest{Title: "Pothole", Description: "Deep", Priority: "urgent"}))
}

func TestRegisterReportsBadTag(t *testing.T) {
	err := register(validator.New(), map[string]validator.Func{"": func(validator.FieldLevel) bool { return true }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register validation")
}
