// Package validation builds the request validator shared by every service.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
)

// portalTags are the custom tags used on request structs.
var portalTags = map[string]validator.Func{
	"rating_value": func(fl validator.FieldLevel) bool {
		return workflow.ValidRating(int(fl.Field().Int()))
	},
	"iso_date": func(fl validator.FieldLevel) bool {
		_, err := workflow.ParseDate(fl.Field().String())
		return err == nil
	},
	"complaint_status": func(fl validator.FieldLevel) bool {
		return models.ComplaintStatus(fl.Field().String()).Valid()
	},
	"complaint_priority": func(fl validator.FieldLevel) bool {
		return models.ComplaintPriority(fl.Field().String()).Valid()
	},
}

// New returns a validator that reports fields by their JSON names and knows
// every portal tag. It panics if a tag cannot be registered.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	if err := register(v, portalTags); err != nil {
		panic(err)
	}
	return v
}

func register(v *validator.Validate, tags map[string]validator.Func) error {
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation %q: %w", tag, err)
		}
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
