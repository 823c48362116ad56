// Package errors defines the API error type every handler renders.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is a client-facing failure: a stable code, an HTTP status and a
// message. Validation failures also carry per-field reasons.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code and status, so errors.Is(err, ErrNotFound) holds for
// clones and wraps of ErrNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Status == t.Status
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a cause. Validator errors wrapped as VALIDATION_ERROR are
// expanded into Fields keyed by JSON field name.
func Wrap(err error, code string, status int, message string) *Error {
	e := &Error{Code: code, Status: status, Message: message, Err: err}
	if code == ErrValidation.Code {
		e.Fields = fieldErrors(err)
	}
	return e
}

var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTimeout            = New("TIMEOUT", http.StatusGatewayTimeout, "request timed out")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Authorization denials.
	ErrNoPrincipal      = New("NO_PRINCIPAL", http.StatusUnauthorized, "authentication required")
	ErrInsufficientRole = New("INSUFFICIENT_ROLE", http.StatusForbidden, "role is not permitted to perform this action")

	// Workflow conflicts.
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "status transition not allowed")
	ErrNotEditable       = New("NOT_EDITABLE", http.StatusConflict, "only pending items can be edited")
	ErrDuplicateDate     = New("DUPLICATE_DATE", http.StatusConflict, "attendance already recorded for this date")
	ErrStaleVersion      = New("CONFLICT", http.StatusConflict, "item was modified concurrently, retry the request")
)

// Is reports whether err carries the same code and status as target.
func Is(err error, target *Error) bool {
	return target != nil && errors.Is(err, target)
}

// FromError normalises any error into an *Error. Context deadlines become
// TIMEOUT; anything unrecognised becomes INTERNAL_ERROR.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrTimeout.Code, ErrTimeout.Status, ErrTimeout.Message)
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies err, replacing the message when one is given.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Fields != nil {
		clone.Fields = make(map[string]string, len(err.Fields))
		for k, v := range err.Fields {
			clone.Fields[k] = v
		}
	}
	return &clone
}

func fieldErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fieldName(fe)] = fieldReason(fe)
	}
	return out
}

// fieldName prefers the JSON-ish namespace without the root struct name.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		ns = fe.Field()
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}

func fieldReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}
