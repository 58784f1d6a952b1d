package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when an operation needs a signed-in user.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// RateLimited is returned when a per-user quota is exhausted.
func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
	}
}

// ValidationErrors collects several field-level messages from one form.
// It matches ErrValidation under errors.Is.
type ValidationErrors struct {
	fields map[string][]string
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{fields: make(map[string][]string)}
}

// Add records message against field.
func (v *ValidationErrors) Add(field, message string) {
	v.fields[field] = append(v.fields[field], message)
}

func (v *ValidationErrors) Empty() bool {
	return len(v.fields) == 0
}

// Fields returns a copy of the collected messages keyed by field.
func (v *ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(v.fields))
	for k, msgs := range v.fields {
		out[k] = append([]string(nil), msgs...)
	}
	return out
}

// OrNil returns nil when nothing was collected, so callers can write
// `return errs.OrNil()` at the end of a validation function.
func (v *ValidationErrors) OrNil() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.fields[k], ", ")))
	}
	return strings.Join(parts, "; ")
}

func (v *ValidationErrors) Unwrap() error {
	return ErrValidation
}

// FieldErrors flattens any validation error into the field map used by
// JSON error envelopes. A single AppError without a field is filed under
// "__all__". It returns nil for non-validation errors.
func FieldErrors(err error) map[string][]string {
	var multi *ValidationErrors
	if errors.As(err, &multi) {
		return multi.Fields()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && errors.Is(err, ErrValidation) {
		field := appErr.Field
		if field == "" {
			field = "__all__"
		}
		return map[string][]string{field: {appErr.Message}}
	}
	return nil
}
