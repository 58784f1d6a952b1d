// Package validation wraps go-playground/validator v10 with a process-wide
// instance and translates its errors into apperror.ValidationErrors keyed
// by form field name.
//
// Example:
//
//	type storyForm struct {
//	    Title string `form:"title" validate:"notblank,max=200"`
//	}
//
//	if err := validation.Struct(&f); err != nil {
//	    return err // *apperror.ValidationErrors, renders as {"errors": {...}}
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/videohub/internal/apperror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the shared validator. It caches struct metadata, so it is
// built once.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their form name so error keys match the inputs.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("notblank", notBlank)
		_ = validate.RegisterValidation("digits", digits)
	})
	return validate
}

// Struct validates s. It returns nil or a *apperror.ValidationErrors.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation: %w", err)
	}

	out := apperror.NewValidationErrors()
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), translate(fe))
	}
	return out
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func digits(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var messages = map[string]string{
	"required": "This field is required.",
	"notblank": "This field is required.",
	"email":    "Enter a valid email address.",
	"url":      "Enter a valid URL.",
	"digits":   "Enter digits only.",
	"eqfield":  "The two fields didn't match.",
}

var messagesWithParam = map[string]string{
	"oneof": "Must be one of: %s.",
	"gte":   "Ensure this value is greater than or equal to %s.",
	"lte":   "Ensure this value is less than or equal to %s.",
	"len":   "Must be exactly %s characters.",
}

func translate(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	}
	return fmt.Sprintf("Failed %s validation.", fe.Tag())
}
