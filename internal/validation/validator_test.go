package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/videohub/internal/apperror"
)

type signupForm struct {
	Username string `form:"username" validate:"notblank,max=10"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"min=8"`
	Confirm  string `form:"password_confirm" validate:"eqfield=Password"`
	Code     string `form:"code" validate:"omitempty,digits,len=6"`
	Action   string `form:"action" validate:"omitempty,oneof=activate deactivate delete"`
}

func valid() signupForm {
	return signupForm{
		Username: "alex",
		Email:    "alex@example.com",
		Password: "longenough",
		Confirm:  "longenough",
	}
}

func TestStruct_Valid(t *testing.T) {
	f := valid()
	assert.NoError(t, Struct(&f))
}

func TestStruct_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *signupForm)
		field  string
		msg    string
	}{
		{"blank username", func(f *signupForm) { f.Username = "   " }, "username", "This field is required."},
		{"long username", func(f *signupForm) { f.Username = "abcdefghijk" }, "username", "Ensure this value has at most 10 characters."},
		{"bad email", func(f *signupForm) { f.Email = "nope" }, "email", "Enter a valid email address."},
		{"short password", func(f *signupForm) { f.Password, f.Confirm = "short", "short" }, "password", "Ensure this value has at least 8 characters."},
		{"mismatch", func(f *signupForm) { f.Confirm = "different1" }, "password_confirm", "The two fields didn't match."},
		{"letters in code", func(f *signupForm) { f.Code = "12a456" }, "code", "Enter digits only."},
		{"short code", func(f *signupForm) { f.Code = "123" }, "code", "Must be exactly 6 characters."},
		{"unknown action", func(f *signupForm) { f.Action = "archive" }, "action", "Must be one of: activate deactivate delete."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(&f)

			err := Struct(&f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))

			fields := apperror.FieldErrors(err)
			require.Contains(t, fields, tt.field)
			assert.Equal(t, []string{tt.msg}, fields[tt.field])
		})
	}
}
