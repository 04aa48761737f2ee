// Package signin implements the credentials sign-in flow shown on the sign-in page:
// field validation, the submission contract with the session layer, the toast a
// user sees for each outcome, and the post-sign-in destination.
package signin

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field validation messages.
const (
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordTooShort = "Password must be at least 6 characters"
)

// Form is the submitted credentials pair.
type Form struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// FieldErrors maps a form field name to its message.
type FieldErrors map[string]string

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldMessages = map[string]string{
	"Email":    MsgInvalidEmail,
	"Password": MsgPasswordTooShort,
}

var fieldNames = map[string]string{
	"Email":    "email",
	"Password": "password",
}

// Validate returns every field error at once, or nil when the form can be submitted.
func (f Form) Validate() FieldErrors {
	f.Email = strings.TrimSpace(f.Email)
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": err.Error()}
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		name := fieldNames[fe.StructField()]
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = fieldMessages[fe.StructField()]
	}
	return out
}
