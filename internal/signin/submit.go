package signin

import (
	"context"

	"github.com/biometriscan/gateway/internal/models"
)

// Toast messages.
const (
	MsgSuccess = "Sign in successful!"
	MsgGeneric = "An unexpected error occurred. Please try again."
	MsgNetwork = "An error occurred during sign in. Please check your network connection."
)

// Error codes that are shown to the user verbatim.
var specificErrors = map[string]bool{
	"Invalid email":    true,
	"Invalid password": true,
}

type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Toast is a transient notification rendered on the page.
type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
}

// Credentials is what the page hands to the session layer.
type Credentials struct {
	Email       string
	Password    string
	CallbackURL string
}

// Signer performs a credentials sign-in. A non-nil error means the call itself
// failed; authentication failures are reported through SignInResult.Error.
type Signer interface {
	SignIn(ctx context.Context, creds Credentials) (models.SignInResult, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, creds Credentials) (models.SignInResult, error)

func (f SignerFunc) SignIn(ctx context.Context, creds Credentials) (models.SignInResult, error) {
	return f(ctx, creds)
}

// Outcome is the result of one submission attempt.
type Outcome struct {
	FieldErrors FieldErrors
	Toast       *Toast
	Redirect    string
	Result      *models.SignInResult
	Err         error
}

// Submitted reports whether the attempt reached the sign-in call.
func (o Outcome) Submitted() bool {
	return o.FieldErrors == nil
}

// ToastForError maps a sign-in result error code to the message shown to the user.
func ToastForError(code string) Toast {
	if specificErrors[code] {
		return Toast{Level: ToastError, Message: code}
	}
	return Toast{Level: ToastError, Message: MsgGeneric}
}

// Submit validates form and, when valid, signs in. Every failure is final for this
// attempt; the user resubmits to try again.
func Submit(ctx context.Context, signer Signer, form Form, callbackURL string) Outcome {
	if errs := form.Validate(); errs != nil {
		return Outcome{FieldErrors: errs}
	}

	res, err := signer.SignIn(ctx, Credentials{
		Email:       form.Email,
		Password:    form.Password,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return Outcome{Toast: &Toast{Level: ToastError, Message: MsgNetwork}, Err: err}
	}

	switch {
	case res.Error != "":
		t := ToastForError(res.Error)
		return Outcome{Toast: &t, Result: &res}
	case res.OK:
		return Outcome{
			Toast:    &Toast{Level: ToastSuccess, Message: MsgSuccess},
			Redirect: callbackURL,
			Result:   &res,
		}
	default:
		return Outcome{Result: &res}
	}
}
