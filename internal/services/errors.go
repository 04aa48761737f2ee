package services

import "errors"

var (
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Error codes reported in sign-in results. The first two are shown to users verbatim.
const (
	CodeInvalidEmail      = "Invalid email"
	CodeInvalidPassword   = "Invalid password"
	CodeCredentialsSignin = "CredentialsSignin"
	CodeRateLimited       = "RateLimited"
	CodeCSRF              = "MissingCSRF"
)

// ErrorCode maps a credentials failure to the code carried in a sign-in result.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEmail):
		return CodeInvalidEmail
	case errors.Is(err, ErrInvalidPassword):
		return CodeInvalidPassword
	default:
		return CodeCredentialsSignin
	}
}

// IsCredentialsError reports whether err is an authentication failure rather than
// an infrastructure fault.
func IsCredentialsError(err error) bool {
	return errors.Is(err, ErrInvalidEmail) || errors.Is(err, ErrInvalidPassword) || errors.Is(err, errRejected)
}

// errRejected marks a credential rejection whose reason the provider did not name.
var errRejected = errors.New("credentials rejected")
