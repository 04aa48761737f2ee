package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/metrics"
	"github.com/biometriscan/gateway/internal/models"
	"github.com/biometriscan/gateway/internal/ratelimit"
	"github.com/biometriscan/gateway/internal/services"
	"github.com/biometriscan/gateway/internal/signin"
)

// Sign-in outcome labels for the attempts counter.
const (
	outcomeSuccess     = "success"
	outcomeRejected    = "rejected"
	outcomeError       = "error"
	outcomeInvalidForm = "invalid_form"
	outcomeRateLimited = "rate_limited"
	outcomeCSRF        = "csrf"
)

// SessionIssuer runs credential sign-ins and writes the resulting session cookie.
type SessionIssuer struct {
	auth    services.AuthServiceProvider
	secure  bool
	metrics *metrics.Metrics
}

// NewSessionIssuer creates a SessionIssuer. secure marks cookies Secure.
func NewSessionIssuer(authService services.AuthServiceProvider, secure bool, m *metrics.Metrics) *SessionIssuer {
	return &SessionIssuer{auth: authService, secure: secure, metrics: m}
}

// Signer returns a signin.Signer that sets the session cookie on w when sign-in succeeds.
// Credential failures come back in the result; only infrastructure faults are errors.
func (s *SessionIssuer) Signer(w http.ResponseWriter) signin.Signer {
	return signin.SignerFunc(func(ctx context.Context, creds signin.Credentials) (models.SignInResult, error) {
		session, err := s.auth.SignIn(ctx, creds.Email, creds.Password)
		if err != nil {
			if services.IsCredentialsError(err) {
				s.metrics.SignInAttempt(outcomeRejected)
				return models.SignInResult{Error: services.ErrorCode(err), Status: http.StatusUnauthorized}, nil
			}
			s.metrics.SignInAttempt(outcomeError)
			return models.SignInResult{}, err
		}
		http.SetCookie(w, auth.SessionCookie(session.Token, session.Session.ExpiresAt, s.secure))
		s.metrics.SignInAttempt(outcomeSuccess)
		return models.SignInResult{OK: true, Status: http.StatusOK, URL: creds.CallbackURL}, nil
	})
}

// Throttle caps sign-in attempts per client IP.
type Throttle struct {
	limiter ratelimit.Limiter
	limit   int
	window  time.Duration
	metrics *metrics.Metrics
}

// NewThrottle creates a Throttle. A nil limiter or non-positive limit disables it.
func NewThrottle(limiter ratelimit.Limiter, limit int, window time.Duration, m *metrics.Metrics) *Throttle {
	return &Throttle{limiter: limiter, limit: limit, window: window, metrics: m}
}

// Allow records a hit for r's client on route and writes the rate-limit headers.
func (t *Throttle) Allow(w http.ResponseWriter, r *http.Request, route string) bool {
	if t == nil || t.limiter == nil || t.limit <= 0 {
		return true
	}
	d := t.limiter.Allow(route+":"+ratelimit.KeyIP(r), t.limit, t.window)
	ratelimit.SetHeaders(w, t.limit, d)
	if !d.Allowed {
		t.metrics.RateLimitHit(route)
		t.metrics.SignInAttempt(outcomeRateLimited)
		if retry := time.Until(d.WindowEnd); retry > 0 {
			w.Header().Set("Retry-After", formatSeconds(retry))
		}
		return false
	}
	return true
}

func formatSeconds(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
