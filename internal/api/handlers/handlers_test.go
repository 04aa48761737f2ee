package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/models"
	"github.com/biometriscan/gateway/internal/services"
)

const testCSRF = "csrf-test-token"

type authStub struct {
	signIn    func(ctx context.Context, email, password string) (services.SignInSession, error)
	signOut   func(ctx context.Context, claims *auth.Claims) error
	signInHit int
}

func (s *authStub) SignIn(ctx context.Context, email, password string) (services.SignInSession, error) {
	s.signInHit++
	if s.signIn == nil {
		return services.SignInSession{}, services.ErrInvalidEmail
	}
	return s.signIn(ctx, email, password)
}

func (s *authStub) SignOut(ctx context.Context, claims *auth.Claims) error {
	if s.signOut == nil {
		return nil
	}
	return s.signOut(ctx, claims)
}

type checkerStub struct {
	active bool
}

func (c checkerStub) IsActive(context.Context, string) (bool, error) {
	return c.active, nil
}

func succeed(token string) func(context.Context, string, string) (services.SignInSession, error) {
	return func(_ context.Context, email, _ string) (services.SignInSession, error) {
		return services.SignInSession{
			Token:   token,
			Session: models.Session{ID: "sess-1", Email: email, ExpiresAt: time.Now().Add(time.Hour)},
			User:    models.User{ID: "user-1", Email: email},
		}, nil
	}
}

func fail(err error) func(context.Context, string, string) (services.SignInSession, error) {
	return func(context.Context, string, string) (services.SignInSession, error) {
		return services.SignInSession{}, err
	}
}

func newTokens(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return m
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: auth.CSRFCookieName, Value: testCSRF})
	return req
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.CSRFHeaderName, testCSRF)
	req.AddCookie(&http.Cookie{Name: auth.CSRFCookieName, Value: testCSRF})
	return req
}

func validForm() url.Values {
	return url.Values{
		"email":       {"ada@example.com"},
		"password":    {"secret123"},
		"csrfToken":   {testCSRF},
		"callbackUrl": {"/dashboard"},
	}
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
