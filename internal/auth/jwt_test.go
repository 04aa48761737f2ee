package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type checkerStub struct {
	active bool
	err    error
	calls  []string
}

func (c *checkerStub) IsActive(_ context.Context, id string) (bool, error) {
	c.calls = append(c.calls, id)
	return c.active, c.err
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestGenerateAndValidate(t *testing.T) {
	m := newManager(t)
	token, issued, err := m.GenerateJWT("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if issued.ID == "" {
		t.Fatalf("expected jti")
	}

	claims, err := m.ValidateJWT(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "user@example.com" || claims.ID != issued.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsExpiredAndForeignTokens(t *testing.T) {
	m := newManager(t)
	token, _, err := m.GenerateJWT("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other, _ := NewManager("other-secret", time.Hour)
	if _, err := other.ValidateJWT(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign key, got %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := m.ValidateJWT(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("  ", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	if got := TokenFromRequest(req); got != "cookie-token" {
		t.Fatalf("unexpected cookie token %q", got)
	}
	req.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(req); got != "header-token" {
		t.Fatalf("header must win, got %q", got)
	}
}

func TestJWTMiddleware(t *testing.T) {
	m := newManager(t)
	token, _, _ := m.GenerateJWT("user-1", "user@example.com")
	checker := &checkerStub{active: true}

	var seen *Claims
	h := m.JWTMiddleware(checker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/gateway/events", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/gateway/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || seen == nil || seen.UserID != "user-1" {
		t.Fatalf("expected claims in context, status %d", rr.Code)
	}

	checker.active = false
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session, got %d", rr.Code)
	}
}

func TestRequireSessionRedirectsWithCallback(t *testing.T) {
	m := newManager(t)
	h := m.RequireSession(nil, "/signin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/capture?mode=live", nil))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "/signin?callbackUrl=") || !strings.Contains(loc, "%2Fcapture%3Fmode%3Dlive") {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestVerifyCSRF(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if !VerifyCSRF(req, "") {
		t.Fatalf("JSON request with no cookie and no token should pass")
	}
	if VerifyCSRF(req, "tok") {
		t.Fatalf("token without cookie must fail")
	}
	req.AddCookie(CSRFCookie("tok", false))
	if !VerifyCSRF(req, "tok") {
		t.Fatalf("matching token must pass")
	}
	if VerifyCSRF(req, "other") || VerifyCSRF(req, "") {
		t.Fatalf("mismatched or missing token must fail")
	}
}

func TestVerifyCSRFRequiresTokenForForms(t *testing.T) {
	for _, ct := range []string{"application/x-www-form-urlencoded", "multipart/form-data; boundary=x", "text/plain", ""} {
		req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader("email=a%40b.co"))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		if VerifyCSRF(req, "") {
			t.Fatalf("%q: cookieless request without a token must fail", ct)
		}
	}
}

func TestNewCSRFTokenUnique(t *testing.T) {
	a, err := NewCSRFToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	b, _ := NewCSRFToken()
	if a == b || len(a) < 32 {
		t.Fatalf("unexpected tokens %q %q", a, b)
	}
}
