package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionCookieName carries the session token for browser clients.
const SessionCookieName = "session_token"

var ErrInvalidToken = errors.New("invalid session token")

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UserClaimsKey is the context key for user claims.
type contextKey string

const UserClaimsKey = contextKey("userClaims")

// Manager signs and validates session tokens.
type Manager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewManager creates a Manager with an HMAC secret and token lifetime.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{key: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// GenerateJWT creates a new token for a user. The returned claims carry the jti
// that identifies the server-side session record.
func (m *Manager) GenerateJWT(userID, email string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateJWT parses and validates a JWT string.
func (m *Manager) ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest extracts a session token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SessionChecker decides whether a validated token's session is still live.
type SessionChecker interface {
	IsActive(ctx context.Context, sessionID string) (bool, error)
}

// Authenticate validates the request's token and, when checker is set, its session record.
func (m *Manager) Authenticate(r *http.Request, checker SessionChecker) (*Claims, error) {
	tokenStr := TokenFromRequest(r)
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	claims, err := m.ValidateJWT(tokenStr)
	if err != nil {
		return nil, err
	}
	if checker != nil {
		active, err := checker.IsActive(r.Context(), claims.ID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// ClaimsFromContext returns claims stored by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

// JWTMiddleware protects API routes, answering 401 without a live session.
func (m *Manager) JWTMiddleware(checker SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.Authenticate(r, checker)
			if err != nil {
				http.Error(w, "Invalid auth token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession protects pages, redirecting browsers to signInPath with the
// current path as callbackUrl.
func (m *Manager) RequireSession(checker SessionChecker, signInPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.Authenticate(r, checker)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					log.Error().Err(err).Msg("Session lookup failed")
				}
				http.Redirect(w, r, signInPath+"?callbackUrl="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
