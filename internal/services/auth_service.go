package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/models"
	"github.com/rs/zerolog/log"
)

// SignInSession is what a successful credentials sign-in hands back to the HTTP layer.
type SignInSession struct {
	Token   string
	Session models.Session
	User    models.User
}

// AuthServiceProvider is the session-management surface used by handlers.
type AuthServiceProvider interface {
	SignIn(ctx context.Context, email, password string) (SignInSession, error)
	SignOut(ctx context.Context, claims *auth.Claims) error
}

// AuthService ties a credentials provider to token issuance and session storage.
type AuthService struct {
	provider CredentialsProvider
	tokens   *auth.Manager
	sessions SessionServiceProvider
	events   EventServiceProvider
}

// NewAuthService creates a new AuthService. events may be nil.
func NewAuthService(provider CredentialsProvider, tokens *auth.Manager, sessions SessionServiceProvider, events EventServiceProvider) *AuthService {
	return &AuthService{provider: provider, tokens: tokens, sessions: sessions, events: events}
}

// SignIn authorizes the credentials and opens a session.
// Credential failures are returned as ErrInvalidEmail, ErrInvalidPassword or another
// error for which IsCredentialsError is true; anything else is an infrastructure fault.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (SignInSession, error) {
	email = normalizeEmail(email)
	user, err := s.provider.Authorize(ctx, email, password)
	if err != nil {
		if IsCredentialsError(err) {
			log.Warn().Err(err).Str("email", email).Msg("Failed authentication attempt")
			record(ctx, s.events, models.EventSignInFail, "warn", fmt.Sprintf("Sign-in failed: %s", ErrorCode(err)), &email)
			return SignInSession{}, err
		}
		log.Error().Err(err).Str("email", email).Msg("Credentials provider failed")
		return SignInSession{}, err
	}

	token, claims, err := s.tokens.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return SignInSession{}, fmt.Errorf("issue token: %w", err)
	}
	session := models.Session{
		ID:        claims.ID,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return SignInSession{}, fmt.Errorf("store session: %w", err)
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User signed in")
	record(ctx, s.events, models.EventSignInSuccess, "info", "Sign in successful", &user.Email)
	return SignInSession{Token: token, Session: session, User: user}, nil
}

// SignOut revokes the session identified by the claims.
func (s *AuthService) SignOut(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return ErrSessionNotFound
	}
	if err := s.sessions.RevokeSession(ctx, claims.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	record(ctx, s.events, models.EventSignOut, "info", "Signed out", &claims.Email)
	return nil
}
