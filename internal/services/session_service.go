package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/biometriscan/gateway/internal/models"
)

// SessionServiceProvider tracks issued session tokens so they can be revoked.
type SessionServiceProvider interface {
	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	IsActive(ctx context.Context, id string) (bool, error)
	RevokeSession(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionService stores sessions in sqlite.
type SessionService struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(db *sql.DB) *SessionService {
	return &SessionService{db: db, now: time.Now}
}

// CreateSession records a newly issued session.
func (s *SessionService) CreateSession(ctx context.Context, session models.Session) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO sessions (id, user_id, email, expires_at) VALUES (?, ?, ?, ?)",
		session.ID, session.UserID, session.Email, session.ExpiresAt.Unix())
	return err
}

// GetSession retrieves a session by id.
func (s *SessionService) GetSession(ctx context.Context, id string) (models.Session, error) {
	var (
		session   models.Session
		expiresAt int64
		revokedAt sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx, "SELECT id, user_id, email, expires_at, revoked_at, created_at FROM sessions WHERE id = ?", id)
	if err := row.Scan(&session.ID, &session.UserID, &session.Email, &expiresAt, &revokedAt, &session.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	session.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if revokedAt.Valid {
		t := time.Unix(revokedAt.Int64, 0).UTC()
		session.RevokedAt = &t
	}
	return session, nil
}

// IsActive reports whether the session exists, is not revoked and has not expired.
func (s *SessionService) IsActive(ctx context.Context, id string) (bool, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return session.Active(s.now()), nil
}

// RevokeSession marks a session as signed out. Revoking twice is not an error.
func (s *SessionService) RevokeSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?", s.now().Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// PurgeExpired deletes expired and revoked sessions, returning how many were removed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ? OR revoked_at IS NOT NULL", s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
