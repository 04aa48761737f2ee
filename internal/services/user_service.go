package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/biometriscan/gateway/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService stores credentials in sqlite with bcrypt hashes.
type UserService struct {
	db   *sql.DB
	cost int
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, email, name, created_at FROM users WHERE id = ?", id)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user with ID %s: %w", id, ErrUserNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?", normalizeEmail(email))
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user with email %s: %w", email, ErrUserNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, email, name, password string) (models.User, error) {
	email = normalizeEmail(email)
	if _, err := s.GetUserByEmail(ctx, email); err == nil {
		return models.User{}, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashedPassword),
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO users(id, email, name, password_hash) VALUES(?, ?, ?, ?)",
		user.ID, user.Email, user.Name, user.PasswordHash)
	if err != nil {
		return models.User{}, err
	}

	return s.GetUserByID(ctx, user.ID)
}

// AuthenticateUser verifies a user's credentials. An unknown address yields
// ErrInvalidEmail and a wrong password ErrInvalidPassword.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidEmail
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidPassword
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// Authorize lets UserService act as the local credentials provider.
func (s *UserService) Authorize(ctx context.Context, email, password string) (models.User, error) {
	return s.AuthenticateUser(ctx, email, password)
}
