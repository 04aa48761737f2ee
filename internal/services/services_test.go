package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/biometriscan/gateway/internal/database"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestUserService(t *testing.T, db *sql.DB) *UserService {
	t.Helper()
	svc := NewUserService(db)
	svc.cost = bcrypt.MinCost
	return svc
}

func seedUser(t *testing.T, svc *UserService, email, password string) string {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), email, "Test User", password)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}
