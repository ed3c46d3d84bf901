package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/wish-board/internal/apperror"
	"github.com/sakif/wish-board/internal/model"
)

// newTestDB returns a private in-memory database that is closed when the
// test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:   username,
		Email:      username + "@example.com",
		ProfilePic: "https://img.example.com/" + username + ".png",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Username: "ana", Email: "ana@example.com", PasswordHash: "$2a$hash"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set user.CreatedAt")
	}

	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Email != "ana@example.com" || got.PasswordHash != "$2a$hash" {
		t.Errorf("GetUserByID() = %+v", got)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ana")

	err := db.CreateUser(context.Background(), &model.User{Username: "other", Email: "ana@example.com"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateUser() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestGetUserByEmail(t *testing.T) {
	db := newTestDB(t)
	want := createTestUser(t, db, "ana")

	got, err := db.GetUserByEmail(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("GetUserByEmail() ID = %q, want %q", got.ID, want.ID)
	}

	_, err = db.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() missing = %v, want ErrNotFound", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestEmailOrUsernameTaken(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ana")

	tests := []struct {
		name     string
		email    string
		username string
		want     bool
	}{
		{name: "email taken", email: "ana@example.com", username: "fresh", want: true},
		{name: "username taken", email: "fresh@example.com", username: "ana", want: true},
		{name: "both free", email: "fresh@example.com", username: "fresh", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.EmailOrUsernameTaken(context.Background(), tt.email, tt.username)
			if err != nil {
				t.Fatalf("EmailOrUsernameTaken() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EmailOrUsernameTaken() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateUsername(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ana")

	got, err := db.UpdateUsername(context.Background(), user.ID, "ana-maria")
	if err != nil {
		t.Fatalf("UpdateUsername() error = %v", err)
	}
	if got.Username != "ana-maria" {
		t.Errorf("Username = %q, want %q", got.Username, "ana-maria")
	}

	_, err = db.UpdateUsername(context.Background(), "ghost", "x")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUsername() missing user = %v, want ErrNotFound", err)
	}
}
