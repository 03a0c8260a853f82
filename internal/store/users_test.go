package store

import (
	"context"
	"testing"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/testutil/pgtest"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ada@Example.COM "); got != "ada@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	db := pgtest.Start(t)
	ctx := context.Background()

	user := createUser(t, db, "Ada@Example.com")
	if user.Email != "ada@example.com" || user.Role != models.RoleUser {
		t.Errorf("unexpected user: %+v", user)
	}

	_, err := CreateUser(ctx, db, "Other", "ADA@example.com", "hash", models.RoleUser)
	if err != database.ErrEmailTaken {
		t.Errorf("Expected ErrEmailTaken, got: %v", err)
	}

	got, err := GetUserByEmail(ctx, db, " ada@EXAMPLE.com")
	if err != nil || got.ID != user.ID {
		t.Errorf("Lookup by email: got=%+v err=%v", got, err)
	}

	if _, err := GetUser(ctx, db, user.ID+1000); err != database.ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestUpsertAdminPromotesExistingUser(t *testing.T) {
	db := pgtest.Start(t)
	ctx := context.Background()

	user := createUser(t, db, "boss@example.com")

	admin, err := UpsertAdmin(ctx, db, "Boss", "boss@example.com", "newhash")
	if err != nil {
		t.Fatalf("Upsert admin: %v", err)
	}
	if admin.ID != user.ID || admin.Role != models.RoleAdmin || admin.PasswordHash != "newhash" {
		t.Errorf("unexpected admin: %+v", admin)
	}

	fresh, err := UpsertAdmin(ctx, db, "Root", "root@example.com", "hash")
	if err != nil {
		t.Fatalf("Upsert new admin: %v", err)
	}

	page, err := ListUsers(ctx, db, 1, 10)
	if err != nil {
		t.Fatalf("List users: %v", err)
	}
	users := page.Items.([]models.User)
	if page.Total != 2 || len(users) != 2 || users[0].ID != fresh.ID {
		t.Errorf("unexpected users page: total=%d", page.Total)
	}
}
