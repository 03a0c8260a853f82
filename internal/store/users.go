package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at, version`

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// NormalizeEmail lowercases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func CreateUser(ctx context.Context, db database.DBTX, name, email, passwordHash string, role models.Role) (*models.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query, name, NormalizeEmail(email), passwordHash, role))
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// UpsertAdmin creates or promotes the user with the given email to admin.
func UpsertAdmin(ctx context.Context, db database.DBTX, name, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, 'admin', NOW(), NOW(), 1)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    password_hash = EXCLUDED.password_hash,
		    role = 'admin',
		    updated_at = NOW(),
		    version = users.version + 1
		RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query, name, NormalizeEmail(email), passwordHash))
	if err != nil {
		return nil, fmt.Errorf("upsert admin: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db database.DBTX, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db database.DBTX, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, db database.DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}
