package service

import (
	"context"
	"errors"
	"strings"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/safar/go-bookstore/internal/validation"
)

const badCredentials = "invalid email or password"

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthPayload struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, _ auth.RequestContext, in RegisterInput) (*AuthPayload, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = store.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := store.CreateUser(ctx, s.db, in.Name, in.Email, hash, models.RoleUser)
	if err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return nil, apperr.Validation("email", "already in use")
		}
		return nil, persistence("register", err)
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return s.issue(user)
}

// Login fails the same way for an unknown email and a wrong password.
func (s *Service) Login(ctx context.Context, _ auth.RequestContext, in LoginInput) (*AuthPayload, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := store.GetUserByEmail(ctx, s.db, in.Email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, apperr.Unauthenticated(badCredentials)
		}
		return nil, persistence("login", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("stored password hash unusable")
		return nil, apperr.Unauthenticated(badCredentials)
	}
	if !ok {
		return nil, apperr.Unauthenticated(badCredentials)
	}

	return s.issue(user)
}

func (s *Service) issue(user *models.User) (*AuthPayload, error) {
	token, err := s.gate.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthPayload{Token: token, User: user}, nil
}

func (s *Service) GetMe(ctx context.Context, rc auth.RequestContext) (*models.User, error) {
	p, err := rc.RequireUser()
	if err != nil {
		return nil, err
	}

	user, err := store.GetUser(ctx, s.db, p.UserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, apperr.NotFound("user", p.UserID)
		}
		return nil, persistence("get user", err)
	}
	return user, nil
}

func (s *Service) GetUsers(ctx context.Context, rc auth.RequestContext, page, pageSize int) (*store.OffsetPage, error) {
	if _, err := rc.RequireAdmin(); err != nil {
		return nil, err
	}

	page, pageSize, err := pageOrDefault(page, pageSize)
	if err != nil {
		return nil, err
	}

	users, err := store.ListUsers(ctx, s.db, page, pageSize)
	if err != nil {
		return nil, persistence("list users", err)
	}
	return users, nil
}

func pageOrDefault(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return 0, 0, apperr.Validation("page", "must be at least 1")
	}
	pageSize, err := limitOrDefault("page_size", pageSize, DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}
