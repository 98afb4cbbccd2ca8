package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// UserService covers admin-driven account management.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, bcryptCost int) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost}
}

// UserUpdateInput carries the admin-mutable account fields. Role changes go
// through this path only; the route is admin-gated.
type UserUpdateInput struct {
	Name     *string
	Email    *string
	Role     *string
	IsActive *bool
}

// UserCreateInput carries the admin-provisioning payload. Unlike
// self-registration, any role may be set here.
type UserCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// CreateUser provisions an account without issuing a session.
func (s *UserService) CreateUser(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if len(name) < 2 || len(name) > 100 {
		return nil, apperrors.NewValidationError("name must be between 2 and 100 characters", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email address", nil)
	}
	if len(input.Password) < 6 {
		return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	role := domain.RoleUser
	if input.Role != "" {
		parsed, ok := domain.ParseRole(input.Role)
		if !ok {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
		}
		role = parsed
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("EMAIL_TAKEN", "email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListUsers returns a page of accounts.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// GetUser fetches a single account.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateUser applies the given field updates.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UserUpdateInput) (*domain.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if len(name) < 2 || len(name) > 100 {
			return nil, apperrors.NewValidationError("name must be between 2 and 100 characters", nil)
		}
		user.Name = name
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, apperrors.NewValidationError("invalid email address", nil)
		}
		if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing.ID != user.ID {
			return nil, apperrors.NewConflict("EMAIL_TAKEN", "email already registered", nil)
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		user.Email = email
	}
	if input.Role != nil {
		role, ok := domain.ParseRole(*input.Role)
		if !ok {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *input.Role})
		}
		user.Role = role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// DeleteUser removes an account. Admins cannot remove themselves.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return apperrors.NewValidationError("cannot delete your own account", nil)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperrors.NewConflict("USER_HAS_RECORDS", "user is still referenced by tickets or comments", nil)
		}
		return apperrors.MapError(err)
	}
	return nil
}

// ListAgents returns the active staff accounts used as assignee candidates.
func (s *UserService) ListAgents(ctx context.Context) ([]domain.User, error) {
	agents, err := s.users.ListAgents(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}
