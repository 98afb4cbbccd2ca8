package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TokenPair carries the issued access/refresh tokens.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService coordinates registration, login and the refresh-token flow.
type AuthService struct {
	users      repository.UserRepository
	refreshes  repository.RefreshTokenStore
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	RefreshTokenStore repository.RefreshTokenStore
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:     deps.UserRepo,
		refreshes: deps.RefreshTokenStore,
		tokenMgr: auth.NewTokenManager(
			cfg.Auth.AccessSecret,
			cfg.Auth.RefreshSecret,
			cfg.Auth.AccessTokenTTL,
			cfg.Auth.RefreshTokenTTL,
		),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates a new account. Role defaults to user; callers pass a
// non-empty role only from admin-driven flows.
func (s *AuthService) Register(ctx context.Context, name, email, password, rawRole string) (*domain.User, *TokenPair, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if len(name) < 2 || len(name) > 100 {
		return nil, nil, apperrors.NewValidationError("name must be between 2 and 100 characters", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, apperrors.NewValidationError("invalid email address", nil)
	}
	if len(password) < 6 {
		return nil, nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	role := domain.RoleUser
	if rawRole != "" {
		parsed, ok := domain.ParseRole(rawRole)
		if !ok {
			return nil, nil, apperrors.NewValidationError("invalid role", map[string]any{"role": rawRole})
		}
		role = parsed
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, apperrors.NewConflict("EMAIL_TAKEN", "email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies credentials, requires an active account and touches the
// last-login timestamp.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, nil, apperrors.NewUnauthorized("account is deactivated")
	}

	now := time.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	user.LastLogin = &now

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh validates a refresh token against its server-side record and
// returns a new access token bound to the same user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.tokenMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid refresh token")
	}
	if s.refreshes != nil {
		userID, err := s.refreshes.Get(ctx, claims.TokenID)
		if err != nil || userID != claims.UserID {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid refresh token")
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid refresh token")
	}

	token, expiresAt, err := s.tokenMgr.GenerateAccessToken(user)
	if err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	return token, expiresAt, nil
}

// Logout revokes the refresh token's server-side record.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" || s.refreshes == nil {
		return nil
	}
	claims, err := s.tokenMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	return s.refreshes.Delete(ctx, claims.TokenID)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issuePair(ctx context.Context, user *domain.User) (*TokenPair, error) {
	accessToken, accessExp, err := s.tokenMgr.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	refreshToken, tokenID, refreshExp, err := s.tokenMgr.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.refreshes != nil {
		if err := s.refreshes.Save(ctx, tokenID, user.ID, s.tokenMgr.RefreshTTL()); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}
