package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TokenManager issues and validates the access/refresh JWT pair. Access and
// refresh tokens are signed with separate secrets.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessClaims describes the access token payload.
type AccessClaims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims describes the refresh token payload. The token id is tracked
// server-side so refresh tokens can be revoked.
type RefreshClaims struct {
	UserID  string `json:"uid"`
	TokenID string `json:"jti"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived access token for the user.
func (tm *TokenManager) GenerateAccessToken(user *domain.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.accessTTL)
	claims := &AccessClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// GenerateRefreshToken signs a long-lived refresh token and returns its id
// for server-side tracking.
func (tm *TokenManager) GenerateRefreshToken(userID string) (token, tokenID string, expiresAt time.Time, err error) {
	tokenID = uuid.NewString()
	expiresAt = time.Now().Add(tm.refreshTTL)
	claims := &RefreshClaims{
		UserID:  userID,
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, tokenID, expiresAt, nil
}

// RefreshTTL exposes the refresh token lifetime for store expiry.
func (tm *TokenManager) RefreshTTL() time.Duration {
	return tm.refreshTTL
}

// ParseAccessToken validates an access token and returns its claims.
func (tm *TokenManager) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := tm.parse(tokenStr, claims, tm.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (tm *TokenManager) ParseRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := tm.parse(tokenStr, claims, tm.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (tm *TokenManager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token claims")
	}
	return nil
}
