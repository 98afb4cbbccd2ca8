package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshTokenNotFound signals an unknown or revoked refresh token.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// RefreshTokenStore tracks issued refresh tokens so they can be validated on
// use and revoked on logout.
type RefreshTokenStore interface {
	Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	Get(ctx context.Context, tokenID string) (string, error)
	Delete(ctx context.Context, tokenID string) error
}

type redisRefreshTokenStore struct {
	client *redis.Client
}

// NewRefreshTokenStore returns a Redis-backed store.
func NewRefreshTokenStore(client *redis.Client) RefreshTokenStore {
	return &redisRefreshTokenStore{client: client}
}

func tokenKey(tokenID string) string {
	return "refresh_token:" + tokenID
}

func (s *redisRefreshTokenStore) Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, tokenKey(tokenID), userID, ttl).Err()
}

func (s *redisRefreshTokenStore) Get(ctx context.Context, tokenID string) (string, error) {
	val, err := s.client.Get(ctx, tokenKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrRefreshTokenNotFound
		}
		return "", err
	}
	return val, nil
}

func (s *redisRefreshTokenStore) Delete(ctx context.Context, tokenID string) error {
	return s.client.Del(ctx, tokenKey(tokenID)).Err()
}
