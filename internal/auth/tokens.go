package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// Claims is the identity projection stored against a bearer token.
type Claims struct {
	UserID      int64  `json:"user_id"`
	CompanyID   int64  `json:"company_id"`
	AccessLevel string `json:"access_level"`
	RoleCode    string `json:"role_code"`
}

// TokenStore keeps opaque bearer tokens in Redis. Tokens are revocable by
// deletion and expire with the configured TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue mints a new token for the claims.
func (s *TokenStore) Issue(ctx context.Context, claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKey(token), payload, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup resolves a token to its claims. Unknown or expired tokens report
// shared.ErrUnauthenticated.
func (s *TokenStore) Lookup(ctx context.Context, token string) (Claims, error) {
	payload, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Claims{}, shared.ErrUnauthenticated
		}
		return Claims{}, err
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Revoke deletes a token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, tokenKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

func tokenKey(token string) string {
	return "token:" + token
}
