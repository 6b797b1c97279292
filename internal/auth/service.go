package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gemin-erp/gemin-erp/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates email/password credentials. Unknown accounts,
// inactive accounts and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(ctx, Claims{
		UserID:      user.ID,
		CompanyID:   user.CompanyID,
		AccessLevel: user.AccessLevel,
		RoleCode:    user.RoleCode,
	})
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// LookupToken resolves a bearer token to its claims.
func (s *Service) LookupToken(ctx context.Context, token string) (Claims, error) {
	return s.tokens.Lookup(ctx, token)
}

// TokenTTL reports how long issued tokens live.
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
