package auth

import (
	"context"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

// Identity is the typed result of a successful authentication: who is
// calling, with which role, under which raw token.
type Identity struct {
	AccountID int64
	Role      contentflow.Role
	Token     string
}

// Authenticate is the single composite check run at the start of every
// protected operation: extract the token from the Authorization header
// value, verify signature and expiry, then reject revoked tokens. Expiry
// wins over revocation, so an expired-and-revoked token still reports
// ErrTokenExpired.
func (s *TokenService) Authenticate(ctx context.Context, authHeader string) (*Identity, error) {
	tokenString, err := TokenFromHeader(authHeader)
	if err != nil {
		return nil, err
	}

	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	revoked, err := s.IsRevoked(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &Identity{
		AccountID: claims.AccountID,
		Role:      claims.Role,
		Token:     tokenString,
	}, nil
}
