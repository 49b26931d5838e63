// Package auth implements the trust boundary between the ingesting service
// and the processing robot: HS256 bearer tokens with a short lifetime, a
// revocation set consulted on every use, and the request guard every
// protected handler runs first.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/lestrrat-go/jwx/jwt"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

// Error types
var (
	// ErrNoAuthHeader indicates the request carried no Authorization header at all
	ErrNoAuthHeader = errors.New("auth header not found")

	// ErrTokenMissing indicates an Authorization header without a usable token
	ErrTokenMissing = errors.New("access token not found")

	// ErrTokenExpired indicates a token past its expiry
	ErrTokenExpired = errors.New("access token expired")

	// ErrTokenRevoked indicates a token invalidated before its natural expiry
	ErrTokenRevoked = errors.New("access token revoked")

	// ErrSignatureInvalid indicates a token whose signature does not verify
	ErrSignatureInvalid = errors.New("token signature invalid")
)

// DefaultTTL is the lifetime of interactively issued tokens.
const DefaultTTL = 3 * time.Hour

// Claims is the decoded payload of a verified token.
type Claims struct {
	AccountID int64
	Role      contentflow.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RevocationStore records revoked raw token values. Entries outlive the
// tokens they refer to; the store is never pruned.
type RevocationStore interface {
	RevokeToken(ctx context.Context, token string, revokedAt time.Time) error
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

// TokenService issues, verifies and revokes bearer tokens. Verification is
// self-contained (signature + expiry); only the revocation check touches
// the store.
type TokenService struct {
	ja      *jwtauth.JWTAuth
	ttl     time.Duration
	revoked RevocationStore
}

// NewTokenService creates a token service signing with the given shared
// secret. A non-positive ttl falls back to DefaultTTL.
func NewTokenService(secret []byte, ttl time.Duration, revoked RevocationStore) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{
		ja:      jwtauth.New("HS256", secret, nil),
		ttl:     ttl,
		revoked: revoked,
	}
}

// Issue produces a signed token with claims {account_id, role, iat, exp}.
// A non-positive ttl uses the service default.
func (s *TokenService) Issue(accountID int64, role contentflow.Role, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	claims := map[string]interface{}{
		"account_id": accountID,
		"role":       string(role),
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ttl)

	_, tokenString, err := s.ja.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return tokenString, nil
}

// Verify checks signature and expiry and returns the decoded claims. It
// fails with ErrTokenExpired past expiry and ErrSignatureInvalid when the
// signature does not match. Revocation is a separate, later check.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwtauth.VerifyToken(s.ja, tokenString)
	if err != nil {
		if errors.Is(err, jwtauth.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrSignatureInvalid
	}

	return claimsFromToken(token)
}

// IsRevoked reports whether the raw token value is in the revocation set.
func (s *TokenService) IsRevoked(ctx context.Context, tokenString string) (bool, error) {
	return s.revoked.IsTokenRevoked(ctx, tokenString)
}

// Revoke adds the raw token value to the revocation set. Revoking an
// already revoked token is a no-op.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) error {
	return s.revoked.RevokeToken(ctx, tokenString, time.Now().UTC())
}

// TokenFromHeader extracts the bearer token from an Authorization header
// value. It fails with ErrNoAuthHeader when the header is absent entirely
// and ErrTokenMissing when the header is present but holds no token.
func TokenFromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrNoAuthHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) < 2 {
		return "", ErrTokenMissing
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrTokenMissing
	}
	return token, nil
}

func claimsFromToken(token jwt.Token) (*Claims, error) {
	accountID, err := int64Claim(token, "account_id")
	if err != nil {
		return nil, err
	}

	roleVal, ok := token.Get("role")
	if !ok {
		return nil, fmt.Errorf("%w: role claim missing", ErrSignatureInvalid)
	}
	role, ok := roleVal.(string)
	if !ok {
		return nil, fmt.Errorf("%w: role claim is not a string", ErrSignatureInvalid)
	}

	return &Claims{
		AccountID: accountID,
		Role:      contentflow.Role(role),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
	}, nil
}

// int64Claim reads a numeric private claim. jwx decodes JSON numbers as
// float64, so both forms are accepted.
func int64Claim(token jwt.Token, name string) (int64, error) {
	val, ok := token.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s claim missing", ErrSignatureInvalid, name)
	}
	switch v := val.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s claim is not a number", ErrSignatureInvalid, name)
	}
}
