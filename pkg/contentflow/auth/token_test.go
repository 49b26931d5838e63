package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
	memoryrepo "github.com/nmelnikov/contentflow/pkg/contentflow/repo/memory"
)

func newTestTokenService(secret string) *TokenService {
	return NewTokenService([]byte(secret), DefaultTTL, memoryrepo.New())
}

// issueExpired encodes a token whose expiry already passed, signed with the
// service's own secret.
func issueExpired(t *testing.T, svc *TokenService, accountID int64, role contentflow.Role) string {
	t.Helper()
	claims := map[string]interface{}{
		"account_id": accountID,
		"role":       string(role),
	}
	jwtauth.SetIssuedAt(claims, time.Now().Add(-2*time.Hour))
	jwtauth.SetExpiry(claims, time.Now().Add(-time.Hour))
	_, tokenString, err := svc.ja.Encode(claims)
	require.NoError(t, err)
	return tokenString
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestTokenService("test-secret")

	token, err := svc.Issue(42, contentflow.RoleRobot, 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, contentflow.RoleRobot, claims.Role)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), claims.ExpiresAt, 5*time.Second)
}

func TestVerifyExpired(t *testing.T) {
	svc := newTestTokenService("test-secret")

	token := issueExpired(t, svc, 1, contentflow.RoleUser)

	_, err := svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := newTestTokenService("secret-one")
	verifier := newTestTokenService("secret-two")

	token, err := issuer.Issue(1, contentflow.RoleUser, 0)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	svc := newTestTokenService("test-secret")

	_, err := svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestRevoke(t *testing.T) {
	svc := newTestTokenService("test-secret")
	ctx := context.Background()

	token, err := svc.Issue(1, contentflow.RoleUser, 0)
	require.NoError(t, err)

	revoked, err := svc.IsRevoked(ctx, token)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Revoke(ctx, token))

	revoked, err = svc.IsRevoked(ctx, token)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Verification ignores revocation; the guard handles it separately.
	_, err = svc.Verify(token)
	assert.NoError(t, err)

	// Revoking again is a no-op.
	require.NoError(t, svc.Revoke(ctx, token))
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"missing header", "", "", ErrNoAuthHeader},
		{"scheme only", "Bearer", "", ErrTokenMissing},
		{"scheme with blank token", "Bearer   ", "", ErrTokenMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokenFromHeader(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestTokenService("test-secret")
	ctx := context.Background()

	token, err := svc.Issue(7, contentflow.RoleAdmin, 0)
	require.NoError(t, err)

	identity, err := svc.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), identity.AccountID)
	assert.Equal(t, contentflow.RoleAdmin, identity.Role)
	assert.Equal(t, token, identity.Token)

	t.Run("revoked token rejected", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, token))
		_, err := svc.Authenticate(ctx, "Bearer "+token)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("expiry wins over revocation", func(t *testing.T) {
		expired := issueExpired(t, svc, 7, contentflow.RoleAdmin)
		require.NoError(t, svc.Revoke(ctx, expired))

		_, err := svc.Authenticate(ctx, "Bearer "+expired)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrNoAuthHeader)
	})
}
