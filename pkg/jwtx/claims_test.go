package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewAccessClaims(t *testing.T) {
	now := time.Now().UTC()
	c := NewAccessClaims("user-1", "a@example.com", "admin", time.Hour, "issuer", []string{"aud"}, now)

	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, "a@example.com", c.Email)
	require.Equal(t, "admin", c.Role)
	require.Equal(t, PurposeAccess, c.Purpose)
	require.Equal(t, "issuer", c.Issuer)
	require.Equal(t, jwt.ClaimStrings{"aud"}, c.Audience)
	require.NotEmpty(t, c.ID)
	require.WithinDuration(t, now.Add(time.Hour), c.ExpiresAt.Time, time.Second)
}

func TestNewPurposeClaims(t *testing.T) {
	c := NewPurposeClaims("user-1", "a@example.com", PurposeVerifyEmail, time.Hour, "issuer", time.Now())

	require.Empty(t, c.Role)
	require.NoError(t, c.ValidatePurpose(PurposeVerifyEmail))
	require.ErrorIs(t, c.ValidatePurpose(PurposeAccess), ErrPurpose)
}

func TestClaimsValidation(t *testing.T) {
	now := time.Now().UTC()

	t.Run("issuer", func(t *testing.T) {
		c := NewAccessClaims("u", "", "user", time.Hour, "good", nil, now)
		require.NoError(t, c.ValidateIssuer("good"))
		require.NoError(t, c.ValidateIssuer(""))
		require.ErrorIs(t, c.ValidateIssuer("bad"), ErrIssuer)
	})

	t.Run("audience", func(t *testing.T) {
		c := NewAccessClaims("u", "", "user", time.Hour, "iss", []string{"a", "b"}, now)
		require.NoError(t, c.ValidateAudience(nil))
		require.NoError(t, c.ValidateAudience([]string{"x", "b"}))
		require.ErrorIs(t, c.ValidateAudience([]string{"x"}), ErrAudience)
	})

	t.Run("expired", func(t *testing.T) {
		c := NewAccessClaims("u", "", "user", time.Minute, "iss", nil, now.Add(-time.Hour))
		require.ErrorIs(t, c.ValidateExpiry(), ErrExpired)
		require.NoError(t, c.ValidateExpiryWithLeeway(2*time.Hour))
	})

	t.Run("not yet valid", func(t *testing.T) {
		c := NewAccessClaims("u", "", "user", time.Hour, "iss", nil, now.Add(10*time.Minute))
		require.ErrorIs(t, c.ValidateExpiry(), ErrNotYetValid)
	})
}

func TestNewJTIUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		j := NewJTI()
		_, dup := seen[j]
		require.False(t, dup)
		seen[j] = struct{}{}
	}
}
