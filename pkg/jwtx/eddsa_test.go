package jwtx

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/vouchercheck/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T, kid string) Signer {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	s, err := NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	return s
}

func TestEdDSASignAndVerify(t *testing.T) {
	s := newTestSigner(t, "k1")
	ks := NewKeySet()
	require.NoError(t, ks.AddSigner(s))

	v := NewCommonEdDSA(ks, "iss", nil)
	tok, err := s.Sign(NewAccessClaims("user-1", "a@example.com", "user", time.Minute, "iss", nil, time.Now()))
	require.NoError(t, err)

	c, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, "a@example.com", c.Email)
	require.Equal(t, "user", c.Role)
}

func TestEdDSAVerifyRejects(t *testing.T) {
	s := newTestSigner(t, "k1")
	other := newTestSigner(t, "k2")

	ks := NewKeySet()
	require.NoError(t, ks.AddSigner(s))
	v := NewCommonEdDSA(ks, "iss", nil)

	t.Run("unknown kid", func(t *testing.T) {
		tok, err := other.Sign(NewAccessClaims("u", "", "user", time.Minute, "iss", nil, time.Now()))
		require.NoError(t, err)
		_, err = v.Verify(tok)
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := s.Sign(NewAccessClaims("u", "", "user", time.Minute, "someone-else", nil, time.Now()))
		require.NoError(t, err)
		_, err = v.Verify(tok)
		require.ErrorIs(t, err, ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := s.Sign(NewAccessClaims("u", "", "user", time.Minute, "iss", nil, time.Now().Add(-time.Hour)))
		require.NoError(t, err)
		_, err = v.Verify(tok)
		require.ErrorIs(t, err, ErrExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		require.Error(t, err)
	})
}

func TestJWKRoundTrip(t *testing.T) {
	s := newTestSigner(t, "k1")
	j := s.PublicJWK()

	require.Equal(t, "OKP", j.Kty)
	require.Equal(t, "Ed25519", j.Crv)
	require.Equal(t, "k1", j.Kid)

	_, err := j.PublicKey()
	require.NoError(t, err)

	j.Crv = "X25519"
	_, err = j.PublicKey()
	require.Error(t, err)
}
