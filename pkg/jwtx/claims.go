package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 1 * time.Hour

	// DefaultVerifyEmailTTL bounds how long an email verification link works.
	DefaultVerifyEmailTTL = 48 * time.Hour
)

// Token purposes. An access token carries no purpose; anything else is a
// single-use style token that must never be accepted as a bearer credential.
const (
	PurposeAccess      = ""
	PurposeVerifyEmail = "verify_email"
)

// Claims are the token claims shared by the HTTP layer and the real-time
// channel. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the user at issue time.
	Email string `json:"email,omitempty"`

	// Role is "user" or "admin".
	Role string `json:"role,omitempty"`

	// Purpose separates access tokens from email verification tokens.
	Purpose string `json:"purpose,omitempty"`
}

// NewAccessClaims builds minimally-correct access token claims.
func NewAccessClaims(
	subject, email, role string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email: email,
		Role:  role,
	}
}

// NewPurposeClaims builds claims for a non-access token such as an email
// verification link.
func NewPurposeClaims(subject, email, purpose string, ttl time.Duration, issuer string, now time.Time) Claims {
	c := NewAccessClaims(subject, email, "", ttl, issuer, nil, now)
	c.Purpose = purpose
	return c
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// ValidatePurpose makes sure a token minted for one job is not replayed for
// another (e.g. a verification link used as a bearer token).
func (c *Claims) ValidatePurpose(expected string) error {
	if c.Purpose != expected {
		return ErrPurpose
	}
	return nil
}
