package verifysdk

import (
	"context"
	"net/http"
)

// Liveness calls /livez.
func (c *Client) Liveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// Readiness calls /readyz. A degraded service answers 503, which is
// returned as an *APIError.
func (c *Client) Readiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out HealthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// JWKS retrieves the public keys for verifying access tokens offline.
func (c *Client) JWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/.well-known/jwks.json", nil)
	if err != nil {
		return nil, err
	}
	var out JWKSResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSigningKeys lists the keys currently signing access tokens. Admin only.
func (c *Client) ListSigningKeys(ctx context.Context) ([]SigningKeyInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/keys", nil)
	if err != nil {
		return nil, err
	}
	var out []SigningKeyInfo
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// RotateKey adds a signing key, optionally retiring the current ones. Admin only.
func (c *Client) RotateKey(ctx context.Context, retireExisting bool) (*RotateKeyResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/keys/rotate", RotateKeyRequest{RetireExisting: retireExisting})
	if err != nil {
		return nil, err
	}
	var out RotateKeyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
