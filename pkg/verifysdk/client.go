package verifysdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a small HTTP client for the voucher verification service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// AccessToken, when set, is sent as a bearer credential on every call.
	AccessToken string
}

// NewClient creates a client with a sensible default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithToken returns a copy of the client that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.AccessToken = token
	return &cp
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, password string) (*UserResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/users", RegisterRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail redeems an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*UserResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/users/verify", VerifyEmailRequest{Token: token})
	if err != nil {
		return nil, err
	}
	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/token", TokenRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserInfo returns the identity behind the client's access token.
func (c *Client) UserInfo(ctx context.Context) (*UserInfoResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/userinfo", nil)
	if err != nil {
		return nil, err
	}
	var out UserInfoResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit files a new verification request. Anonymous when the client has
// no access token.
func (c *Client) Submit(ctx context.Context, p Payload) (*Request, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/requests", p)
	if err != nil {
		return nil, err
	}
	var out Request
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Adjudicate resolves a pending request to a terminal status.
func (c *Client) Adjudicate(ctx context.Context, id, status string) (*Request, error) {
	resp, err := c.do(ctx, http.MethodPatch, "/v1/requests/"+url.PathEscape(id), AdjudicateRequest{Status: status})
	if err != nil {
		return nil, err
	}
	var out Request
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a single request.
func (c *Client) Get(ctx context.Context, id string) (*Request, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/requests/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var out Request
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMine lists requests owned by the caller.
func (c *Client) ListMine(ctx context.Context) ([]Request, error) {
	return c.list(ctx, "/v1/requests/mine")
}

// ListAll lists every request, newest first. Admin only.
func (c *Client) ListAll(ctx context.Context) ([]Request, error) {
	return c.list(ctx, "/v1/requests")
}

func (c *Client) list(ctx context.Context, path string) ([]Request, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out RequestListResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Requests, nil
}
