package verifysdk

import (
	"time"

	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	// Error is a machine readable code (e.g. "not_found", "already_terminal")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Verification requests
// ============================================================================

// Payload is the claim being submitted. It never changes after creation.
type Payload struct {
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Phone  string  `json:"phone,omitempty"`
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

// Request is a verification request as returned by the API and carried in
// real-time events. SubmitterIsRegistered means the submitter's email was
// verified when the request was made, not merely that a bearer token was sent.
type Request struct {
	ID                    string    `json:"id"`
	OwnerUserID           string    `json:"owner_user_id,omitempty"`
	SubmitterIsRegistered bool      `json:"submitter_is_registered"`
	Payload               Payload   `json:"payload"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// AdjudicateRequest is the body of PATCH /v1/requests/{id}.
type AdjudicateRequest struct {
	// Status is one of "valid", "invalid", "already_used"
	Status string `json:"status"`
}

// RequestListResponse wraps list endpoints.
type RequestListResponse struct {
	Requests []Request `json:"requests"`
}

// ============================================================================
// Accounts and tokens
// ============================================================================

// RegisterRequest is the body of POST /v1/users.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse describes an account.
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
}

// VerifyEmailRequest is the body of POST /v1/users/verify.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// TokenRequest is the body of POST /v1/token.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a signed access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// UserInfoResponse is the identity triple behind an access token.
type UserInfoResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned from /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists the readiness of critical dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// ============================================================================
// JWKS
// ============================================================================

// JWKSResponse contains the public keys access tokens are signed with.
type JWKSResponse jwtx.JWKS

// ============================================================================
// Signing keys
// ============================================================================

// RotateKeyRequest is the body of POST /v1/keys/rotate.
type RotateKeyRequest struct {
	// RetireExisting stops every currently active key from signing. Retired
	// keys stay in the JWKS until the process restarts.
	RetireExisting bool `json:"retire_existing"`
}

// SigningKeyInfo describes an active signing key.
type SigningKeyInfo struct {
	Kid       string `json:"kid"`
	Algorithm string `json:"alg"`
}

// RotateKeyResponse reports the outcome of a rotation.
type RotateKeyResponse struct {
	NewKey      SigningKeyInfo `json:"new_key"`
	RetiredKids []string       `json:"retired_kids,omitempty"`
	ActiveKeys  int            `json:"active_keys"`
}
