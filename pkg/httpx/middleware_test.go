package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func newKeys(t *testing.T) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "iss", NumKeys: 1})
	require.NoError(t, err)
	return km
}

func sign(t *testing.T, km *jwtx.KeyManager, c jwtx.Claims) string {
	t.Helper()
	tok, err := km.Sign(c)
	require.NoError(t, err)
	return tok
}

func TestAuthnMiddleware(t *testing.T) {
	km := newKeys(t)

	var seen jwtx.Claims
	h := httpx.AuthnMiddleware(km.Verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	do := func(authz string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, do(""))
	require.Equal(t, http.StatusUnauthorized, do("Bearer garbage"))

	verify := sign(t, km, jwtx.NewPurposeClaims("u1", "u@example.com", jwtx.PurposeVerifyEmail, time.Hour, "iss", time.Now()))
	require.Equal(t, http.StatusUnauthorized, do("Bearer "+verify))

	access := sign(t, km, jwtx.NewAccessClaims("u1", "u@example.com", "admin", time.Hour, "iss", nil, time.Now()))
	require.Equal(t, http.StatusOK, do("Bearer "+access))
	require.Equal(t, "u1", seen.Subject)
	require.Equal(t, "admin", seen.Role)
}

func TestOptionalAuthnMiddleware(t *testing.T) {
	km := newKeys(t)

	var authed bool
	h := httpx.OptionalAuthnMiddleware(km.Verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed = httpx.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, authed)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, km, jwtx.NewAccessClaims("u1", "", "user", time.Hour, "iss", nil, time.Now())))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, authed)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	km := newKeys(t)
	h := httpx.Chain(okHandler(), httpx.AuthnMiddleware(km.Verifier), httpx.RequireRole("admin"))

	do := func(role string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, km, jwtx.NewAccessClaims("u1", "", role, time.Hour, "iss", nil, time.Now())))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusForbidden, do("user"))
	require.Equal(t, http.StatusOK, do("admin"))
}
