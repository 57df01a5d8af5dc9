package httpx

import (
	"net/http"
	"slices"
)

// RequireRole the caller must hold one of the provided roles. Must be
// chained after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, roleFromCtx(r.Context())) {
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "forbidden",
					"error_description": "the caller's role may not perform this action",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
