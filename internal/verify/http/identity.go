package http

import (
	"context"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
)

// identityFromContext returns the caller resolved by the authn middleware.
func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	c, ok := httpx.ClaimsFromContext(ctx)
	if !ok || c.Subject == "" {
		return domain.Identity{}, false
	}
	return domain.Identity{UserID: c.Subject, Email: c.Email, Role: c.Role}, true
}
