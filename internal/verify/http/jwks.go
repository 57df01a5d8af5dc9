package http

import (
	"net/http"

	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

// JWKSHandler exposes the public keys access tokens are signed with, so
// other services can verify them without calling back.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	verifysdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, verifysdk.JWKSResponse(keys.PublicJWKS()))
	}
}
