package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

type TokenHandler struct {
	AccountService *service.AccountService
}

// ServeHTTP godoc
//
//	@Summary		Issue an access token
//	@Description	Exchanges email and password for an EdDSA signed access token carrying the
//	@Description	user id, email and role. The same token identifies a websocket connection.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifysdk.TokenRequest	true	"email, password"
//	@Success		200		{object}	verifysdk.TokenResponse
//	@Failure		400		{object}	verifysdk.ErrorResponse
//	@Failure		401		{object}	verifysdk.ErrorResponse	"invalid_credentials"
//	@Router			/v1/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req verifysdk.TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		verifysdk.ErrInvalidRequest.WithDescription("Invalid JSON body").WriteError(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		verifysdk.ErrInvalidRequest.WithDescription("email and password are required").WriteError(w)
		return
	}

	at, err := h.AccountService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, verifysdk.TokenResponse{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(at.ExpiresIn.Seconds()),
	})
}
