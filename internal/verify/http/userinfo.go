package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

type UserInfoHandler struct {
	AccountService *service.AccountService
}

// ServeHTTP handles the UserInfo endpoint.
//
//	@Summary		Get user information
//	@Description	Returns the identity behind the access token as currently stored.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	verifysdk.UserInfoResponse	"user_id, email, role"
//	@Failure		401	{object}	verifysdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		500	{object}	verifysdk.ErrorResponse		"Internal server error"
//	@Router			/v1/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	caller, ok := identityFromContext(ctx)
	if !ok {
		verifysdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.AccountService.UserInfo(ctx, caller)
	if errors.Is(err, service.ErrNotFound) {
		// The account behind a still-valid token is gone.
		verifysdk.ErrInvalidToken.WriteError(w)
		return
	}
	if err != nil {
		log.Warn("failed to load user", "user_id", caller.UserID, "error", err)
		verifysdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, verifysdk.UserInfoResponse{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
}
