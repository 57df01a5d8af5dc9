package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

type UsersHandler struct {
	AccountService *service.AccountService
}

// HandleRegister godoc
//
//	@Summary		Register an account
//	@Description	Creates an unverified user and mails a verification token to the address.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifysdk.RegisterRequest	true	"email, password"
//	@Success		201		{object}	verifysdk.UserResponse
//	@Failure		400		{object}	verifysdk.ErrorResponse
//	@Failure		409		{object}	verifysdk.ErrorResponse	"email_taken"
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req verifysdk.RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		verifysdk.ErrInvalidRequest.WithDescription("Invalid JSON body").WriteError(w)
		return
	}

	u, err := h.AccountService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, u.ToWire())
}

// HandleVerify godoc
//
//	@Summary	Verify an email address
//	@Tags		Users
//	@Accept		json
//	@Produce	json
//	@Param		request	body		verifysdk.VerifyEmailRequest	true	"token from the verification mail"
//	@Success	200		{object}	verifysdk.UserResponse
//	@Failure	400		{object}	verifysdk.ErrorResponse
//	@Router		/v1/users/verify [post].
func (h *UsersHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifysdk.VerifyEmailRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Token == "" {
		verifysdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	u, err := h.AccountService.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, u.ToWire())
}
