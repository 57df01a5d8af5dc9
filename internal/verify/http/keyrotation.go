package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotate godoc
//
//	@Summary		Rotate signing keys
//	@Description	Generates a new EdDSA signing key. With retire_existing the previous keys stop
//	@Description	signing but stay in the JWKS so outstanding tokens remain valid.
//	@Tags			Keys
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifysdk.RotateKeyRequest	false	"Rotation options"
//	@Success		200		{object}	verifysdk.RotateKeyResponse
//	@Failure		400		{object}	verifysdk.ErrorResponse
//	@Failure		401		{object}	verifysdk.ErrorResponse
//	@Failure		403		{object}	verifysdk.ErrorResponse	"Requires the admin role"
//	@Security		BearerAuth
//	@Router			/v1/keys/rotate [post].
func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		verifysdk.ErrInvalidToken.WriteError(w)
		return
	}

	// An empty body means "add a key, retire nothing".
	var req verifysdk.RotateKeyRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		verifysdk.ErrInvalidRequest.WithDescription("Invalid JSON body").WriteError(w)
		return
	}

	res, err := h.KeyRotationService.RotateKey(r.Context(), req.RetireExisting, caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, verifysdk.RotateKeyResponse{
		NewKey:      toSigningKeyInfo(res.NewKey),
		RetiredKids: res.RetiredKids,
		ActiveKeys:  res.ActiveKeys,
	})
}

// HandleListKeys godoc
//
//	@Summary	List active signing keys
//	@Tags		Keys
//	@Produce	json
//	@Success	200	{array}		verifysdk.SigningKeyInfo
//	@Failure	401	{object}	verifysdk.ErrorResponse
//	@Failure	403	{object}	verifysdk.ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/keys [get].
func (h *KeyRotationHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		verifysdk.ErrInvalidToken.WriteError(w)
		return
	}

	keys, err := h.KeyRotationService.ListSigningKeys(caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]verifysdk.SigningKeyInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, toSigningKeyInfo(k))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func toSigningKeyInfo(k service.SigningKey) verifysdk.SigningKeyInfo {
	return verifysdk.SigningKeyInfo{Kid: k.Kid, Algorithm: k.Algorithm}
}
