package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

const maxBodyBytes = 64 << 10

type RequestsHandler struct {
	Service *service.VerificationService
}

// HandleSubmit godoc
//
//	@Summary		Submit a verification request
//	@Description	Creates a pending request. A bearer token is optional; when present the request
//	@Description	is owned by that user and the owner receives real-time updates for it.
//	@Tags			Requests
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifysdk.Payload		true	"Voucher claim"
//	@Success		201		{object}	verifysdk.Request		"The created request"
//	@Failure		400		{object}	verifysdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	verifysdk.ErrorResponse	"Invalid access token"
//	@Router			/v1/requests [post].
func (h *RequestsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req verifysdk.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		verifysdk.ErrInvalidRequest.WithDescription("Invalid JSON body").WriteError(w)
		return
	}
	if desc := validatePayload(req); desc != "" {
		verifysdk.ErrInvalidRequest.WithDescription(desc).WriteError(w)
		return
	}

	var caller *domain.Identity
	if id, ok := identityFromContext(r.Context()); ok {
		caller = &id
	}

	created, err := h.Service.Submit(r.Context(), domain.Payload{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Code:   req.Code,
		Amount: req.Amount,
	}, caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, created.ToWire())
}

// HandleListMine godoc
//
//	@Summary	List my requests
//	@Tags		Requests
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	verifysdk.RequestListResponse
//	@Failure	401	{object}	verifysdk.ErrorResponse
//	@Router		/v1/requests/mine [get].
func (h *RequestsHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		verifysdk.ErrInvalidToken.WriteError(w)
		return
	}

	list, err := h.Service.ListMine(r.Context(), caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toListResponse(list))
}

// HandleListAll godoc
//
//	@Summary	List all requests
//	@Description	Newest first. Admin only.
//	@Tags		Requests
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	verifysdk.RequestListResponse
//	@Failure	401	{object}	verifysdk.ErrorResponse
//	@Failure	403	{object}	verifysdk.ErrorResponse
//	@Router		/v1/requests [get].
func (h *RequestsHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())

	list, err := h.Service.ListAll(r.Context(), caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toListResponse(list))
}

// HandleGet godoc
//
//	@Summary	Get a request
//	@Description	Visible to admins and to the request owner.
//	@Tags		Requests
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"Request ID"
//	@Success	200	{object}	verifysdk.Request
//	@Failure	403	{object}	verifysdk.ErrorResponse
//	@Failure	404	{object}	verifysdk.ErrorResponse
//	@Router		/v1/requests/{id} [get].
func (h *RequestsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())

	got, err := h.Service.Get(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, got.ToWire())
}

// HandleAdjudicate godoc
//
//	@Summary		Adjudicate a request
//	@Description	Moves a pending request to valid, invalid or already_used. A request can only be
//	@Description	adjudicated once. Admin only.
//	@Tags			Requests
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Request ID"
//	@Param			request	body		verifysdk.AdjudicateRequest	true	"Outcome"
//	@Success		200		{object}	verifysdk.Request
//	@Failure		400		{object}	verifysdk.ErrorResponse	"invalid_outcome"
//	@Failure		403		{object}	verifysdk.ErrorResponse	"forbidden"
//	@Failure		404		{object}	verifysdk.ErrorResponse	"not_found"
//	@Failure		409		{object}	verifysdk.ErrorResponse	"already_terminal"
//	@Router			/v1/requests/{id} [patch].
func (h *RequestsHandler) HandleAdjudicate(w http.ResponseWriter, r *http.Request) {
	var req verifysdk.AdjudicateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		verifysdk.ErrInvalidRequest.WithDescription("Invalid JSON body").WriteError(w)
		return
	}

	caller, _ := identityFromContext(r.Context())

	done, err := h.Service.Adjudicate(r.Context(), r.PathValue("id"), req.Status, caller)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, done.ToWire())
}

// validatePayload returns a description of the first problem, or "".
func validatePayload(p verifysdk.Payload) string {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return "name is required"
	case strings.TrimSpace(p.Email) == "":
		return "email is required"
	case strings.TrimSpace(p.Code) == "":
		return "code is required"
	case p.Amount <= 0:
		return "amount must be positive"
	}
	return ""
}

func toListResponse(list []domain.VerificationRequest) verifysdk.RequestListResponse {
	out := verifysdk.RequestListResponse{Requests: make([]verifysdk.Request, 0, len(list))}
	for _, r := range list {
		out.Requests = append(out.Requests, r.ToWire())
	}
	return out
}
