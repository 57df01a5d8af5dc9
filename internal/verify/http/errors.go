package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

// writeServiceError maps a service error onto its API error. Anything
// unrecognised is logged and reported as a server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		apiErr := verifysdk.ErrInvalidRequest
		if desc := strings.TrimPrefix(err.Error(), service.ErrInvalidRequest.Error()+": "); desc != err.Error() {
			apiErr = apiErr.WithDescription(desc)
		}
		apiErr.WriteError(w)
	case errors.Is(err, service.ErrInvalidOutcome):
		verifysdk.ErrInvalidOutcome.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		verifysdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrAlreadyTerminal):
		verifysdk.ErrAlreadyTerminal.WriteError(w)
	case errors.Is(err, service.ErrForbidden):
		verifysdk.ErrForbidden.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		verifysdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrEmailTaken):
		verifysdk.ErrEmailTaken.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		verifysdk.ErrServerError.WriteError(w)
	}
}
