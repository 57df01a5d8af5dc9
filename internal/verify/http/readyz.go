package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking the request store and that signing keys are loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	verifysdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	verifysdk.HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &verifysdk.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, verifysdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
