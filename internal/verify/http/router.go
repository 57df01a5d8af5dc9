package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
	"github.com/aussiebroadwan/vouchercheck/pkg/httpx"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store               store.Store
	VerificationService *service.VerificationService
	AccountService      *service.AccountService
	KeyRotationService  *service.KeyRotationService

	// Realtime is the websocket endpoint. Optional.
	Realtime http.Handler

	// Gatherer backs /metrics. Optional.
	Gatherer prometheus.Gatherer
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerRequests()
	r.registerUsers()
	r.registerKeys()
	r.registerRealtime()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Voucher Verification Service API
//	@version		0.1.0
//	@description	Submit voucher verification requests and adjudicate them. Creation and
//	@description	adjudication events are pushed to connected clients over /v1/ws.
//
//	@BasePath		/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				EdDSA signed access token from /v1/token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerRequests() {
	h := &RequestsHandler{Service: r.VerificationService}

	// POST /requests - anonymous or signed-in; strict by IP since it sends mail
	r.Mux.Handle("POST /v1/requests",
		httpx.Chain(http.HandlerFunc(h.HandleSubmit),
			httpx.OptionalAuthnMiddleware(r.verifier),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/requests/mine",
		httpx.Chain(http.HandlerFunc(h.HandleListMine),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/requests/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// Admin endpoints
	r.Mux.Handle("GET /v1/requests",
		httpx.Chain(http.HandlerFunc(h.HandleListAll),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("PATCH /v1/requests/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleAdjudicate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUsers() {
	users := &UsersHandler{AccountService: r.AccountService}
	token := &TokenHandler{AccountService: r.AccountService}
	info := &UserInfoHandler{AccountService: r.AccountService}

	r.Mux.Handle("POST /v1/users",
		httpx.Chain(http.HandlerFunc(users.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/users/verify",
		httpx.Chain(http.HandlerFunc(users.HandleVerify),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /token - strict by IP to slow down password guessing
	r.Mux.Handle("POST /v1/token",
		httpx.Chain(token,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(info,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerKeys() {
	if r.KeyRotationService == nil {
		return
	}
	h := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}

	r.Mux.Handle("GET /v1/keys",
		httpx.Chain(http.HandlerFunc(h.HandleListKeys),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/keys/rotate",
		httpx.Chain(http.HandlerFunc(h.HandleRotate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRealtime() {
	if r.Realtime == nil {
		return
	}
	// Identification happens in-band after the upgrade.
	r.Mux.Handle("GET /v1/ws",
		httpx.Chain(r.Realtime,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys))

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}))
	}
}
