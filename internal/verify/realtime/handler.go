package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/gorilla/websocket"
)

// Config tunes the websocket transport.
type Config struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration // must exceed PingInterval
	SendQueue      int
	MaxMessageSize int64

	// AllowedOrigins lists the Origin values accepted on upgrade. Empty
	// keeps the same-origin check; "*" accepts any origin.
	AllowedOrigins []string
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		SendQueue:      64,
		MaxMessageSize: 4096,
	}
}

// Handler upgrades GET requests to websockets and runs one read loop per
// connection. The only inbound message acted on is identify.
type Handler struct {
	Dispatcher *Dispatcher
	Verifier   jwtx.Verifier
	Config     Config

	upgrader websocket.Upgrader
}

// WithDefaults replaces non-positive values with the defaults and keeps
// PongTimeout above PingInterval.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongTimeout <= c.PingInterval {
		c.PongTimeout = 2 * c.PingInterval
	}
	if c.SendQueue <= 0 {
		c.SendQueue = def.SendQueue
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	return c
}

func NewHandler(d *Dispatcher, v jwtx.Verifier, cfg Config) *Handler {
	cfg = cfg.WithDefaults()
	h := &Handler{Dispatcher: d, Verifier: v, Config: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(cfg.AllowedOrigins) > 0 {
		h.upgrader.CheckOrigin = h.checkOrigin
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.Config.AllowedOrigins, "*") || slices.Contains(h.Config.AllowedOrigins, origin)
}

// ServeHTTP handles the real-time endpoint.
//
//	@Summary		Real-time event stream
//	@Description	Upgrades to a websocket. Send {"type":"identify","token":"<access token>"} to receive
//	@Description	events for your own requests (or every request, for admins). Presence counts are sent to all.
//	@Tags			Realtime
//	@Success		101
//	@Router			/v1/ws [get].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug("websocket upgrade failed", "error", err)
		return
	}

	// The request context ends with this handler; keep its logger only.
	ctx := context.WithoutCancel(r.Context())

	conn := newWSConn(ws, h.Config)
	id := h.Dispatcher.Connect(ctx, conn)
	ctx = slogx.With(ctx, "conn_id", id)

	go conn.writeLoop()
	h.readLoop(ctx, id, conn)

	h.Dispatcher.Disconnect(ctx, id)
}

func (h *Handler) readLoop(ctx context.Context, id ConnID, conn *wsConn) {
	log := slogx.FromContext(ctx)
	ws := conn.ws

	ws.SetReadLimit(h.Config.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.Config.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.Config.PongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.Config.PongTimeout))

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != inboundIdentify {
			continue
		}
		h.identify(ctx, id, conn, msg.Token)
	}
}

// identify resolves the credential to an identity with the same verifier
// the HTTP API uses. A rejected token leaves the connection as it was.
func (h *Handler) identify(ctx context.Context, id ConnID, conn Conn, token string) {
	log := slogx.FromContext(ctx)

	claims, err := h.Verifier.Verify(token)
	if err == nil {
		err = claims.ValidatePurpose(jwtx.PurposeAccess)
	}
	if err != nil {
		log.Info("identify rejected", "error", err)
		conn.Send(encodeControl(KindIdentifyRejected, RejectedPayload{Reason: "invalid token"}))
		return
	}

	identity := domain.Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
	if err := h.Dispatcher.Identify(id, identity); err != nil {
		return
	}
	log.Info("connection identified", "user_id", identity.UserID, "role", identity.Role)
	conn.Send(encodeControl(KindIdentified, IdentifiedPayload{UserID: identity.UserID, Role: identity.Role}))
}
