package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/realtime"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store/drivers/sqlite"
	"github.com/aussiebroadwan/vouchercheck/pkg/cryptox"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "ops@example.com"
	adminPassword = "admin password"
)

type capturedMail struct {
	mu   sync.Mutex
	sent []map[string]any
}

func (m *capturedMail) SendMail(_ context.Context, to, template string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, map[string]any{"to": to, "template": template, "data": data})
	return nil
}

// lastToken returns the token from the newest verification mail.
func (m *capturedMail) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i]["template"] == "verify_email" {
			tok, _ := m.sent[i]["data"].(map[string]any)["token"].(string)
			return tok
		}
	}
	return ""
}

type fixture struct {
	srv    *httptest.Server
	client *verifysdk.Client
	mail   *capturedMail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cryptox.SetPepper("test-pepper")

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "test", NumKeys: 2})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := realtime.NewDispatcher(realtime.NewRegistry(), m)
	ml := &capturedMail{}

	accounts := &service.AccountService{
		KeyManager: km,
		Store:      st,
		Mailer:     ml,
		Issuer:     "test",
		AccessTTL:  time.Hour,
	}
	_, _, err = accounts.BootstrapAdmin(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	r := NewRouter(km.KeySet, km.Verifier, "test", st, slogx.Discard())
	r.VerificationService = &service.VerificationService{Store: st, Events: d, Mailer: ml, Metrics: m}
	r.AccountService = accounts
	r.KeyRotationService = &service.KeyRotationService{KeyManager: km}
	r.Realtime = realtime.NewHandler(d, km.Verifier, realtime.DefaultConfig())
	r.Gatherer = reg
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		d.Close()
		srv.Close()
		_ = st.Close()
	})
	return &fixture{srv: srv, client: verifysdk.NewClient(srv.URL), mail: ml}
}

func (f *fixture) login(t *testing.T, email, password string) *verifysdk.Client {
	t.Helper()
	tok, err := f.client.Login(context.Background(), email, password)
	require.NoError(t, err)
	require.Equal(t, "Bearer", tok.TokenType)
	return f.client.WithToken(tok.AccessToken)
}

// signup registers, verifies and logs in a fresh user.
func (f *fixture) signup(t *testing.T, email string) *verifysdk.Client {
	t.Helper()
	ctx := context.Background()
	u, err := f.client.Register(ctx, email, "user password")
	require.NoError(t, err)
	require.False(t, u.Authenticated)

	v, err := f.client.VerifyEmail(ctx, f.mail.lastToken())
	require.NoError(t, err)
	require.True(t, v.Authenticated)

	return f.login(t, email, "user password")
}

func (f *fixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	if token != "" {
		require.NoError(t, ws.WriteJSON(realtime.InboundMessage{Type: "identify", Token: token}))
		readUntil(t, ws, realtime.KindIdentified)
	}
	return ws
}

type rawEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, ws *websocket.Conn, kind string) rawEnvelope {
	t.Helper()
	for {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env rawEnvelope
		require.NoError(t, ws.ReadJSON(&env))
		if env.Kind == kind {
			return env
		}
	}
}

func voucher() verifysdk.Payload {
	return verifysdk.Payload{Name: "Ada", Email: "ada@example.com", Code: "VOUCH-1", Amount: 25}
}

func TestRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.login(t, adminEmail, adminPassword)
	user := f.signup(t, "user@example.com")

	adminWS := f.dial(t, admin.AccessToken)
	userWS := f.dial(t, user.AccessToken)

	created, err := user.Submit(ctx, voucher())
	require.NoError(t, err)
	require.Equal(t, "pending", created.Status)
	require.True(t, created.SubmitterIsRegistered)
	require.NotEmpty(t, created.OwnerUserID)

	for _, ws := range []*websocket.Conn{adminWS, userWS} {
		env := readUntil(t, ws, string(domain.EventRequestCreated))
		var got verifysdk.Request
		require.NoError(t, json.Unmarshal(env.Payload, &got))
		require.Equal(t, created.ID, got.ID)
	}

	mine, err := user.ListMine(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, created.Payload, mine[0].Payload)

	all, err := admin.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	done, err := admin.Adjudicate(ctx, created.ID, "valid")
	require.NoError(t, err)
	require.Equal(t, "valid", done.Status)

	for _, ws := range []*websocket.Conn{adminWS, userWS} {
		env := readUntil(t, ws, string(domain.EventRequestStatusChanged))
		var got verifysdk.Request
		require.NoError(t, json.Unmarshal(env.Payload, &got))
		require.Equal(t, "valid", got.Status)
	}

	_, err = admin.Adjudicate(ctx, created.ID, "invalid")
	require.ErrorIs(t, err, verifysdk.ErrAlreadyTerminal)

	got, err := user.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "valid", got.Status)
}

func TestAnonymousSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.client.Submit(ctx, voucher())
	require.NoError(t, err)
	require.Empty(t, created.OwnerUserID)
	require.False(t, created.SubmitterIsRegistered)

	// The bootstrap admin gets the notification once the mail goroutine runs.
	require.Eventually(t, func() bool {
		f.mail.mu.Lock()
		defer f.mail.mu.Unlock()
		for _, m := range f.mail.sent {
			if m["template"] == "request_submitted" && m["to"] == adminEmail {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestErrorResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.login(t, adminEmail, adminPassword)
	user := f.signup(t, "user@example.com")

	created, err := f.client.Submit(ctx, voucher())
	require.NoError(t, err)

	_, err = admin.Adjudicate(ctx, "01J00000000000000000000000", "valid")
	require.ErrorIs(t, err, verifysdk.ErrNotFound)

	_, err = admin.Adjudicate(ctx, created.ID, "pending")
	require.ErrorIs(t, err, verifysdk.ErrInvalidOutcome)

	_, err = user.Adjudicate(ctx, created.ID, "valid")
	require.ErrorIs(t, err, verifysdk.ErrForbidden)

	_, err = user.ListAll(ctx)
	require.ErrorIs(t, err, verifysdk.ErrForbidden)

	_, err = user.Get(ctx, created.ID)
	require.ErrorIs(t, err, verifysdk.ErrForbidden)

	_, err = f.client.ListMine(ctx)
	require.ErrorIs(t, err, verifysdk.ErrInvalidToken)

	bad := voucher()
	bad.Amount = 0
	_, err = f.client.Submit(ctx, bad)
	require.ErrorIs(t, err, verifysdk.ErrInvalidRequest)

	_, err = f.client.WithToken("not-a-jwt").Submit(ctx, voucher())
	require.ErrorIs(t, err, verifysdk.ErrInvalidToken)

	_, err = f.client.Login(ctx, adminEmail, "wrong password")
	require.ErrorIs(t, err, verifysdk.ErrInvalidCredentials)

	_, err = f.client.Register(ctx, "USER@example.com", "another password")
	require.ErrorIs(t, err, verifysdk.ErrEmailTaken)

	resp, err := http.Post(f.srv.URL+"/v1/requests", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserInfo(t *testing.T) {
	f := newFixture(t)

	info, err := f.login(t, adminEmail, adminPassword).UserInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, adminEmail, info.Email)
	require.Equal(t, domain.RoleAdmin, info.Role)
}

func TestVerificationTokenIsNotBearer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.Register(ctx, "new@example.com", "user password")
	require.NoError(t, err)

	_, err = f.client.WithToken(f.mail.lastToken()).ListMine(ctx)
	require.ErrorIs(t, err, verifysdk.ErrInvalidToken)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := http.Get(f.srv.URL + path)
		require.NoError(t, err)
		var h verifysdk.HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Equal(t, "ok", h.Status, path)
	}

	jwks, err := f.client.JWKS(context.Background())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 2)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)

	_, err = f.client.Submit(context.Background(), voucher())
	require.NoError(t, err)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "vouchercheck_requests_submitted_total 1")
}

func TestKeyRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.login(t, adminEmail, adminPassword)
	user := f.signup(t, "user@example.com")

	_, err := user.RotateKey(ctx, true)
	require.ErrorIs(t, err, verifysdk.ErrForbidden)

	before, err := admin.ListSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, before, 2)

	rotated, err := admin.RotateKey(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "EdDSA", rotated.NewKey.Algorithm)
	require.Len(t, rotated.RetiredKids, 2)
	require.Equal(t, 1, rotated.ActiveKeys)

	// Tokens signed by retired keys still verify.
	_, err = admin.ListMine(ctx)
	require.NoError(t, err)

	jwks, err := f.client.JWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 3)

	fresh := f.login(t, adminEmail, adminPassword)
	keys, err := fresh.ListSigningKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []verifysdk.SigningKeyInfo{rotated.NewKey}, keys)
}
