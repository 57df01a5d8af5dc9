package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/realtime"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("STATS_INTERVAL", "30")
	t.Setenv("MAIL_NOTIFY_EXTRA", " desk@example.com, ,audit@example.com")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://ops.example.com")
	t.Setenv("WS_PING_INTERVAL", "20s")
	t.Setenv("WS_PONG_TIMEOUT", "5s")
	t.Setenv("WS_SEND_QUEUE", "not-a-number")

	cfg := LoadConfig()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 30*time.Second, cfg.StatsInterval)
	require.Equal(t, []string{"desk@example.com", "audit@example.com"}, cfg.MailNotifyExtra)
	require.Equal(t, []string{"https://ops.example.com"}, cfg.Realtime.AllowedOrigins)
	require.Equal(t, 20*time.Second, cfg.Realtime.PingInterval)
	require.Equal(t, 40*time.Second, cfg.Realtime.PongTimeout)
	require.Equal(t, 64, cfg.Realtime.SendQueue)
	require.Equal(t, MailDriverLog, cfg.MailDriver)
	require.Equal(t, "vouchercheck", cfg.Issuer)
}

func TestLoadConfig_RealtimeClamped(t *testing.T) {
	t.Setenv("WS_PING_INTERVAL", "0")
	t.Setenv("WS_SEND_QUEUE", "-1")
	t.Setenv("WS_WRITE_TIMEOUT", "-5s")

	cfg := LoadConfig()
	def := realtime.DefaultConfig()
	require.Equal(t, def.PingInterval, cfg.Realtime.PingInterval)
	require.Greater(t, cfg.Realtime.PongTimeout, cfg.Realtime.PingInterval)
	require.Equal(t, def.SendQueue, cfg.Realtime.SendQueue)
	require.Equal(t, def.WriteTimeout, cfg.Realtime.WriteTimeout)
}

func testConfig(t *testing.T) Config {
	cfg := LoadConfig()
	cfg.PepperFile = filepath.Join(t.TempDir(), "pepper")
	cfg.StoreDriver = StoreDriverMemory
	cfg.BootstrapAdminEmail = "root@example.com"
	cfg.BootstrapAdminPassword = "root password"
	cfg.ShutdownGracePeriod = time.Second
	return cfg
}

func TestApplication_Wiring(t *testing.T) {
	application, err := NewWithLogger(testConfig(t), slogx.Discard())
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	defer srv.Close()

	ctx := context.Background()
	client := verifysdk.NewClient(srv.URL)

	tok, err := client.Login(ctx, "root@example.com", "root password")
	require.NoError(t, err)
	admin := client.WithToken(tok.AccessToken)

	created, err := client.Submit(ctx, verifysdk.Payload{Name: "Ada", Email: "ada@example.com", Code: "V-1", Amount: 10})
	require.NoError(t, err)

	done, err := admin.Adjudicate(ctx, created.ID, "invalid")
	require.NoError(t, err)
	require.Equal(t, "invalid", done.Status)

	require.NoError(t, application.Shutdown())
}

func TestApplication_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = StoreDriverSQLite
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "verify.db")

	first, err := NewWithLogger(cfg, slogx.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Shutdown())

	// Reopening applies no new migrations and skips bootstrap.
	second, err := NewWithLogger(cfg, slogx.Discard())
	require.NoError(t, err)
	require.NoError(t, second.Shutdown())
}

func TestApplication_UnknownDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "postgres"
	_, err := NewWithLogger(cfg, slogx.Discard())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.MailDriver = "smtp"
	_, err = NewWithLogger(cfg, slogx.Discard())
	require.Error(t, err)
}
