package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/vouchercheck/internal/verify/http"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/mail"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/realtime"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/service"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store/drivers/memory"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store/drivers/sqlite"
	"github.com/aussiebroadwan/vouchercheck/pkg/cryptox"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the verification service together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	mailer     *mail.Mailer
	dispatcher *realtime.Dispatcher

	verificationService *service.VerificationService
	accountService      *service.AccountService
	keyRotationService  *service.KeyRotationService
	statsCollector      *service.StatsCollector

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, slogx.New(slogx.Config{
		Service: "vouchercheck",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}
	ctx := slogx.WithContext(context.Background(), logger)

	cryptox.SetPepperPath(app.cfg.PepperFile)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initMailer(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	if err := app.bootstrap(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Handler exposes the root HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.statsCollector.Start()

	app.logger.Info("verification service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.statsCollector.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, closes every live connection, waits
// for queued notification mail, stops the stats worker and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down verification service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}
	// Hijacked websocket connections are not tracked by the server.
	app.dispatcher.Close()

	app.verificationService.Drain()
	app.statsCollector.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("verification service stopped")
	return nil
}

// initDatabase opens the configured store and applies migrations.
func (app *Application) initDatabase() error {
	switch app.cfg.StoreDriver {
	case StoreDriverMemory:
		app.db = memory.NewStore()
		app.logger.Warn("using in-memory store, data is lost on restart")
		return nil

	case StoreDriverSQLite, "":
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.db = db

		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
		return nil

	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", app.cfg.StoreDriver)
	}
}

func (app *Application) initMailer(ctx context.Context) error {
	var sender mail.Sender
	switch app.cfg.MailDriver {
	case MailDriverLog, "":
		sender = mail.LogSender{}
	case MailDriverSES:
		ses, err := mail.NewSESSender(ctx, mail.SESConfig{
			Region:          app.cfg.AWSRegion,
			AccessKeyID:     app.cfg.AWSAccessKeyID,
			SecretAccessKey: app.cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
		sender = ses
	default:
		return fmt.Errorf("unknown MAIL_DRIVER %q", app.cfg.MailDriver)
	}

	m, err := mail.NewMailer(sender, app.cfg.MailFrom, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to load mail templates: %w", err)
	}
	app.mailer = m
	app.logger.Info("mailer ready", "driver", app.cfg.MailDriver, "from", app.cfg.MailFrom)
	return nil
}

func (app *Application) initServices() {
	app.dispatcher = realtime.NewDispatcher(realtime.NewRegistry(), app.metrics)

	app.verificationService = &service.VerificationService{
		Store:       app.db,
		Events:      app.dispatcher,
		Mailer:      app.mailer,
		Metrics:     app.metrics,
		NotifyExtra: app.cfg.MailNotifyExtra,
	}

	app.accountService = &service.AccountService{
		KeyManager: app.keyManager,
		Store:      app.db,
		Mailer:     app.mailer,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		VerifyTTL:  jwtx.DefaultVerifyEmailTTL,
	}

	app.keyRotationService = &service.KeyRotationService{KeyManager: app.keyManager}

	app.statsCollector = service.NewStatsCollector(
		app.db,
		app.metrics,
		app.logger,
		app.cfg.StatsInterval,
	)
}

// bootstrap creates the first admin when configured and the user table is
// still empty.
func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapAdminEmail == "" {
		return nil
	}

	bctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	u, password, err := app.accountService.BootstrapAdmin(bctx, app.cfg.BootstrapAdminEmail, app.cfg.BootstrapAdminPassword)
	switch {
	case errors.Is(err, service.ErrBootstrapAlready):
		app.logger.Debug("bootstrap skipped, users already exist")
		return nil
	case err != nil:
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	if app.cfg.BootstrapAdminPassword == "" {
		// Only time this password is ever visible.
		app.logger.Warn("bootstrap admin created with generated password",
			"email", u.Email,
			"password", password,
		)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.VerificationService = app.verificationService
	router.AccountService = app.accountService
	router.KeyRotationService = app.keyRotationService
	router.Realtime = realtime.NewHandler(app.dispatcher, app.keyManager.Verifier, app.cfg.Realtime)
	router.Gatherer = app.registry
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
