package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/realtime"
)

const (
	StoreDriverMemory = "memory"
	StoreDriverSQLite = "sqlite"

	MailDriverLog = "log"
	MailDriverSES = "ses"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	StoreDriver  string // memory or sqlite (default: sqlite)
	DatabaseFile string // SQLite database file (default: ./vouchercheck.db)
	PepperFile   string // Pepper for password hashing (default: ./pepper)

	Issuer         string        // Issuer claim for tokens (default: vouchercheck)
	NumKeys        int           // Signing keys to generate (default: 3, max: 10)
	AccessTokenTTL time.Duration // Access token lifetime (default: 1h)

	// The first admin is created from these when the user table is empty.
	// An empty password is generated and logged once.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	MailDriver         string   // log or ses (default: log)
	MailFrom           string   // Sender address (default: no-reply@vouchercheck.local)
	MailNotifyExtra    []string // Extra recipients of submission notices
	AWSRegion          string
	AWSAccessKeyID     string // Optional: static credentials, otherwise the default chain
	AWSSecretAccessKey string

	Realtime realtime.Config

	StatsInterval       time.Duration // Request stats sampling interval (default: 15s)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	ws := realtime.DefaultConfig()
	ws.WriteTimeout = getEnvDurationOrDefault("WS_WRITE_TIMEOUT", ws.WriteTimeout)
	ws.PingInterval = getEnvDurationOrDefault("WS_PING_INTERVAL", ws.PingInterval)
	ws.PongTimeout = getEnvDurationOrDefault("WS_PONG_TIMEOUT", ws.PongTimeout)
	ws.SendQueue = getEnvIntOrDefault("WS_SEND_QUEUE", ws.SendQueue)
	ws.AllowedOrigins = getEnvListOrDefault("WS_ALLOWED_ORIGINS", nil)
	ws = ws.WithDefaults()

	return Config{
		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		StoreDriver:  getEnvOrDefault("STORE_DRIVER", StoreDriverSQLite),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "vouchercheck.db"),
		PepperFile:   getEnvOrDefault("PEPPER_FILE", "pepper"),

		Issuer:         getEnvOrDefault("AUTH_ISSUER", "vouchercheck"),
		NumKeys:        getEnvIntOrDefault("AUTH_NUM_KEYS", 3),
		AccessTokenTTL: getEnvDurationOrDefault("ACCESS_TOKEN_TTL", time.Hour),

		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		MailDriver:         getEnvOrDefault("MAIL_DRIVER", MailDriverLog),
		MailFrom:           getEnvOrDefault("MAIL_FROM", "no-reply@vouchercheck.local"),
		MailNotifyExtra:    getEnvListOrDefault("MAIL_NOTIFY_EXTRA", nil),
		AWSRegion:          getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),

		Realtime: ws,

		StatsInterval:       getEnvDurationOrDefault("STATS_INTERVAL", 15*time.Second),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
