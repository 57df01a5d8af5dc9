package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
)

// InitAuthKeys creates the EdDSA key manager. Keys live only in memory, so
// every access and verification token becomes invalid when the service
// restarts.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  cfg.Issuer,
		NumKeys: cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("ephemeral signing keys generated",
		"algorithm", km.Algorithm(),
		"num_keys", km.NumSigners(),
	)
	return km, nil
}
