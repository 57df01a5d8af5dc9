package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
)

// SigningKey describes one active signing key.
type SigningKey struct {
	Kid       string
	Algorithm string
}

// RotateKeyResult reports what a rotation changed.
type RotateKeyResult struct {
	NewKey      SigningKey
	RetiredKids []string
	ActiveKeys  int
}

// KeyRotationService adds and retires in-memory signing keys. Retired keys
// stay published in the JWKS so tokens they signed keep verifying until
// they expire.
type KeyRotationService struct {
	KeyManager *jwtx.KeyManager
}

// ListSigningKeys returns the keys currently used to sign new tokens.
func (s *KeyRotationService) ListSigningKeys(caller domain.Identity) ([]SigningKey, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	signers := s.KeyManager.GetSigners()
	keys := make([]SigningKey, 0, len(signers))
	for _, sg := range signers {
		keys = append(keys, SigningKey{Kid: sg.KID(), Algorithm: sg.Alg()})
	}
	return keys, nil
}

// RotateKey generates a new signing key. With retireExisting every key that
// was active before the call stops signing.
func (s *KeyRotationService) RotateKey(ctx context.Context, retireExisting bool, caller domain.Identity) (RotateKeyResult, error) {
	log := slogx.FromContext(ctx)

	if !caller.IsAdmin() {
		return RotateKeyResult{}, ErrForbidden
	}

	previous := s.KeyManager.GetSigners()

	signer, err := jwtx.GenerateSigner(jwtx.NewKeyID())
	if err != nil {
		return RotateKeyResult{}, fmt.Errorf("generate signing key: %w", err)
	}
	if err := s.KeyManager.AddSigner(signer); err != nil {
		return RotateKeyResult{}, fmt.Errorf("add signing key: %w", err)
	}

	result := RotateKeyResult{
		NewKey: SigningKey{Kid: signer.KID(), Algorithm: signer.Alg()},
	}

	if retireExisting {
		for _, old := range previous {
			if err := s.KeyManager.RetireSignerByKid(old.KID()); err != nil {
				log.Warn("failed to retire signing key", "kid", old.KID(), "error", err)
				continue
			}
			result.RetiredKids = append(result.RetiredKids, old.KID())
		}
	}

	result.ActiveKeys = s.KeyManager.NumSigners()
	log.Info("signing key rotated",
		"kid", signer.KID(),
		"retired", len(result.RetiredKids),
		"active_keys", result.ActiveKeys,
		"by", caller.UserID,
	)
	return result, nil
}
