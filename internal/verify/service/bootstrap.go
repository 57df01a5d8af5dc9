package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/pkg/cryptox"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
)

var ErrBootstrapAlready = errors.New("system already bootstrapped")

// BootstrapAdmin creates the first admin account when the user table is
// empty. Returns ErrBootstrapAlready once any user exists. An empty password
// gets a generated one, which is returned so the operator can log it once.
func (s *AccountService) BootstrapAdmin(ctx context.Context, email, password string) (domain.User, string, error) {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return domain.User{}, "", err
	}
	if !empty {
		return domain.User{}, "", ErrBootstrapAlready
	}

	email, err = normalizeEmail(email)
	if err != nil {
		return domain.User{}, "", err
	}
	if password == "" {
		if password, err = cryptox.GeneratePassword(); err != nil {
			return domain.User{}, "", fmt.Errorf("generate password: %w", err)
		}
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, MinPasswordLength)
	}

	// Configured by the operator, so the address counts as verified.
	u, err := s.createUser(ctx, email, password, domain.RoleAdmin, true)
	if err != nil {
		return domain.User{}, "", err
	}

	l.Info("bootstrap admin created", "user_id", u.ID)
	return u, password, nil
}
