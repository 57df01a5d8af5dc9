package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	mailpkg "github.com/aussiebroadwan/vouchercheck/internal/verify/mail"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
	"github.com/aussiebroadwan/vouchercheck/pkg/cryptox"
	"github.com/aussiebroadwan/vouchercheck/pkg/idx"
	"github.com/aussiebroadwan/vouchercheck/pkg/jwtx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
)

// MinPasswordLength is enforced on registration and bootstrap.
const MinPasswordLength = 8

// AccessToken is the result of a successful login.
type AccessToken struct {
	Token     string
	ExpiresIn time.Duration
	User      domain.User
}

type AccountService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Mailer     Mailer

	Issuer    string
	Audience  []string
	AccessTTL time.Duration
	VerifyTTL time.Duration

	Now func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates an unverified user account and mails a verification
// token to its address.
func (s *AccountService) Register(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, MinPasswordLength)
	}

	u, err := s.createUser(ctx, email, password, domain.RoleUser, false)
	if err != nil {
		return domain.User{}, err
	}
	l.Info("user registered", "user_id", u.ID)

	s.sendVerification(ctx, u)
	return u, nil
}

// VerifyEmail consumes a verification token and marks the account
// authenticated. Verifying twice is harmless.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.KeyManager.Verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		l.Info("verification token rejected", "error", err)
		return domain.User{}, fmt.Errorf("%w: invalid verification token", ErrInvalidRequest)
	}
	if err := claims.ValidatePurpose(jwtx.PurposeVerifyEmail); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid verification token", ErrInvalidRequest)
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}

	// The token is bound to the address it was mailed to.
	if !strings.EqualFold(u.Email, claims.Email) {
		return domain.User{}, fmt.Errorf("%w: invalid verification token", ErrInvalidRequest)
	}
	if u.Authenticated {
		return u, nil
	}

	now := s.now()
	if err := s.Store.Users().MarkAuthenticated(ctx, u.ID, now); err != nil {
		return domain.User{}, fmt.Errorf("mark authenticated: %w", err)
	}
	u.Authenticated = true
	u.UpdatedAt = now

	l.Info("user email verified", "user_id", u.ID)
	return u, nil
}

// Login checks the password and issues a signed access token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		l.Info("login for unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("login password mismatch", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}
	claims := jwtx.NewAccessClaims(
		u.ID,       // subject
		u.Email,    // email
		u.Role,     // role
		ttl,        // token lifetime
		s.Issuer,   // issuer
		s.Audience, // audience
		s.now(),    // current time
	)
	token, err := s.KeyManager.Sign(claims)
	if err != nil {
		l.Error("failed to sign access token", "error", err)
		return nil, err
	}

	return &AccessToken{Token: token, ExpiresIn: ttl, User: u}, nil
}

// UserInfo returns the stored account behind an identity.
func (s *AccountService) UserInfo(ctx context.Context, id domain.Identity) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (s *AccountService) createUser(ctx context.Context, email, password, role string, authenticated bool) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := domain.User{
		ID:            idx.NewAt(now).String(),
		Email:         email,
		Role:          role,
		Authenticated: authenticated,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *AccountService) sendVerification(ctx context.Context, u domain.User) {
	l := slogx.FromContext(ctx)
	if s.Mailer == nil {
		return
	}

	ttl := s.VerifyTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultVerifyEmailTTL
	}
	claims := jwtx.NewPurposeClaims(u.ID, u.Email, jwtx.PurposeVerifyEmail, ttl, s.Issuer, s.now())
	claims.Audience = s.Audience
	token, err := s.KeyManager.Sign(claims)
	if err != nil {
		l.Error("failed to sign verification token", "user_id", u.ID, "error", err)
		return
	}

	err = s.Mailer.SendMail(ctx, u.Email, mailpkg.TemplateVerifyEmail, map[string]any{
		"email":      u.Email,
		"token":      token,
		"expires_in": ttl.String(),
	})
	if err != nil {
		l.Warn("failed to send mail", "template", mailpkg.TemplateVerifyEmail, "user_id", u.ID, "error", err)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is invalid", ErrInvalidRequest)
	}
	return email, nil
}
