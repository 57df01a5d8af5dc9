package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	mailpkg "github.com/aussiebroadwan/vouchercheck/internal/verify/mail"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
	"github.com/aussiebroadwan/vouchercheck/pkg/idx"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
)

// Emitter hands events to the real-time fan-out. Implementations must not
// return transport errors to the caller.
type Emitter interface {
	Emit(ctx context.Context, ev domain.Event)
}

// Mailer sends a rendered template. Failures are logged by the service and
// never surface to the caller.
type Mailer interface {
	SendMail(ctx context.Context, to, template string, data map[string]any) error
}

// VerificationService owns the request lifecycle: pending on submit, then a
// single transition to one terminal outcome.
type VerificationService struct {
	Store   store.Store
	Events  Emitter
	Mailer  Mailer
	Metrics *metrics.Metrics

	// NotifyExtra receives every submission notice on top of the admin users.
	NotifyExtra []string

	// Now is overridable for tests.
	Now func() time.Time

	mailWG sync.WaitGroup
}

func (s *VerificationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit creates a pending request. caller is nil for anonymous submissions.
//
// The submitter counts as registered only when the caller's account exists
// and its email has been verified at this moment; the flag never changes
// afterwards.
func (s *VerificationService) Submit(
	ctx context.Context,
	p domain.Payload,
	caller *domain.Identity,
) (domain.VerificationRequest, error) {
	l := slogx.FromContext(ctx)

	p = normalizePayload(p)
	if err := validatePayload(p); err != nil {
		return domain.VerificationRequest{}, err
	}

	now := s.now()
	r := domain.VerificationRequest{
		ID:        idx.NewAt(now).String(),
		Payload:   p,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if caller != nil && caller.UserID != "" {
		r.OwnerUserID = caller.UserID
		u, err := s.Store.Users().GetUserByID(ctx, caller.UserID)
		switch {
		case err == nil:
			r.SubmitterIsRegistered = u.Authenticated
		case errors.Is(err, store.ErrNotFound):
			l.Warn("submit from unknown user", "user_id", caller.UserID)
		default:
			return domain.VerificationRequest{}, fmt.Errorf("lookup submitter: %w", err)
		}
	}

	if err := s.Store.Requests().CreateRequest(ctx, r); err != nil {
		return domain.VerificationRequest{}, fmt.Errorf("create request: %w", err)
	}
	s.Metrics.IncrementRequestsSubmitted()
	l.Info("request submitted",
		"verification_id", r.ID,
		"owner_user_id", r.OwnerUserID,
		"registered", r.SubmitterIsRegistered,
	)

	s.emit(ctx, domain.RequestCreated(r))
	s.notifyAdmins(ctx, r)

	return r, nil
}

// Adjudicate moves a pending request to outcome. Only admins may call it.
// Nothing is emitted when the transition fails.
func (s *VerificationService) Adjudicate(
	ctx context.Context,
	id, outcome string,
	caller domain.Identity,
) (domain.VerificationRequest, error) {
	l := slogx.FromContext(ctx)

	if !caller.IsAdmin() {
		return domain.VerificationRequest{}, ErrForbidden
	}
	status, ok := domain.ParseOutcome(outcome)
	if !ok {
		return domain.VerificationRequest{}, ErrInvalidOutcome
	}

	r, err := s.Store.Requests().SetStatus(ctx, id, status, s.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.VerificationRequest{}, ErrNotFound
	case errors.Is(err, store.ErrAlreadyTerminal):
		return domain.VerificationRequest{}, ErrAlreadyTerminal
	case err != nil:
		return domain.VerificationRequest{}, fmt.Errorf("set status: %w", err)
	}

	s.Metrics.IncrementRequestsAdjudicated(string(status))
	l.Info("request adjudicated",
		"verification_id", r.ID,
		"status", r.Status,
		"admin_user_id", caller.UserID,
	)

	s.emit(ctx, domain.RequestStatusChanged(r))
	s.deliver(ctx, []string{r.Payload.Email}, mailpkg.TemplateRequestOutcome, requestMailData(r))

	return r, nil
}

// ListMine returns the caller's own requests, newest first.
func (s *VerificationService) ListMine(ctx context.Context, caller domain.Identity) ([]domain.VerificationRequest, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	return s.Store.Requests().ListByOwner(ctx, caller.UserID)
}

// ListAll returns every request, newest first. Admin only.
func (s *VerificationService) ListAll(ctx context.Context, caller domain.Identity) ([]domain.VerificationRequest, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.Store.Requests().ListAll(ctx)
}

// Get returns one request to an admin or to its owner.
func (s *VerificationService) Get(ctx context.Context, id string, caller domain.Identity) (domain.VerificationRequest, error) {
	r, err := s.Store.Requests().GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.VerificationRequest{}, ErrNotFound
	}
	if err != nil {
		return domain.VerificationRequest{}, err
	}

	if caller.IsAdmin() || (r.HasOwner() && r.OwnerUserID == caller.UserID) {
		return r, nil
	}
	return domain.VerificationRequest{}, ErrForbidden
}

func (s *VerificationService) emit(ctx context.Context, ev domain.Event) {
	if s.Events == nil {
		return
	}
	s.Events.Emit(ctx, ev)
}

// notifyAdmins mails every admin user plus the extra recipients. Duplicate
// addresses get one mail.
func (s *VerificationService) notifyAdmins(ctx context.Context, r domain.VerificationRequest) {
	if s.Mailer == nil {
		return
	}

	admins, err := s.Store.Users().ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to list admins for notification", "error", err)
	}

	seen := make(map[string]struct{}, len(admins)+len(s.NotifyExtra))
	recipients := make([]string, 0, len(admins)+len(s.NotifyExtra))
	add := func(addr string) {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		recipients = append(recipients, strings.TrimSpace(addr))
	}
	for _, a := range admins {
		add(a.Email)
	}
	for _, addr := range s.NotifyExtra {
		add(addr)
	}

	s.deliver(ctx, recipients, mailpkg.TemplateRequestSubmitted, requestMailData(r))
}

// deliver sends template to each recipient in order on a background
// goroutine, so the caller never waits on the mail driver. The goroutine
// outlives ctx's cancellation but keeps its logger.
func (s *VerificationService) deliver(ctx context.Context, recipients []string, template string, data map[string]any) {
	if s.Mailer == nil || len(recipients) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		for _, to := range recipients {
			s.sendMail(ctx, to, template, data)
		}
	}()
}

// Drain blocks until every queued notification has been handed to the
// mailer. Call it before closing the store on shutdown.
func (s *VerificationService) Drain() {
	s.mailWG.Wait()
}

func (s *VerificationService) sendMail(ctx context.Context, to, template string, data map[string]any) {
	if s.Mailer == nil || to == "" {
		return
	}
	if err := s.Mailer.SendMail(ctx, to, template, data); err != nil {
		slogx.FromContext(ctx).Warn("failed to send mail",
			"template", template,
			"to", to,
			"error", err,
		)
	}
}

func requestMailData(r domain.VerificationRequest) map[string]any {
	return map[string]any{
		"request": map[string]any{
			"id":                      r.ID,
			"status":                  string(r.Status),
			"submitter_is_registered": r.SubmitterIsRegistered,
			"created_at":              r.CreatedAt.Format(time.RFC3339),
			"payload": map[string]any{
				"name":   r.Payload.Name,
				"email":  r.Payload.Email,
				"phone":  r.Payload.Phone,
				"code":   r.Payload.Code,
				"amount": r.Payload.Amount,
			},
		},
	}
}

func normalizePayload(p domain.Payload) domain.Payload {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Code = strings.TrimSpace(p.Code)
	return p
}

func validatePayload(p domain.Payload) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case p.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidRequest)
	case p.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrInvalidRequest)
	}
	return nil
}
