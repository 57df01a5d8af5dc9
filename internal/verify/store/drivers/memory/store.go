// Package memory is a map-backed Store. State lives for the lifetime of the
// process only.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
)

type Store struct {
	reqMu    sync.RWMutex
	requests map[string]domain.VerificationRequest

	userMu  sync.RWMutex
	users   map[string]domain.User
	byEmail map[string]string // lower(email) -> id
}

func NewStore() *Store {
	return &Store{
		requests: make(map[string]domain.VerificationRequest),
		users:    make(map[string]domain.User),
		byEmail:  make(map[string]string),
	}
}

func (s *Store) Requests() store.Requests { return (*requestsRepo)(s) }
func (s *Store) Users() store.Users       { return (*usersRepo)(s) }

// ApplyMigrations is a no-op; there is no schema.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type requestsRepo Store

func (r *requestsRepo) CreateRequest(_ context.Context, req domain.VerificationRequest) error {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()

	if _, ok := r.requests[req.ID]; ok {
		return store.ErrAlreadyExists
	}
	r.requests[req.ID] = req
	return nil
}

func (r *requestsRepo) SetStatus(
	_ context.Context,
	id string,
	status domain.Status,
	now time.Time,
) (domain.VerificationRequest, error) {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return domain.VerificationRequest{}, store.ErrNotFound
	}
	if req.Status != domain.StatusPending {
		return domain.VerificationRequest{}, store.ErrAlreadyTerminal
	}

	req.Status = status
	req.UpdatedAt = now
	r.requests[id] = req
	return req, nil
}

func (r *requestsRepo) GetRequest(_ context.Context, id string) (domain.VerificationRequest, error) {
	r.reqMu.RLock()
	defer r.reqMu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return domain.VerificationRequest{}, store.ErrNotFound
	}
	return req, nil
}

func (r *requestsRepo) ListByOwner(_ context.Context, userID string) ([]domain.VerificationRequest, error) {
	return r.list(func(req domain.VerificationRequest) bool { return req.OwnerUserID == userID }), nil
}

func (r *requestsRepo) ListAll(_ context.Context) ([]domain.VerificationRequest, error) {
	return r.list(func(domain.VerificationRequest) bool { return true }), nil
}

func (r *requestsRepo) list(keep func(domain.VerificationRequest) bool) []domain.VerificationRequest {
	r.reqMu.RLock()
	out := make([]domain.VerificationRequest, 0, len(r.requests))
	for _, req := range r.requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	r.reqMu.RUnlock()

	slices.SortFunc(out, newestFirst)
	return out
}

// newestFirst orders by creation time, then by id; ULIDs sort by time so the
// tie-break keeps same-instant requests in submission order.
func newestFirst(a, b domain.VerificationRequest) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (r *requestsRepo) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	counts := make(map[domain.Status]int, len(domain.Statuses))
	for _, st := range domain.Statuses {
		counts[st] = 0
	}

	r.reqMu.RLock()
	defer r.reqMu.RUnlock()
	for _, req := range r.requests {
		counts[req.Status]++
	}
	return counts, nil
}

type usersRepo Store

func (r *usersRepo) CreateUser(_ context.Context, u domain.User) error {
	r.userMu.Lock()
	defer r.userMu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := r.byEmail[key]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := r.users[u.ID]; ok {
		return store.ErrAlreadyExists
	}
	r.users[u.ID] = u
	r.byEmail[key] = u.ID
	return nil
}

func (r *usersRepo) GetUserByID(_ context.Context, id string) (domain.User, error) {
	r.userMu.RLock()
	defer r.userMu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	r.userMu.RLock()
	defer r.userMu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return r.users[id], nil
}

func (r *usersRepo) ListByRole(_ context.Context, role string) ([]domain.User, error) {
	r.userMu.RLock()
	var out []domain.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	r.userMu.RUnlock()

	slices.SortFunc(out, func(a, b domain.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *usersRepo) MarkAuthenticated(_ context.Context, id string, now time.Time) error {
	r.userMu.Lock()
	defer r.userMu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Authenticated = true
	u.UpdatedAt = now
	r.users[id] = u
	return nil
}

func (r *usersRepo) IsEmpty(_ context.Context) (bool, error) {
	r.userMu.RLock()
	defer r.userMu.RUnlock()
	return len(r.users) == 0, nil
}
