// Package storetest holds the conformance suite every store driver runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
	"github.com/aussiebroadwan/vouchercheck/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh store from newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("create and get request", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("owner without user row", func(t *testing.T) { testOwnerWithoutUser(t, newStore(t)) })
	t.Run("set status once", func(t *testing.T) { testSetStatusOnce(t, newStore(t)) })
	t.Run("set status unknown id", func(t *testing.T) { testSetStatusUnknown(t, newStore(t)) })
	t.Run("concurrent set status", func(t *testing.T) { testConcurrentSetStatus(t, newStore(t)) })
	t.Run("list ordering", func(t *testing.T) { testListOrdering(t, newStore(t)) })
	t.Run("count by status", func(t *testing.T) { testCountByStatus(t, newStore(t)) })
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func newRequest(owner string, at time.Time) domain.VerificationRequest {
	at = at.UTC().Truncate(time.Microsecond)
	return domain.VerificationRequest{
		ID:                    idx.NewAt(at).String(),
		OwnerUserID:           owner,
		SubmitterIsRegistered: owner != "",
		Payload: domain.Payload{
			Name:   "Ada",
			Email:  "ada@example.com",
			Phone:  "0400000000",
			Code:   "VC-1234",
			Amount: 50,
		},
		Status:    domain.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func seedUser(t *testing.T, st store.Store, email, role string) domain.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Role:         role,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func testCreateGet(t *testing.T, st store.Store) {
	ctx := context.Background()
	owner := seedUser(t, st, "owner@example.com", domain.RoleUser)

	req := newRequest(owner.ID, time.Now())
	require.NoError(t, st.Requests().CreateRequest(ctx, req))

	got, err := st.Requests().GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, req, got)

	_, err = st.Requests().GetRequest(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

// The owner id is an opaque reference to the caller's identity; a request
// is stored even when no user row carries that id.
func testOwnerWithoutUser(t *testing.T, st store.Store) {
	ctx := context.Background()

	req := newRequest("U-not-in-user-table", time.Now())
	require.NoError(t, st.Requests().CreateRequest(ctx, req))

	got, err := st.Requests().GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, "U-not-in-user-table", got.OwnerUserID)

	mine, err := st.Requests().ListByOwner(ctx, "U-not-in-user-table")
	require.NoError(t, err)
	require.Equal(t, []domain.VerificationRequest{req}, mine)
}

func testSetStatusOnce(t *testing.T, st store.Store) {
	ctx := context.Background()
	created := time.Now().Add(-time.Minute)
	req := newRequest("", created)
	require.NoError(t, st.Requests().CreateRequest(ctx, req))

	now := time.Now().UTC().Truncate(time.Microsecond)
	updated, err := st.Requests().SetStatus(ctx, req.ID, domain.StatusValid, now)
	require.NoError(t, err)
	require.Equal(t, domain.StatusValid, updated.Status)
	require.True(t, updated.UpdatedAt.Equal(now))
	require.True(t, updated.CreatedAt.Equal(req.CreatedAt))

	_, err = st.Requests().SetStatus(ctx, req.ID, domain.StatusInvalid, now.Add(time.Second))
	require.ErrorIs(t, err, store.ErrAlreadyTerminal)

	got, err := st.Requests().GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusValid, got.Status, "terminal status must not be overwritten")
	require.True(t, got.UpdatedAt.Equal(now), "updated_at must not move on a rejected transition")
}

func testSetStatusUnknown(t *testing.T, st store.Store) {
	_, err := st.Requests().SetStatus(context.Background(), idx.New().String(), domain.StatusValid, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testConcurrentSetStatus(t *testing.T, st store.Store) {
	ctx := context.Background()
	req := newRequest("", time.Now())
	require.NoError(t, st.Requests().CreateRequest(ctx, req))

	const racers = 16
	outcomes := []domain.Status{domain.StatusValid, domain.StatusInvalid, domain.StatusAlreadyUsed}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		terminal int
		winner   domain.Status
	)
	start := make(chan struct{})
	for i := range racers {
		wg.Add(1)
		go func(outcome domain.Status) {
			defer wg.Done()
			<-start
			got, err := st.Requests().SetStatus(ctx, req.ID, outcome, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
				winner = got.Status
			case errors.Is(err, store.ErrAlreadyTerminal):
				terminal++
			}
		}(outcomes[i%len(outcomes)])
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, racers-1, terminal)

	got, err := st.Requests().GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, winner, got.Status)
}

func testListOrdering(t *testing.T, st store.Store) {
	ctx := context.Background()
	alice := seedUser(t, st, "alice@example.com", domain.RoleUser)
	bob := seedUser(t, st, "bob@example.com", domain.RoleUser)

	base := time.Now().Add(-time.Hour)
	r1 := newRequest(alice.ID, base)
	r2 := newRequest(bob.ID, base.Add(time.Minute))
	r3 := newRequest(alice.ID, base.Add(2*time.Minute))
	r4 := newRequest("", base.Add(3*time.Minute))
	for _, r := range []domain.VerificationRequest{r2, r4, r1, r3} {
		require.NoError(t, st.Requests().CreateRequest(ctx, r))
	}

	all, err := st.Requests().ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{r4.ID, r3.ID, r2.ID, r1.ID}, ids(all))

	mine, err := st.Requests().ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, []string{r3.ID, r1.ID}, ids(mine))

	none, err := st.Requests().ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}

func testCountByStatus(t *testing.T, st store.Store) {
	ctx := context.Background()

	counts, err := st.Requests().CountByStatus(ctx)
	require.NoError(t, err)
	for _, s := range domain.Statuses {
		require.Equal(t, 0, counts[s])
	}
	require.Len(t, counts, len(domain.Statuses))

	for range 3 {
		require.NoError(t, st.Requests().CreateRequest(ctx, newRequest("", time.Now())))
	}
	r := newRequest("", time.Now())
	require.NoError(t, st.Requests().CreateRequest(ctx, r))
	_, err = st.Requests().SetStatus(ctx, r.ID, domain.StatusAlreadyUsed, time.Now())
	require.NoError(t, err)

	counts, err = st.Requests().CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, counts[domain.StatusPending])
	require.Equal(t, 1, counts[domain.StatusAlreadyUsed])
	require.Equal(t, 0, counts[domain.StatusValid])
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()

	empty, err := st.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	admin := seedUser(t, st, "Admin@Example.com", domain.RoleAdmin)
	user := seedUser(t, st, "user@example.com", domain.RoleUser)

	empty, err = st.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	got, err := st.Users().GetUserByEmail(ctx, "admin@EXAMPLE.com")
	require.NoError(t, err)
	require.Equal(t, admin.ID, got.ID)
	require.Equal(t, "Admin@Example.com", got.Email)

	dup := user
	dup.ID = idx.New().String()
	dup.Email = "USER@example.com"
	require.ErrorIs(t, st.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	admins, err := st.Users().ListByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, admin.ID, admins[0].ID)

	require.False(t, user.Authenticated)
	require.NoError(t, st.Users().MarkAuthenticated(ctx, user.ID, time.Now()))
	got, err = st.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.Authenticated)

	require.ErrorIs(t, st.Users().MarkAuthenticated(ctx, "missing", time.Now()), store.ErrNotFound)
	_, err = st.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Users().GetUserByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func ids(rs []domain.VerificationRequest) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
