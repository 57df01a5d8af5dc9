package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Envelope
	raw    [][]byte
	full   bool
	closed bool
}

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		panic(err)
	}
	c.frames = append(c.frames, env)
	c.raw = append(c.raw, frame)
	return true
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = f.Kind
	}
	return out
}

// without returns the kinds received, minus presence frames.
func (c *fakeConn) without(kind string) []string {
	var out []string
	for _, k := range c.kinds() {
		if k != kind {
			out = append(out, k)
		}
	}
	return out
}

func (c *fakeConn) lastPresence(t *testing.T) int {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Kind == string(domain.EventPresenceCountChanged) {
			var p PresencePayload
			b, _ := json.Marshal(c.frames[i].Payload)
			require.NoError(t, json.Unmarshal(b, &p))
			return p.Count
		}
	}
	t.Fatal("no presence frame received")
	return 0
}

const presence = string(domain.EventPresenceCountChanged)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	c := &fakeConn{}

	id := reg.Register(c)
	require.Equal(t, 1, reg.Size())

	snap := reg.Snapshot()
	require.Len(t, snap, 1)
	require.Nil(t, snap[0].Identity)

	require.NoError(t, reg.Identify(id, domain.Identity{UserID: "u1", Role: domain.RoleUser}))
	require.NoError(t, reg.Identify(id, domain.Identity{UserID: "u2", Role: domain.RoleAdmin}))
	snap = reg.Snapshot()
	require.Equal(t, "u2", snap[0].Identity.UserID, "last identify wins")

	require.True(t, reg.Unregister(id))
	require.False(t, reg.Unregister(id))
	require.Equal(t, 0, reg.Size())
	require.ErrorIs(t, reg.Identify(id, domain.Identity{}), ErrUnknownConnection)
}

func TestRegistryUnregisterUnidentified(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register(&fakeConn{})
	require.True(t, reg.Unregister(id))
	require.False(t, reg.Unregister("never-registered"))
}

func TestSnapshotIsolatedFromLaterIdentify(t *testing.T) {
	reg := NewRegistry()
	id := reg.Register(&fakeConn{})
	require.NoError(t, reg.Identify(id, domain.Identity{UserID: "u1", Role: domain.RoleUser}))

	snap := reg.Snapshot()
	require.NoError(t, reg.Identify(id, domain.Identity{UserID: "u2", Role: domain.RoleAdmin}))
	require.Equal(t, "u1", snap[0].Identity.UserID)
}

func TestAdminMatchesAnyOwner(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewRegistry(), nil)

	c := &fakeConn{}
	id := d.Connect(ctx, c)
	require.NoError(t, d.Identify(id, domain.Identity{UserID: "U", Role: domain.RoleAdmin}))

	d.Emit(ctx, domain.RequestStatusChanged(domain.VerificationRequest{ID: "r1", OwnerUserID: "X", Status: domain.StatusValid}))
	require.Equal(t, []string{string(domain.EventRequestStatusChanged)}, c.without(presence))
}

func TestAnonymousSubmitReachesAdminsOnly(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewRegistry(), nil)

	admin1, admin2, user, anon := &fakeConn{}, &fakeConn{}, &fakeConn{}, &fakeConn{}
	require.NoError(t, d.Identify(d.Connect(ctx, admin1), domain.Identity{UserID: "a1", Role: domain.RoleAdmin}))
	require.NoError(t, d.Identify(d.Connect(ctx, admin2), domain.Identity{UserID: "a2", Role: domain.RoleAdmin}))
	require.NoError(t, d.Identify(d.Connect(ctx, user), domain.Identity{UserID: "u1", Role: domain.RoleUser}))
	d.Connect(ctx, anon)

	d.Emit(ctx, domain.RequestCreated(domain.VerificationRequest{ID: "r1", Status: domain.StatusPending}))

	created := []string{string(domain.EventRequestCreated)}
	require.Equal(t, created, admin1.without(presence))
	require.Equal(t, created, admin2.without(presence))
	require.Empty(t, user.without(presence))
	require.Empty(t, anon.without(presence))
}

func TestNoDeliveryAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewRegistry(), nil)

	stay, leave := &fakeConn{}, &fakeConn{}
	d.Connect(ctx, stay)
	leaveID := d.Connect(ctx, leave)
	require.Equal(t, 2, stay.lastPresence(t))

	d.Disconnect(ctx, leaveID)
	require.True(t, leave.closed)
	require.Equal(t, 1, stay.lastPresence(t))

	before := len(leave.kinds())
	d.Emit(ctx, domain.PresenceCountChanged(99))
	require.Len(t, leave.kinds(), before)

	// a second disconnect is a no-op and does not re-broadcast presence
	n := len(stay.kinds())
	d.Disconnect(ctx, leaveID)
	require.Len(t, stay.kinds(), n)
}

func TestPresenceOncePerConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewRegistry(), nil)

	a := &fakeConn{}
	d.Connect(ctx, a)
	b := &fakeConn{}
	bID := d.Connect(ctx, b)
	d.Disconnect(ctx, bID)

	// a: own connect, b connect, b disconnect
	require.Equal(t, []string{presence, presence, presence}, a.kinds())
	require.Equal(t, 1, a.lastPresence(t))
	// b: own connect only
	require.Equal(t, []string{presence}, b.kinds())
}

func TestFailedDeliveryDropsConnection(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(NewRegistry(), m)

	healthy := &fakeConn{}
	stalled := &fakeConn{}
	require.NoError(t, d.Identify(d.Connect(ctx, healthy), domain.Identity{UserID: "a1", Role: domain.RoleAdmin}))
	require.NoError(t, d.Identify(d.Connect(ctx, stalled), domain.Identity{UserID: "a2", Role: domain.RoleAdmin}))
	require.Equal(t, 2, d.Registry.Size())

	stalled.mu.Lock()
	stalled.full = true
	stalled.mu.Unlock()

	d.Emit(ctx, domain.RequestCreated(domain.VerificationRequest{ID: "r1"}))

	require.Equal(t, []string{string(domain.EventRequestCreated)}, healthy.without(presence))
	require.Equal(t, 1, d.Registry.Size())
	require.True(t, stalled.closed)
	require.Equal(t, 1, healthy.lastPresence(t))
	require.InDelta(t, 1, testutil.ToFloat64(m.DeliveryFailures), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.LiveConnections), 0)
}

func TestEmitOrderPerConnection(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewRegistry(), nil)

	c := &fakeConn{}
	require.NoError(t, d.Identify(d.Connect(ctx, c), domain.Identity{UserID: "a", Role: domain.RoleAdmin}))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Emit(ctx, domain.RequestCreated(domain.VerificationRequest{ID: string(rune('A' + i%26))}))
		}()
	}
	wg.Wait()
	require.Len(t, c.without(presence), 50)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(NewRegistry(), nil)

	a, b := &fakeConn{}, &fakeConn{}
	d.Connect(ctx, a)
	d.Connect(ctx, b)
	before := len(a.kinds())

	d.Close()
	require.Equal(t, 0, d.Registry.Size())
	require.True(t, a.closed)
	require.True(t, b.closed)
	require.Len(t, a.kinds(), before)
}

func TestEncodeEvent(t *testing.T) {
	b, err := encodeEvent(domain.RequestCreated(domain.VerificationRequest{
		ID:      "r1",
		Status:  domain.StatusPending,
		Payload: domain.Payload{Name: "Ada", Code: "C1", Amount: 10},
	}))
	require.NoError(t, err)

	var got struct {
		Kind    string `json:"kind"`
		Payload struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Payload struct {
				Name string `json:"name"`
			} `json:"payload"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, "request_created", got.Kind)
	require.Equal(t, "r1", got.Payload.ID)
	require.Equal(t, "pending", got.Payload.Status)
	require.Equal(t, "Ada", got.Payload.Payload.Name)

	b, err = encodeEvent(domain.PresenceCountChanged(2))
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"presence_count_changed","payload":{"count":2}}`, string(b))

	_, err = encodeEvent(domain.Event{Kind: "bogus", Payload: struct{}{}})
	require.Error(t, err)
}
