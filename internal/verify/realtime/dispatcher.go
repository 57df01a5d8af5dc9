package realtime

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
)

// Dispatcher fans domain events out to the live connections whose identity
// matches the event's target.
//
// Emission is serialised, so every recipient sees events in one global
// order. Delivery never blocks: a connection that cannot take a frame is
// dropped and presence is re-broadcast.
type Dispatcher struct {
	Registry *Registry
	Metrics  *metrics.Metrics

	emitMu sync.Mutex
}

func NewDispatcher(reg *Registry, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{Registry: reg, Metrics: m}
}

// Emit delivers ev to every matching connection. Transport failures never
// reach the caller.
func (d *Dispatcher) Emit(ctx context.Context, ev domain.Event) {
	d.emit(ctx, func() domain.Event { return ev })
}

// Connect registers c and broadcasts the new presence count, which c itself
// also receives.
func (d *Dispatcher) Connect(ctx context.Context, c Conn) ConnID {
	id := d.Registry.Register(c)
	slogx.FromContext(ctx).Debug("connection registered", "conn_id", id)
	d.emitPresence(ctx)
	return id
}

// Identify binds an identity to a live connection.
func (d *Dispatcher) Identify(id ConnID, identity domain.Identity) error {
	return d.Registry.Identify(id, identity)
}

// Disconnect unregisters and closes the connection. Presence is broadcast
// only when the entry was actually removed, so repeated calls for the same
// connection fire it once.
func (d *Dispatcher) Disconnect(ctx context.Context, id ConnID) {
	c, ok := d.Registry.remove(id)
	if !ok {
		return
	}
	_ = c.Close()
	slogx.FromContext(ctx).Debug("connection unregistered", "conn_id", id)
	d.emitPresence(ctx)
}

// Close drops every live connection without further presence broadcasts.
// Used on shutdown.
func (d *Dispatcher) Close() {
	for _, c := range d.Registry.drain() {
		_ = c.Close()
	}
	d.Metrics.SetLiveConnections(0)
}

// emitPresence computes the count under the emit lock so the value sent
// always reflects the registry at broadcast time.
func (d *Dispatcher) emitPresence(ctx context.Context) {
	d.emit(ctx, func() domain.Event {
		n := d.Registry.Size()
		d.Metrics.SetLiveConnections(n)
		return domain.PresenceCountChanged(n)
	})
}

func (d *Dispatcher) emit(ctx context.Context, build func() domain.Event) {
	log := slogx.FromContext(ctx)

	d.emitMu.Lock()
	ev := build()
	frame, err := encodeEvent(ev)
	if err != nil {
		d.emitMu.Unlock()
		log.Error("failed to encode event", "kind", ev.Kind, "error", err)
		return
	}

	var (
		delivered int
		failed    []ConnID
	)
	for _, c := range d.Registry.Snapshot() {
		if !ev.Target.Matches(c.Identity) {
			continue
		}
		if c.Conn.Send(frame) {
			delivered++
			continue
		}
		failed = append(failed, c.ID)
	}
	d.emitMu.Unlock()

	d.Metrics.IncrementEventsDelivered(string(ev.Kind), delivered)
	d.Metrics.IncrementDeliveryFailures(len(failed))

	// Dropping re-enters emit for the presence broadcast, so it must run
	// after the lock is released.
	for _, id := range failed {
		log.Debug("delivery failed, dropping connection", "conn_id", id, "kind", ev.Kind)
		d.Disconnect(ctx, id)
	}
}
