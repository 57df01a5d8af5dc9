package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
)

// StatsCollector periodically samples per-status request counts into the
// requests_by_status gauge. It only reads the store and never touches the
// lifecycle or the connection registry.
type StatsCollector struct {
	Store    store.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Interval time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewStatsCollector creates a collector. A non-positive interval defaults
// to 15 seconds.
func NewStatsCollector(st store.Store, m *metrics.Metrics, logger *slog.Logger, interval time.Duration) *StatsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &StatsCollector{
		Store:    st,
		Metrics:  m,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sampling loop in the background until Stop is called.
func (s *StatsCollector) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
	s.Logger.Info("stats collector started", "interval", s.Interval)
}

// Stop shuts the loop down and waits for an in-flight sample. Safe to call
// more than once, or without Start.
func (s *StatsCollector) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if !s.started.Load() {
			return
		}
		<-s.doneCh
		s.Logger.Info("stats collector stopped")
	})
}

func (s *StatsCollector) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Collect(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Collect(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Collect takes one sample.
func (s *StatsCollector) Collect(ctx context.Context) {
	counts, err := s.Store.Requests().CountByStatus(ctx)
	if err != nil {
		s.Logger.Error("failed to count requests by status", "error", err)
		return
	}
	for status, n := range counts {
		s.Metrics.SetRequestsByStatus(string(status), n)
	}
	s.Logger.Debug("request stats collected", "pending", counts[domain.StatusPending])
}
