package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStatsCollector(t *testing.T) {
	svc, _, _ := newVerificationService(t)
	ctx := context.Background()

	for range 3 {
		_, err := svc.Submit(ctx, validPayload(), nil)
		require.NoError(t, err)
	}
	r, err := svc.Submit(ctx, validPayload(), nil)
	require.NoError(t, err)
	_, err = svc.Adjudicate(ctx, r.ID, "already_used", admin)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	c := NewStatsCollector(svc.Store, m, slogx.Discard(), time.Hour)
	c.Collect(ctx)

	require.Equal(t, float64(3), testutil.ToFloat64(m.RequestsByStatus.WithLabelValues("pending")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RequestsByStatus.WithLabelValues("already_used")))
	require.Equal(t, float64(0), testutil.ToFloat64(m.RequestsByStatus.WithLabelValues("valid")))
}

func TestStatsCollector_StartStop(t *testing.T) {
	svc, _, _ := newVerificationService(t)
	m := metrics.New(prometheus.NewRegistry())

	c := NewStatsCollector(svc.Store, m, slogx.Discard(), 0)
	require.Equal(t, 15*time.Second, c.Interval)

	c.Start()
	require.Eventually(t, func() bool {
		return testutil.CollectAndCount(m.RequestsByStatus) == 4
	}, time.Second, 10*time.Millisecond)

	c.Stop()
	c.Stop()
}
