package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the verification service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LiveConnections     prometheus.Gauge
	EventsDelivered     *prometheus.CounterVec
	DeliveryFailures    prometheus.Counter
	RequestsSubmitted   prometheus.Counter
	RequestsAdjudicated *prometheus.CounterVec
	RequestsByStatus    *prometheus.GaugeVec
	MailSent            *prometheus.CounterVec
	MailFailures        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "vouchercheck_ws_live_connections",
			Help: "Current number of live real-time connections",
		}),
		EventsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchercheck_events_delivered_total",
			Help: "Events enqueued to live connections, by kind",
		}, []string{"kind"}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vouchercheck_event_delivery_failures_total",
			Help: "Deliveries that failed and caused the connection to be dropped",
		}),
		RequestsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "vouchercheck_requests_submitted_total",
			Help: "Verification requests submitted",
		}),
		RequestsAdjudicated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchercheck_requests_adjudicated_total",
			Help: "Verification requests adjudicated, by outcome",
		}, []string{"outcome"}),
		RequestsByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vouchercheck_requests",
			Help: "Verification requests currently in each status, sampled periodically",
		}, []string{"status"}),
		MailSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchercheck_mail_sent_total",
			Help: "Notification mails handed to the mail driver, by template",
		}, []string{"template"}),
		MailFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchercheck_mail_failures_total",
			Help: "Notification mails that failed to render or send, by template",
		}, []string{"template"}),
	}
}

func (m *Metrics) SetLiveConnections(n int) {
	if m == nil {
		return
	}
	m.LiveConnections.Set(float64(n))
}

func (m *Metrics) IncrementEventsDelivered(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsDelivered.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) IncrementDeliveryFailures(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DeliveryFailures.Add(float64(n))
}

func (m *Metrics) IncrementRequestsSubmitted() {
	if m == nil {
		return
	}
	m.RequestsSubmitted.Inc()
}

func (m *Metrics) IncrementRequestsAdjudicated(outcome string) {
	if m == nil {
		return
	}
	m.RequestsAdjudicated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetRequestsByStatus(status string, n int) {
	if m == nil {
		return
	}
	m.RequestsByStatus.WithLabelValues(status).Set(float64(n))
}

func (m *Metrics) IncrementMailSent(template string) {
	if m == nil {
		return
	}
	m.MailSent.WithLabelValues(template).Inc()
}

func (m *Metrics) IncrementMailFailures(template string) {
	if m == nil {
		return
	}
	m.MailFailures.WithLabelValues(template).Inc()
}
