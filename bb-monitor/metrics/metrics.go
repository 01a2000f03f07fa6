package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metricer interface {
	RecordPollTick()
	RecordUpstreamError()
	RecordIngested(status string)
	RecordConfirm(result string)
	RecordPendingMints(pending int64)
}

type Metrics struct {
	pollTicks     prometheus.Counter
	upstreamError prometheus.Counter
	ingested      *prometheus.CounterVec
	confirms      *prometheus.CounterVec
	pendingMints  prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(ns string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		pollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "monitor",
			Name:      "poll_ticks_total",
			Help:      "Count of completed poller ticks",
		}),
		upstreamError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "monitor",
			Name:      "upstream_error_count",
			Help:      "Count of upstream explorer errors (timeouts, non-2xx)",
		}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "monitor",
			Name:      "ingested_total",
			Help:      "Count of newly ingested transactions by resulting status",
		}, []string{"status"}),
		confirms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "monitor",
			Name:      "confirm_total",
			Help:      "Count of confirm-mint calls by result",
		}, []string{"result"}),
		pendingMints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "monitor",
			Name:      "pending_mints",
			Help:      "Number of transactions currently pending a mint",
		}),
	}
	registry.MustRegister(m.pollTicks, m.upstreamError, m.ingested, m.confirms, m.pendingMints)
	return m
}

func (m *Metrics) RecordPollTick() {
	m.pollTicks.Inc()
}

func (m *Metrics) RecordUpstreamError() {
	m.upstreamError.Inc()
}

func (m *Metrics) RecordIngested(status string) {
	m.ingested.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordConfirm(result string) {
	m.confirms.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordPendingMints(pending int64) {
	m.pendingMints.Set(float64(pending))
}
