package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metricer interface {
	RecordTick()
	RecordFetchError()
	RecordMintAttempt()
	RecordMintSuccess()
	RecordMintFailure(reason string)
	RecordInflight(n int64)
}

type Metrics struct {
	ticks       prometheus.Counter
	fetchErrors prometheus.Counter
	attempts    prometheus.Counter
	successes   prometheus.Counter
	failures    *prometheus.CounterVec
	inflight    prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(ns string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "minter",
			Name:      "ticks_total",
			Help:      "Count of scheduler ticks",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "minter",
			Name:      "fetch_error_count",
			Help:      "Count of failed pending-mints fetches",
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "minter",
			Name:      "mint_attempts_total",
			Help:      "Count of inscription tool invocations",
		}),
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "minter",
			Name:      "mint_success_total",
			Help:      "Count of successfully confirmed mints",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "minter",
			Name:      "mint_failure_total",
			Help:      "Count of failed mint attempts by reason",
		}, []string{"reason"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "minter",
			Name:      "inflight_mints",
			Help:      "Number of mints currently executing",
		}),
	}
	registry.MustRegister(m.ticks, m.fetchErrors, m.attempts, m.successes, m.failures, m.inflight)
	return m
}

func (m *Metrics) RecordTick() {
	m.ticks.Inc()
}

func (m *Metrics) RecordFetchError() {
	m.fetchErrors.Inc()
}

func (m *Metrics) RecordMintAttempt() {
	m.attempts.Inc()
}

func (m *Metrics) RecordMintSuccess() {
	m.successes.Inc()
}

func (m *Metrics) RecordMintFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordInflight(n int64) {
	m.inflight.Set(float64(n))
}
