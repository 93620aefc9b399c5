package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settle outcome labels.
const (
	outcomeSettled           = "settled"
	outcomeReplayed          = "replayed"
	outcomeInsufficientFunds = "insufficient_funds"
	outcomeError             = "error"
)

// Metrics holds the settlement engine's Prometheus collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	settleTotal     *prometheus.CounterVec
	settleDuration  prometheus.Histogram
	debitedMinor    prometheus.Counter
	creditedMinor   prometheus.Counter
	reconciledTotal prometheus.Counter
	reconcileErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_settlement",
			Name:      "settle_requests_total",
			Help:      "Settle calls by outcome.",
		}, []string{"outcome"}),
		settleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wallet_settlement",
			Name:      "settle_duration_seconds",
			Help:      "Settle call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		debitedMinor: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet_settlement",
			Name:      "wallet_debited_minor_total",
			Help:      "Sum of settlement debits in minor units.",
		}),
		creditedMinor: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet_settlement",
			Name:      "wallet_credited_minor_total",
			Help:      "Sum of wallet credits in minor units.",
		}),
		reconciledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet_settlement",
			Name:      "reconciled_fulfillments_total",
			Help:      "Fulfillment requests repaired by the reconciler.",
		}),
		reconcileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet_settlement",
			Name:      "reconcile_errors_total",
			Help:      "Orphaned settlements the reconciler failed to repair.",
		}),
	}
	reg.MustRegister(m.settleTotal, m.settleDuration, m.debitedMinor, m.creditedMinor, m.reconciledTotal, m.reconcileErrors)
	return m
}

func (m *Metrics) observeSettle(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.settleTotal.WithLabelValues(outcome).Inc()
	m.settleDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) addDebit(amount int64) {
	if m == nil {
		return
	}
	m.debitedMinor.Add(float64(amount))
}

func (m *Metrics) addCredit(amount int64) {
	if m == nil {
		return
	}
	m.creditedMinor.Add(float64(amount))
}

func (m *Metrics) reconciled(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.reconciledTotal.Inc()
		return
	}
	m.reconcileErrors.Inc()
}
