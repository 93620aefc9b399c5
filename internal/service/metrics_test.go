package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeSettle(outcomeSettled, time.Now())
	m.observeSettle(outcomeSettled, time.Now())
	m.observeSettle(outcomeInsufficientFunds, time.Now())
	m.addDebit(6000)
	m.addCredit(10000)
	m.reconciled(true)
	m.reconciled(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.settleTotal.WithLabelValues(outcomeSettled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.settleTotal.WithLabelValues(outcomeInsufficientFunds)))
	assert.Equal(t, float64(6000), testutil.ToFloat64(m.debitedMinor))
	assert.Equal(t, float64(10000), testutil.ToFloat64(m.creditedMinor))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconciledTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconcileErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(m.settleDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeSettle(outcomeError, time.Now())
		m.addDebit(1)
		m.addCredit(1)
		m.reconciled(true)
	})
}
