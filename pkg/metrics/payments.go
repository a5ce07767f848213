package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks checkout and settlement outcomes per provider.
type PaymentMetrics struct {
	checkouts   *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by provider and result.",
	}, []string{"provider", "result"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_total",
		Help: "Payment settlement callbacks by provider and result.",
	}, []string{"provider", "result"})
	reg.MustRegister(checkouts, settlements)
	return &PaymentMetrics{
		checkouts:   checkouts,
		settlements: settlements,
	}
}

// IncCheckout counts one checkout attempt outcome.
func (p *PaymentMetrics) IncCheckout(provider, result string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// IncSettlement counts one settlement callback outcome.
func (p *PaymentMetrics) IncSettlement(provider, result string) {
	if p == nil || p.settlements == nil {
		return
	}
	p.settlements.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}
