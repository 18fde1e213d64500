package payments

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	payments    *prometheus.CounterVec
	sessionLoss prometheus.Gauge
	txCount     prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talos_payments_total",
			Help: "Payments attempted, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		sessionLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "talos_session_loss_lamports",
			Help: "Lamports spent in the current session.",
		}),
		txCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "talos_session_tx_count",
			Help: "Payments sent in the current session.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.payments, m.sessionLoss, m.txCount)
	}
	return m
}

func (m *Metrics) observe(mode Mode, outcome string) {
	m.payments.WithLabelValues(string(mode), outcome).Inc()
}

func (m *Metrics) session(count int, loss uint64) {
	m.txCount.Set(float64(count))
	m.sessionLoss.Set(float64(loss))
}
