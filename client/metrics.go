package client

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts executor attempts and refresh outcomes
type Metrics struct {
	attempts  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewMetrics creates the client counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wardwatch_client_attempts_total",
				Help: "Authenticated request attempts by status code and attempt number",
			},
			[]string{"status", "attempt"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wardwatch_client_refreshes_total",
				Help: "Access token refreshes by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.refreshes)
	}
	return m
}

func (m *Metrics) observeAttempt(status int, a attempt) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.attempts.WithLabelValues(label, a.String()).Inc()
}

func (m *Metrics) observeRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.refreshes.WithLabelValues(result).Inc()
}
