// Package metrics exposes registration desk counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the desk counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registrations *prometheus.CounterVec
	checkIns      prometheus.Counter
	badgesPrinted *prometheus.CounterVec
	queueExpiries *prometheus.CounterVec
	refunds       *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conreg",
			Name:      "registrations_total",
			Help:      "Registrations created, by resulting status.",
		}, []string{"status"}),
		checkIns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "conreg",
			Name:      "check_ins_total",
			Help:      "Attendees checked in.",
		}),
		badgesPrinted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conreg",
			Name:      "badges_printed_total",
			Help:      "Badges printed, split by first print and reprint.",
		}, []string{"kind"}),
		queueExpiries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conreg",
			Name:      "queue_expiries_total",
			Help:      "Queue entries dropped after sitting at the top too long.",
		}, []string{"queue"}),
		refunds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conreg",
			Name:      "refunds_total",
			Help:      "Payments refunded, by immediate or deferred settlement.",
		}, []string{"mode"}),
	}
}

// Registered counts a new registration.
func (m *Metrics) Registered(status string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(status).Inc()
}

// CheckedIn counts a check-in.
func (m *Metrics) CheckedIn() {
	if m == nil {
		return
	}
	m.checkIns.Inc()
}

// BadgePrinted counts one printed badge.
func (m *Metrics) BadgePrinted(reprint bool) {
	if m == nil {
		return
	}
	kind := "new"
	if reprint {
		kind = "reprint"
	}
	m.badgesPrinted.WithLabelValues(kind).Inc()
}

// QueueExpired counts an entry removed by the visibility window.
func (m *Metrics) QueueExpired(queue string) {
	if m == nil {
		return
	}
	m.queueExpiries.WithLabelValues(queue).Inc()
}

// Refunded counts a refunded payment.
func (m *Metrics) Refunded(deferred bool) {
	if m == nil {
		return
	}
	mode := "immediate"
	if deferred {
		mode = "deferred"
	}
	m.refunds.WithLabelValues(mode).Inc()
}
