// Package observability holds the Prometheus instrumentation for the
// triage and dispatch pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters for report ingestion, triage, and
// alert dispatch.
type Metrics struct {
	ReportsIngested *prometheus.CounterVec // labels: source
	TriageDecisions *prometheus.CounterVec // labels: status

	AlertsDispatched *prometheus.CounterVec // labels: status={Sent,Failed,deduped}
	ChannelOutcomes  *prometheus.CounterVec // labels: channel, outcome={sent,failed}

	FeedMessages *prometheus.CounterVec // labels: outcome={ingested,invalid,rejected}
}

// NewMetrics creates and registers all metrics with the default registry
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsIngested,
		m.TriageDecisions,
		m.AlertsDispatched,
		m.ChannelOutcomes,
		m.FeedMessages,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default
// registry, avoiding "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "reports_ingested_total",
			Help:      "Reports accepted by ingestion, by source channel.",
		}, []string{"source"}),
		TriageDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "triage_decisions_total",
			Help:      "Triage outcomes by resulting report status.",
		}, []string{"status"}),
		AlertsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "alerts_dispatched_total",
			Help:      "Alert dispatch attempts by overall status.",
		}, []string{"status"}),
		ChannelOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "alert_channel_outcomes_total",
			Help:      "Per-channel alert delivery outcomes.",
		}, []string{"channel", "outcome"}),
		FeedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tidewatch",
			Name:      "feed_messages_total",
			Help:      "Social feed messages consumed, by outcome.",
		}, []string{"outcome"}),
	}
}
