/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds the process metrics and tracing setup.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transmission metrics.
var (
	MinutesTransmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timesignal_minutes_transmitted_total",
		Help: "Minute frames transmitted in full.",
	}, []string{"standard"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timesignal_carrier_transitions_total",
		Help: "Output state changes requested from the carrier driver.",
	}, []string{"standard"})

	WakeLateness = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timesignal_wake_lateness_seconds",
		Help:    "How far past its deadline each transition was issued.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}, []string{"standard"})

	LateWakeupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timesignal_late_wakeups_total",
		Help: "Transitions issued later than the lateness warning threshold.",
	}, []string{"standard"})

	TimingErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timesignal_timing_errors_total",
		Help: "Runs aborted because the clock or suspend primitive failed.",
	})

	CarrierActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timesignal_carrier_active",
		Help: "1 while the carrier output is in its active state.",
	})

	SessionRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timesignal_session_running",
		Help: "1 while a transmission session is running.",
	}, []string{"standard", "mode"})
)

// HTTP surface metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timesignal_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timesignal_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timesignal_http_active_connections",
		Help: "HTTP requests in flight.",
	})

	// Journal metrics
	JournalQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timesignal_journal_query_duration_seconds",
		Help:    "Journal database operation duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	JournalErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timesignal_journal_errors_total",
		Help: "Failed journal database operations.",
	}, []string{"operation"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BoolGauge converts a state to a gauge value.
func BoolGauge(on bool) float64 {
	if on {
		return 1
	}
	return 0
}
