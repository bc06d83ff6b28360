// Package metrics defines and registers all custom Prometheus metrics for the
// loanbook service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "loanbook"

// ── Store metrics ─────────────────────────────────────────────────────────────

// StoreCallsTotal counts record store calls.
// Labels:
//   - op: "count", "fetch", "create", "issue", "subscribe", "balance", "send"
//   - result: "ok" or "error"
var StoreCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_calls_total",
		Help:      "Total number of record store calls, by operation and result.",
	},
	[]string{"op", "result"},
)

// StoreCallDuration measures record store call latency.
// Label:
//   - op: see StoreCallsTotal
var StoreCallDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_call_duration_seconds",
		Help:      "Duration of record store calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op"},
)

// ── Render metrics ────────────────────────────────────────────────────────────

// RenderPassesTotal counts completed render passes.
// Label:
//   - result: "ok", or the error kind ("no_wallet", "store_unavailable",
//     "partial_fetch", "transaction", "other")
var RenderPassesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_passes_total",
		Help:      "Total number of render passes, by outcome.",
	},
	[]string{"result"},
)

// RenderedRows is the number of rows shown by the last successful pass.
var RenderedRows = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rendered_rows",
		Help:      "Number of loans shown by the last successful render pass.",
	},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsTotal counts append notifications.
// Label:
//   - result: "received", "duplicate" or "coalesced"
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of append notifications, by handling result.",
	},
	[]string{"result"},
)

// StreamClients tracks connected websocket clients.
var StreamClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_clients",
		Help:      "Current number of connected loan stream clients.",
	},
)
