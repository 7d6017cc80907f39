// Package metrics exposes the daemon's internal counters over the same
// admin HTTP mux that serves the WebSocket endpoint, via /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the daemon exposes.
type Metrics struct {
	WindowsManaged   prometheus.Gauge
	ClaimsTotal      *prometheus.CounterVec
	ClaimDuration    prometheus.Histogram
	ProcessesSpawned prometheus.Counter
	ProcessSpawnFail prometheus.Counter
	ProcessesAlive   prometheus.Gauge
	ActionsInvoked   *prometheus.CounterVec
	AdminClients     prometheus.Gauge
	NotificationsOut prometheus.Counter
	ScriptErrors     prometheus.Counter
	Uptime           prometheus.Gauge

	startTime time.Time
}

// New creates and registers the daemon's metrics collectors.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		WindowsManaged: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "neopult_windows_managed",
			Help: "Number of windows currently in the window manager's table.",
		}),
		ClaimsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neopult_claims_total",
				Help: "Number of claim_window calls, by outcome.",
			},
			[]string{"outcome"}, // "immediate", "waited", "timeout"
		),
		ClaimDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "neopult_claim_duration_seconds",
			Help:    "Time spent waiting inside claim_window.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		ProcessesSpawned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "neopult_processes_spawned_total",
			Help: "Total number of spawn_process calls that succeeded.",
		}),
		ProcessSpawnFail: promauto.NewCounter(prometheus.CounterOpts{
			Name: "neopult_process_spawn_failures_total",
			Help: "Total number of spawn_process calls that failed.",
		}),
		ProcessesAlive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "neopult_processes_alive",
			Help: "Number of child processes currently alive.",
		}),
		ActionsInvoked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neopult_actions_invoked_total",
				Help: "Number of action calls dispatched from the admin channel.",
			},
			[]string{"outcome"}, // "ok", "not_found", "script_error"
		),
		AdminClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "neopult_admin_clients",
			Help: "Number of authenticated admin WebSocket clients.",
		}),
		NotificationsOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "neopult_notifications_total",
			Help: "Total notification frames sent to admin clients.",
		}),
		ScriptErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "neopult_script_errors_total",
			Help: "Total errors caught from script callbacks.",
		}),
		Uptime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "neopult_uptime_seconds",
			Help: "Seconds since the daemon started.",
		}),
	}

	go m.updateUptime()
	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}
