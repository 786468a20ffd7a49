// Package metrics exposes sysrepod's process-wide counters and histograms
// via github.com/VictoriaMetrics/metrics, the metrics library the teacher's
// own go.mod declared but never imported. This is the first package in this
// module to actually wire it up.
package metrics

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

var (
	sessionsActive        = metrics.NewCounter("sysrepod_sessions_active")
	commitsTotal          = metrics.NewCounter("sysrepod_commits_total")
	commitFailuresTotal   = metrics.NewCounter("sysrepod_commit_failures_total")
	commitDuration        = metrics.NewHistogram("sysrepod_commit_duration_seconds")
	notificationsTotal    = metrics.NewCounter("sysrepod_notifications_dispatched_total")
	validationFailures    = metrics.NewCounter("sysrepod_validation_failures_total")
	connectionsRejected   = metrics.NewCounter("sysrepod_connections_rejected_total")
)

// SessionOpened increments the active-session gauge-like counter.
func SessionOpened() { sessionsActive.Inc() }

// SessionClosed decrements it.
func SessionClosed() { sessionsActive.Dec() }

// CommitObserved records a commit attempt's outcome and duration in
// seconds.
func CommitObserved(ok bool, seconds float64) {
	commitsTotal.Inc()
	if !ok {
		commitFailuresTotal.Inc()
	}
	commitDuration.Update(seconds)
}

// NotificationDispatched records one notification delivery.
func NotificationDispatched() { notificationsTotal.Inc() }

// ValidationFailed records one failed validation pass.
func ValidationFailed() { validationFailures.Inc() }

// ConnectionRejected records one connection refused at accept time by the
// connection manager's peer checks.
func ConnectionRejected() { connectionsRejected.Inc() }

// Handler returns the Prometheus-format exposition handler, served as the
// whole handler of the daemon's optional metrics listener.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}
