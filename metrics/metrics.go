// Package metrics provides Prometheus instrumentation for the kiosk flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kiosk-age-verification/shared"
)

// =============================================================================
// CAPTURE METRICS
// =============================================================================

var (
	captureOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_capture_outcomes_total",
			Help: "Terminal capture outcomes",
		},
		[]string{"outcome", "verdict"}, // outcome: SUCCESS, REJECTED, TIMED_OUT
	)

	captureDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiosk_capture_duration_seconds",
			Help:    "Time from arming a capture session to its terminal outcome",
			Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 10, 20},
		},
		[]string{"outcome"},
	)

	captureSincePresentSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_capture_since_present_seconds",
			Help:    "Time from first document localization to the terminal outcome",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
	)

	duplicateSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_duplicate_signals_total",
			Help: "Signals discarded because the attempt or screen had already ended",
		},
		[]string{"signal"},
	)

	localizationTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_localization_timeouts_total",
			Help: "Documents seen but not read in time",
		},
	)

	cameraStallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_camera_stalls_total",
			Help: "Capture screens recreated because the camera produced no frames",
		},
	)

	engineFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_engine_failures_total",
			Help: "Capture sessions that could not enable the engine",
		},
	)
)

// =============================================================================
// NAVIGATION METRICS
// =============================================================================

var (
	resultExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_result_exits_total",
			Help: "Result screens left, by cause",
		},
		[]string{"screen", "cause"}, // cause: AUTO_RETURN, CONFIRMED
	)

	screensShownTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_screens_shown_total",
			Help: "Screens presented on the kiosk",
		},
		[]string{"screen"},
	)

	navigationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_navigation_errors_total",
			Help: "Navigation signals that could not be delivered",
		},
		[]string{"signal"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordCaptureOutcome records a committed capture outcome.
func RecordCaptureOutcome(o shared.CaptureOutcome) {
	captureOutcomesTotal.WithLabelValues(string(o.Kind), o.Verdict()).Inc()
	captureDurationSeconds.WithLabelValues(string(o.Kind)).Observe(o.Elapsed.Seconds())
	captureSincePresentSeconds.Observe(o.SincePresent.Seconds())
}

// RecordDuplicateSignal records a signal dropped by an exactly-once guard.
func RecordDuplicateSignal(signal string) {
	duplicateSignalsTotal.WithLabelValues(signal).Inc()
}

// RecordLocalizationTimeout records an informational localization timeout.
func RecordLocalizationTimeout() {
	localizationTimeoutsTotal.Inc()
}

// RecordCameraStall records a capture screen recreated after a stall.
func RecordCameraStall() {
	cameraStallsTotal.Inc()
}

// RecordEngineFailure records a capture session that failed to start.
func RecordEngineFailure() {
	engineFailuresTotal.Inc()
}

// RecordResultExit records how a result screen was left.
func RecordResultExit(screen shared.Screen, cause shared.LeaveCause) {
	resultExitsTotal.WithLabelValues(string(screen), string(cause)).Inc()
}

// RecordScreenShown records a screen presentation.
func RecordScreenShown(screen shared.Screen) {
	screensShownTotal.WithLabelValues(string(screen)).Inc()
}

// RecordNavigationError records a navigation signal that failed to send.
func RecordNavigationError(signal string) {
	navigationErrorsTotal.WithLabelValues(signal).Inc()
}
