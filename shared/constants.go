package shared

import "time"

// Task queue names. Screen activities run on a per-kiosk queue so they land
// on the device that owns the display.
const (
	KioskFlowTaskQueue     = "kiosk-flow-tq"
	KioskScreenQueuePrefix = "kiosk-screen-tq-"
	FlowWorkflowIDPrefix   = "kiosk-flow-"
)

// Signal and query names.
const (
	SignalVerificationChosen = "signal-verification-chosen"
	SignalCaptureOutcome     = "signal-capture-outcome"
	SignalResultDismissed    = "signal-result-dismissed"
	QueryCurrentScreen       = "query-current-screen"
)

// Capture timing defaults.
const (
	DefaultCaptureTimeout = 3000 * time.Millisecond
	DefaultTimeoutIDMs    = int64(5000)
	DefaultTimeoutFaceMs  = int64(5000)
)

// Result screen auto-return delays.
const (
	SuccessAutoReturnDelay = 5000 * time.Millisecond
	FailureAutoReturnDelay = 2000 * time.Millisecond
)

// Camera stall watchdog. After the camera reports On, the session waits
// StallCheckDelay and recreates the screen if no frame arrived within
// StallFrameWindow.
const (
	StallCheckDelay  = 500 * time.Millisecond
	StallFrameWindow = 1000 * time.Millisecond
)

// LegalAgeYears is the minimum age, in whole years, for a passing verification.
const LegalAgeYears = 18

// Error types for non-retryable failures.
const (
	ErrTypeUnknownScreen     = "UnknownScreen"
	ErrTypeScreenUnavailable = "ScreenUnavailable"
)

// ScreenTaskQueue returns the activity task queue served by the given kiosk.
func ScreenTaskQueue(kioskID string) string {
	return KioskScreenQueuePrefix + kioskID
}

// FlowWorkflowID returns the workflow ID of the given kiosk's flow.
func FlowWorkflowID(kioskID string) string {
	return FlowWorkflowIDPrefix + kioskID
}
