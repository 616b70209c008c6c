package shared

import "time"

// Screen identifies one kiosk screen.
type Screen string

const (
	ScreenChooseVerification Screen = "CHOOSE_VERIFICATION"
	ScreenIDCapture          Screen = "ID_CAPTURE"
	ScreenAgeVerified        Screen = "AGE_VERIFIED"
	ScreenAgeNotVerified     Screen = "AGE_NOT_VERIFIED"
)

// Valid reports whether s is a known screen.
func (s Screen) Valid() bool {
	switch s {
	case ScreenChooseVerification, ScreenIDCapture, ScreenAgeVerified, ScreenAgeNotVerified:
		return true
	}
	return false
}

// IsResult reports whether s is one of the pass/fail result screens.
func (s Screen) IsResult() bool {
	return s == ScreenAgeVerified || s == ScreenAgeNotVerified
}

// VerificationMethod is the method picked on the choose screen.
type VerificationMethod string

const (
	MethodIDScan VerificationMethod = "ID_SCAN"
)

// FlowContext is carried from screen to screen. A screen never modifies the
// context it was started with; only the navigator builds the next one.
type FlowContext struct {
	IsFullFlow    bool  `json:"isFullFlow"`
	TimeoutIDMs   int64 `json:"timeoutIdMs"`
	TimeoutFaceMs int64 `json:"timeoutFaceMs"`
	ScreenSeq     int64 `json:"screenSeq"`
}

// CaptureTimeout returns the capture timeout carried by the context, or the
// capture screen default when none was supplied.
func (f FlowContext) CaptureTimeout() time.Duration {
	if f.TimeoutIDMs <= 0 {
		return DefaultCaptureTimeout
	}
	return time.Duration(f.TimeoutIDMs) * time.Millisecond
}

// RejectionReason is the reason the capture engine gives for rejecting a document.
type RejectionReason string

const (
	RejectionUnsupportedDocument  RejectionReason = "UNSUPPORTED_DOCUMENT"
	RejectionMalformedEncodedData RejectionReason = "MALFORMED_ENCODED_DATA"
	RejectionRuleViolation        RejectionReason = "RULE_VIOLATION"
	// RejectionLocalizationTimeout means a document was seen but could not be
	// read in time. It is informational and never ends an attempt.
	RejectionLocalizationTimeout RejectionReason = "LOCALIZATION_TIMEOUT"
)

// Definitive reports whether the reason ends a capture attempt.
func (r RejectionReason) Definitive() bool {
	return r != RejectionLocalizationTimeout
}

// DocumentType is a document family accepted by the capture engine.
type DocumentType string

const (
	DocumentIDCard        DocumentType = "ID_CARD"
	DocumentDriverLicense DocumentType = "DRIVER_LICENSE"
	DocumentPassport      DocumentType = "PASSPORT"
)

// CapturedDocument holds the fields the engine extracted from a document.
type CapturedDocument struct {
	FullName       string       `json:"fullName,omitempty"`
	DateOfBirth    *time.Time   `json:"dateOfBirth,omitempty"`
	DateOfExpiry   *time.Time   `json:"dateOfExpiry,omitempty"`
	DocumentNumber string       `json:"documentNumber,omitempty"`
	Nationality    string       `json:"nationality,omitempty"`
	DocumentType   DocumentType `json:"documentType,omitempty"`
}

// OutcomeKind tags a CaptureOutcome.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "SUCCESS"
	OutcomeRejected OutcomeKind = "REJECTED"
	OutcomeTimedOut OutcomeKind = "TIMED_OUT"
)

// CaptureOutcome is the single terminal result of a verification attempt.
// Fields and AgeYears are set for OutcomeSuccess, Reason for OutcomeRejected.
type CaptureOutcome struct {
	Kind      OutcomeKind       `json:"kind"`
	AttemptID string            `json:"attemptId"`
	Fields    *CapturedDocument `json:"fields,omitempty"`
	AgeYears  int               `json:"ageYears,omitempty"`
	Passed    bool              `json:"passed"`
	Reason    RejectionReason   `json:"reason,omitempty"`

	Elapsed      time.Duration `json:"elapsed"`
	SincePresent time.Duration `json:"sincePresent"`
}

// Verdict returns "pass" or "fail" for metrics and logs.
func (o CaptureOutcome) Verdict() string {
	if o.Passed {
		return "pass"
	}
	return "fail"
}

// LeaveCause records why a result screen was left.
type LeaveCause string

const (
	LeaveAutoReturn LeaveCause = "AUTO_RETURN"
	LeaveConfirmed  LeaveCause = "CONFIRMED"
)

// ChoiceSignal is sent when a verification method is picked on the choose screen.
type ChoiceSignal struct {
	ScreenSeq int64              `json:"screenSeq"`
	Method    VerificationMethod `json:"method"`
}

// OutcomeSignal carries a capture screen's terminal outcome to the navigator.
type OutcomeSignal struct {
	ScreenSeq int64          `json:"screenSeq"`
	Outcome   CaptureOutcome `json:"outcome"`
}

// DismissSignal is sent when a result screen is left.
type DismissSignal struct {
	ScreenSeq int64      `json:"screenSeq"`
	Screen    Screen     `json:"screen"`
	Cause     LeaveCause `json:"cause"`
}

// ScreenRequest asks a kiosk to present a screen.
type ScreenRequest struct {
	KioskID      string          `json:"kioskId"`
	Screen       Screen          `json:"screen"`
	Flow         FlowContext     `json:"flow"`
	Outcome      *CaptureOutcome `json:"outcome,omitempty"`
	ClearHistory bool            `json:"clearHistory"`
}

// FlowRequest is the input to the KioskFlowWorkflow.
type FlowRequest struct {
	KioskID   string      `json:"kioskId"`
	TaskQueue string      `json:"taskQueue"`
	Defaults  FlowContext `json:"defaults"`
	NextSeq   int64       `json:"nextSeq"`
	Attempts  int         `json:"attempts"`
}

// FlowStatusResponse is returned by the current-screen query.
type FlowStatusResponse struct {
	Screen    Screen `json:"screen"`
	ScreenSeq int64  `json:"screenSeq"`
	Attempts  int    `json:"attempts"`
}
