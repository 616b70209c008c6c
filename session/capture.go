// Package session holds the per-screen state machines of the kiosk flow: the
// capture session that races the document engine against a deadline, and the
// auto-return session used by the result screens.
//
// Both commit through a single mutex-guarded check-and-set. The first signal
// to take the session lock wins; every later signal is discarded.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"go.temporal.io/sdk/log"

	"kiosk-age-verification/engine"
	"kiosk-age-verification/metrics"
	"kiosk-age-verification/shared"
	"kiosk-age-verification/timer"
)

// State is the lifecycle state of a CaptureSession.
type State string

const (
	StateIdle     State = "IDLE"
	StateArmed    State = "ARMED"
	StateTerminal State = "TERMINAL"
	// StateClosed means the session was torn down, either after its outcome
	// was reported or before one was reached.
	StateClosed State = "CLOSED"
)

// OutcomeReporter receives the terminal outcome of a capture attempt.
type OutcomeReporter interface {
	ReportOutcome(outcome shared.CaptureOutcome, flow shared.FlowContext)
}

// ResultExiter is told when a result screen is left.
type ResultExiter interface {
	LeaveResult(screen shared.Screen, cause shared.LeaveCause, flow shared.FlowContext)
}

// Navigator is the screen-transition side of the flow.
type Navigator interface {
	OutcomeReporter
	ResultExiter
}

// VerificationAttempt is the bookkeeping for one run of the capture screen.
type VerificationAttempt struct {
	ID                      string
	StartedAt               time.Time
	Timeout                 time.Duration
	LocalizationStartedAt   *time.Time
	TerminalOutcomeReported bool
}

// Handle identifies an armed attempt.
type Handle struct {
	AttemptID string
	StartedAt time.Time
	Timeout   time.Duration
}

// CaptureSession owns a single verification attempt. Engine callbacks, the
// deadline and the stall watchdog may all call in from different goroutines.
type CaptureSession struct {
	engine   engine.Adapter
	reporter OutcomeReporter
	flow     shared.FlowContext
	clock    clock.Clock
	logger   log.Logger
	onStall  func(flow shared.FlowContext)
	listener *sessionListener

	deadline *timer.Timer
	watchdog *timer.Timer

	mu        sync.Mutex
	state     State
	attempt   VerificationAttempt
	token     timer.CancelToken
	outcome   *shared.CaptureOutcome
	lastFrame time.Time
}

// NewCaptureSession builds an idle session. flow is passed back unchanged
// with the outcome.
func NewCaptureSession(eng engine.Adapter, reporter OutcomeReporter, flow shared.FlowContext, opts ...Option) *CaptureSession {
	o := buildOptions(opts)
	s := &CaptureSession{
		engine:   eng,
		reporter: reporter,
		flow:     flow,
		clock:    o.clock,
		logger:   o.logger,
		onStall:  o.onStall,
		deadline: timer.New(o.clock),
		watchdog: timer.New(o.clock),
		state:    StateIdle,
	}
	s.listener = &sessionListener{s: s}
	return s
}

// Arm enables the capture engine and starts the deadline. It fails with
// shared.ErrInvalidDuration for a non-positive timeout and wraps
// shared.ErrEngineUnavailable when the engine cannot be switched on.
func (s *CaptureSession) Arm(timeout time.Duration) (Handle, error) {
	if timeout <= 0 {
		return Handle{}, fmt.Errorf("%w: %s", shared.ErrInvalidDuration, timeout)
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Handle{}, shared.ErrAlreadyArmed
	}
	s.state = StateArmed
	s.attempt = VerificationAttempt{
		ID:        uuid.NewString(),
		StartedAt: s.clock.Now(),
		Timeout:   timeout,
	}
	h := Handle{AttemptID: s.attempt.ID, StartedAt: s.attempt.StartedAt, Timeout: timeout}
	s.mu.Unlock()

	s.engine.AddListener(s.listener)
	if err := s.engine.Enable(); err != nil {
		s.mu.Lock()
		// A Close during Enable wins; the session stays closed.
		if s.state == StateArmed {
			s.state = StateIdle
			s.attempt = VerificationAttempt{}
		}
		s.watchdog.Stop()
		s.mu.Unlock()
		s.engine.RemoveListener(s.listener)

		metrics.RecordEngineFailure()
		s.logger.Error("Failed to arm capture session", "attemptId", h.AttemptID, "error", err)
		return Handle{}, fmt.Errorf("arm capture session: %w", err)
	}

	s.mu.Lock()
	state := s.state
	if state == StateArmed {
		s.token = s.deadline.Schedule(timeout, s.OnTimerExpired)
	}
	s.mu.Unlock()

	// Closed while the engine was starting.
	if state == StateClosed {
		s.engine.Disable()
		s.engine.RemoveListener(s.listener)
	}

	s.logger.Info("Capture session armed",
		"attemptId", h.AttemptID,
		"timeout", timeout,
		"isFullFlow", s.flow.IsFullFlow,
	)
	return h, nil
}

// OnEngineSuccess handles a fully captured document. A document without a
// birth date is committed as Rejected(UNSUPPORTED_DOCUMENT).
func (s *CaptureSession) OnEngineSuccess(doc shared.CapturedDocument) {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		s.discard("success")
		return
	}
	now := s.clock.Now()
	s.markLocalizedLocked(now)

	var o shared.CaptureOutcome
	if doc.DateOfBirth == nil {
		s.logger.Warn("Captured document has no birth date",
			"attemptId", s.attempt.ID,
			"documentType", doc.DocumentType,
		)
		o = shared.CaptureOutcome{Kind: shared.OutcomeRejected, Reason: shared.RejectionUnsupportedDocument}
	} else {
		age := AgeOn(*doc.DateOfBirth, now)
		fields := doc
		o = shared.CaptureOutcome{
			Kind:     shared.OutcomeSuccess,
			Fields:   &fields,
			AgeYears: age,
			Passed:   age >= shared.LegalAgeYears,
		}
	}
	o = s.commitLocked(o, now)
	s.mu.Unlock()

	s.finish(o)
}

// OnEngineRejected handles a rejection. LOCALIZATION_TIMEOUT only records
// when the document was first seen; every other reason ends the attempt.
func (s *CaptureSession) OnEngineRejected(reason shared.RejectionReason) {
	if !reason.Definitive() {
		s.mu.Lock()
		armed := s.state == StateArmed
		if armed {
			s.markLocalizedLocked(s.clock.Now())
		}
		id := s.attempt.ID
		s.mu.Unlock()

		if !armed {
			return
		}
		metrics.RecordLocalizationTimeout()
		s.logger.Debug("Document seen but not read in time", "attemptId", id)
		return
	}

	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		s.discard("rejected")
		return
	}
	o := s.commitLocked(shared.CaptureOutcome{Kind: shared.OutcomeRejected, Reason: reason}, s.clock.Now())
	s.mu.Unlock()

	s.finish(o)
}

// OnTimerExpired commits TimedOut unless another signal got there first. The
// engine is disabled before it returns.
func (s *CaptureSession) OnTimerExpired() {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		s.discard("timeout")
		return
	}
	o := s.commitLocked(shared.CaptureOutcome{Kind: shared.OutcomeTimedOut}, s.clock.Now())
	s.mu.Unlock()

	s.finish(o)
}

// Close tears the session down. It is safe to call in any state and more than
// once. A committed outcome stays readable.
func (s *CaptureSession) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	armed := s.attempt.ID != ""
	s.state = StateClosed
	s.deadline.Stop()
	s.watchdog.Stop()
	s.mu.Unlock()

	if armed {
		s.engine.Disable()
		s.engine.RemoveListener(s.listener)
	}
}

// State returns the current state.
func (s *CaptureSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns the committed outcome, or nil before one was reached.
func (s *CaptureSession) Outcome() *shared.CaptureOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return nil
	}
	o := *s.outcome
	return &o
}

// Attempt returns a copy of the attempt bookkeeping.
func (s *CaptureSession) Attempt() VerificationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.attempt
	if a.LocalizationStartedAt != nil {
		t := *a.LocalizationStartedAt
		a.LocalizationStartedAt = &t
	}
	return a
}

func (s *CaptureSession) markLocalizedLocked(now time.Time) {
	if s.attempt.LocalizationStartedAt == nil {
		s.attempt.LocalizationStartedAt = &now
	}
}

// commitLocked is the single commit point. The caller has checked the state.
func (s *CaptureSession) commitLocked(o shared.CaptureOutcome, now time.Time) shared.CaptureOutcome {
	s.state = StateTerminal
	s.attempt.TerminalOutcomeReported = true

	o.AttemptID = s.attempt.ID
	o.Elapsed = now.Sub(s.attempt.StartedAt)
	o.SincePresent = o.Elapsed
	if loc := s.attempt.LocalizationStartedAt; loc != nil {
		o.SincePresent = now.Sub(*loc)
	}
	s.outcome = &o

	s.deadline.Cancel(s.token)
	s.watchdog.Stop()
	return o
}

// finish runs the commit side effects outside the lock.
func (s *CaptureSession) finish(o shared.CaptureOutcome) {
	s.engine.Disable()
	s.engine.RemoveListener(s.listener)

	metrics.RecordCaptureOutcome(o)
	s.logger.Info("Capture attempt finished",
		"attemptId", o.AttemptID,
		"outcome", o.Kind,
		"verdict", o.Verdict(),
		"ageYears", o.AgeYears,
		"reason", o.Reason,
		"elapsed", o.Elapsed,
		"sincePresent", o.SincePresent,
	)
	s.reporter.ReportOutcome(o, s.flow)
}

func (s *CaptureSession) discard(signal string) {
	metrics.RecordDuplicateSignal(signal)
	s.logger.Debug("Discarding signal for finished attempt", "signal", signal)
}

func (s *CaptureSession) onCameraState(state engine.CameraState) {
	if state != engine.CameraOn || s.onStall == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateArmed {
		return
	}
	s.lastFrame = time.Time{}
	s.watchdog.Schedule(shared.StallCheckDelay, s.checkStall)
}

func (s *CaptureSession) onFrame() {
	s.mu.Lock()
	s.lastFrame = s.clock.Now()
	s.mu.Unlock()
}

// checkStall abandons the attempt when the camera is on but silent.
func (s *CaptureSession) checkStall() {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		return
	}
	if !s.lastFrame.IsZero() && s.clock.Now().Sub(s.lastFrame) <= shared.StallFrameWindow {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.deadline.Stop()
	id := s.attempt.ID
	s.mu.Unlock()

	s.engine.Disable()
	s.engine.RemoveListener(s.listener)

	metrics.RecordCameraStall()
	s.logger.Warn("Camera delivered no frames, recreating capture screen", "attemptId", id)
	s.onStall(s.flow)
}

// sessionListener keeps the engine callbacks off the session's exported API.
type sessionListener struct {
	s *CaptureSession
}

func (l *sessionListener) OnDocumentCaptured(doc shared.CapturedDocument) {
	l.s.OnEngineSuccess(doc)
}

func (l *sessionListener) OnDocumentRejected(_ *shared.CapturedDocument, reason shared.RejectionReason) {
	l.s.OnEngineRejected(reason)
}

func (l *sessionListener) OnCameraStateChanged(state engine.CameraState) {
	l.s.onCameraState(state)
}

func (l *sessionListener) OnFrame(time.Time) {
	l.s.onFrame()
}
