// Package navigator turns capture outcomes and result-screen exits into the
// next screen. Local applies the routing rules in-process; Temporal forwards
// every event to the kiosk flow workflow, which applies the same rules
// durably.
package navigator

import (
	"context"
	"sync"

	"go.temporal.io/sdk/log"

	"kiosk-age-verification/flow"
	"kiosk-age-verification/metrics"
	"kiosk-age-verification/session"
	"kiosk-age-verification/shared"
)

// Presenter shows a screen on the kiosk.
type Presenter interface {
	Present(ctx context.Context, req shared.ScreenRequest) error
}

// Local is the standalone navigator. Each screen gets a sequence number;
// events carrying any other sequence are stale and dropped.
type Local struct {
	kioskID   string
	presenter Presenter
	defaults  shared.FlowContext
	logger    log.Logger

	mu       sync.Mutex
	seq      int64
	current  shared.Screen
	attempts int
}

var _ session.Navigator = (*Local)(nil)

// NewLocal creates a standalone navigator for one kiosk.
func NewLocal(kioskID string, presenter Presenter, defaults shared.FlowContext, logger log.Logger) *Local {
	return &Local{
		kioskID:   kioskID,
		presenter: presenter,
		defaults:  defaults,
		logger:    logger,
	}
}

// Start shows the resting screen.
func (n *Local) Start(ctx context.Context) error {
	n.mu.Lock()
	n.seq++
	tr := flow.Initial(n.defaults, n.seq)
	n.current = tr.Screen
	n.mu.Unlock()

	n.logger.Info("Kiosk flow started", "kioskId", n.kioskID, "mode", "standalone")
	return n.presenter.Present(ctx, tr.Request(n.kioskID, nil))
}

// Choose handles a method picked on the choose screen.
func (n *Local) Choose(method shared.VerificationMethod, fc shared.FlowContext) error {
	n.mu.Lock()
	if !n.acceptLocked(shared.ScreenChooseVerification, fc, shared.SignalVerificationChosen) {
		n.mu.Unlock()
		return nil
	}
	tr, err := flow.AfterChoice(fc, method, n.seq+1)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	n.advanceLocked(tr)
	n.mu.Unlock()

	n.present(shared.SignalVerificationChosen, tr, nil)
	return nil
}

// ReportOutcome implements session.OutcomeReporter.
func (n *Local) ReportOutcome(outcome shared.CaptureOutcome, fc shared.FlowContext) {
	n.mu.Lock()
	if !n.acceptLocked(shared.ScreenIDCapture, fc, shared.SignalCaptureOutcome) {
		n.mu.Unlock()
		return
	}
	n.attempts++
	tr := flow.AfterCapture(fc, outcome, n.seq+1)
	n.advanceLocked(tr)
	n.mu.Unlock()

	n.present(shared.SignalCaptureOutcome, tr, &outcome)
}

// LeaveResult implements session.ResultExiter.
func (n *Local) LeaveResult(screen shared.Screen, cause shared.LeaveCause, fc shared.FlowContext) {
	n.mu.Lock()
	if !n.acceptLocked(screen, fc, shared.SignalResultDismissed) {
		n.mu.Unlock()
		return
	}
	tr, err := flow.AfterResult(screen, fc, n.seq+1)
	if err != nil {
		n.mu.Unlock()
		n.logger.Error("Cannot leave screen", "screen", screen, "error", err)
		return
	}
	n.advanceLocked(tr)
	n.mu.Unlock()

	n.logger.Debug("Result screen left", "screen", screen, "cause", cause, "next", tr.Screen)
	n.present(shared.SignalResultDismissed, tr, nil)
}

// Status reports the screen the navigator last routed to.
func (n *Local) Status() shared.FlowStatusResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	return shared.FlowStatusResponse{Screen: n.current, ScreenSeq: n.seq, Attempts: n.attempts}
}

func (n *Local) acceptLocked(screen shared.Screen, fc shared.FlowContext, signal string) bool {
	if n.current == screen && fc.ScreenSeq == n.seq {
		return true
	}
	metrics.RecordDuplicateSignal(signal)
	n.logger.Debug("Dropping stale navigation event",
		"signal", signal,
		"screen", screen,
		"screenSeq", fc.ScreenSeq,
		"currentScreen", n.current,
		"currentSeq", n.seq,
	)
	return false
}

func (n *Local) advanceLocked(tr flow.Transition) {
	n.seq = tr.Flow.ScreenSeq
	n.current = tr.Screen
}

func (n *Local) present(signal string, tr flow.Transition, outcome *shared.CaptureOutcome) {
	if err := n.presenter.Present(context.Background(), tr.Request(n.kioskID, outcome)); err != nil {
		metrics.RecordNavigationError(signal)
		n.logger.Error("Failed to present screen", "screen", tr.Screen, "error", err)
	}
}
