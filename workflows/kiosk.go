package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"kiosk-age-verification/flow"
	"kiosk-age-verification/shared"
)

// kioskFlowWorkflow holds the navigator state of one kiosk: the screen it
// shows and the sequence number that screen was given.
type kioskFlowWorkflow struct {
	screen   shared.Screen
	fc       shared.FlowContext
	attempts int

	req       shared.FlowRequest
	logger    log.Logger
	actCtx    workflow.Context
	choiceCh  workflow.ReceiveChannel
	outcomeCh workflow.ReceiveChannel
	dismissCh workflow.ReceiveChannel
}

func newKioskFlowWorkflow(ctx workflow.Context, req shared.FlowRequest) (*kioskFlowWorkflow, error) {
	w := &kioskFlowWorkflow{
		attempts:  req.Attempts,
		req:       req,
		logger:    workflow.GetLogger(ctx),
		choiceCh:  workflow.GetSignalChannel(ctx, shared.SignalVerificationChosen),
		outcomeCh: workflow.GetSignalChannel(ctx, shared.SignalCaptureOutcome),
		dismissCh: workflow.GetSignalChannel(ctx, shared.SignalResultDismissed),
	}

	err := workflow.SetQueryHandler(ctx, shared.QueryCurrentScreen, func() (shared.FlowStatusResponse, error) {
		return shared.FlowStatusResponse{
			Screen:    w.screen,
			ScreenSeq: w.fc.ScreenSeq,
			Attempts:  w.attempts,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set query handler: %w", err)
	}

	taskQueue := req.TaskQueue
	if taskQueue == "" {
		taskQueue = shared.ScreenTaskQueue(req.KioskID)
	}
	actOpts := workflow.ActivityOptions{
		TaskQueue:           taskQueue,
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{shared.ErrTypeUnknownScreen},
		},
	}
	w.actCtx = workflow.WithActivityOptions(ctx, actOpts)

	return w, nil
}

// show records tr as the current screen and has the kiosk present it.
func (w *kioskFlowWorkflow) show(ctx workflow.Context, tr flow.Transition, outcome *shared.CaptureOutcome) error {
	w.screen = tr.Screen
	w.fc = tr.Flow

	err := workflow.ExecuteActivity(w.actCtx, a.ShowScreen, tr.Request(w.req.KioskID, outcome)).Get(ctx, nil)
	if err != nil {
		w.logger.Error("Failed to show screen", "kioskId", w.req.KioskID, "screen", tr.Screen, "error", err)
		return fmt.Errorf("failed to show %s: %w", tr.Screen, err)
	}
	w.logger.Info("Screen shown", "kioskId", w.req.KioskID, "screen", tr.Screen, "screenSeq", tr.Flow.ScreenSeq)
	return nil
}

// current reports whether a signal belongs to the screen being shown.
func (w *kioskFlowWorkflow) current(screen shared.Screen, seq int64, signal string) bool {
	if w.screen == screen && w.fc.ScreenSeq == seq {
		return true
	}
	w.logger.Info("Dropping stale signal",
		"kioskId", w.req.KioskID,
		"signal", signal,
		"screenSeq", seq,
		"currentScreen", w.screen,
		"currentSeq", w.fc.ScreenSeq,
	)
	return false
}

func (w *kioskFlowWorkflow) onChoice(sig shared.ChoiceSignal) (flow.Transition, bool) {
	if !w.current(shared.ScreenChooseVerification, sig.ScreenSeq, shared.SignalVerificationChosen) {
		return flow.Transition{}, false
	}
	tr, err := flow.AfterChoice(w.fc, sig.Method, w.fc.ScreenSeq+1)
	if err != nil {
		w.logger.Warn("Ignoring verification choice", "kioskId", w.req.KioskID, "error", err)
		return flow.Transition{}, false
	}
	return tr, true
}

func (w *kioskFlowWorkflow) onOutcome(sig shared.OutcomeSignal) (flow.Transition, bool) {
	if !w.current(shared.ScreenIDCapture, sig.ScreenSeq, shared.SignalCaptureOutcome) {
		return flow.Transition{}, false
	}
	w.attempts++
	w.logger.Info("Capture outcome received",
		"kioskId", w.req.KioskID,
		"attemptId", sig.Outcome.AttemptID,
		"outcome", sig.Outcome.Kind,
		"verdict", sig.Outcome.Verdict(),
	)
	return flow.AfterCapture(w.fc, sig.Outcome, w.fc.ScreenSeq+1), true
}

func (w *kioskFlowWorkflow) onDismiss(sig shared.DismissSignal) (flow.Transition, bool) {
	if !w.current(sig.Screen, sig.ScreenSeq, shared.SignalResultDismissed) {
		return flow.Transition{}, false
	}
	tr, err := flow.AfterResult(sig.Screen, w.fc, w.fc.ScreenSeq+1)
	if err != nil {
		w.logger.Warn("Ignoring result dismissal", "kioskId", w.req.KioskID, "error", err)
		return flow.Transition{}, false
	}
	return tr, true
}

// waitForEvent blocks until one signal arrives and returns the transition it
// causes, if any.
func (w *kioskFlowWorkflow) waitForEvent(ctx workflow.Context) (flow.Transition, *shared.CaptureOutcome, bool) {
	var (
		tr      flow.Transition
		outcome *shared.CaptureOutcome
		ok      bool
	)

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(w.choiceCh, func(c workflow.ReceiveChannel, more bool) {
		var sig shared.ChoiceSignal
		c.Receive(ctx, &sig)
		tr, ok = w.onChoice(sig)
	})
	selector.AddReceive(w.outcomeCh, func(c workflow.ReceiveChannel, more bool) {
		var sig shared.OutcomeSignal
		c.Receive(ctx, &sig)
		tr, ok = w.onOutcome(sig)
		if ok {
			outcome = &sig.Outcome
		}
	})
	selector.AddReceive(w.dismissCh, func(c workflow.ReceiveChannel, more bool) {
		var sig shared.DismissSignal
		c.Receive(ctx, &sig)
		tr, ok = w.onDismiss(sig)
	})
	selector.Select(ctx)

	return tr, outcome, ok
}

// drain empties the signal channels before continue-as-new. A choice made on
// the resting screen that was just shown is returned rather than lost.
func (w *kioskFlowWorkflow) drain() (flow.Transition, bool) {
	var choice shared.ChoiceSignal
	for w.choiceCh.ReceiveAsync(&choice) {
		if tr, ok := w.onChoice(choice); ok {
			return tr, true
		}
	}
	var outcome shared.OutcomeSignal
	for w.outcomeCh.ReceiveAsync(&outcome) {
		w.onOutcome(outcome)
	}
	var dismiss shared.DismissSignal
	for w.dismissCh.ReceiveAsync(&dismiss) {
		w.onDismiss(dismiss)
	}
	return flow.Transition{}, false
}

// KioskFlowWorkflow is the durable navigator of one kiosk.
//
// Screen sequence:
//
//	CHOOSE_VERIFICATION → ID_CAPTURE → AGE_VERIFIED | AGE_NOT_VERIFIED → CHOOSE_VERIFICATION
//
// In full flow AGE_NOT_VERIFIED returns to ID_CAPTURE instead. Every screen
// is numbered; a signal carrying another screen's number is dropped, so each
// screen causes at most one transition. The kiosk presents screens through
// the ShowScreen activity on its own task queue.
//
// Each time the flow is back on the resting screen the run continues as new,
// so history does not grow with the number of customers served.
func KioskFlowWorkflow(ctx workflow.Context, req shared.FlowRequest) error {
	w, err := newKioskFlowWorkflow(ctx, req)
	if err != nil {
		return err
	}

	if req.NextSeq == 0 {
		w.logger.Info("Kiosk flow started", "kioskId", req.KioskID)
		if err := w.show(ctx, flow.Initial(req.Defaults, 1), nil); err != nil {
			return err
		}
	} else {
		// The previous run already put the kiosk on the resting screen.
		rest := flow.Initial(req.Defaults, req.NextSeq)
		w.screen = rest.Screen
		w.fc = rest.Flow
	}

	for {
		tr, outcome, ok := w.waitForEvent(ctx)
		if !ok {
			continue
		}
		if err := w.show(ctx, tr, outcome); err != nil {
			return err
		}
		if tr.Screen != shared.ScreenChooseVerification {
			continue
		}

		if tr, ok := w.drain(); ok {
			if err := w.show(ctx, tr, nil); err != nil {
				return err
			}
			continue
		}

		w.logger.Info("Kiosk back at rest, continuing as new",
			"kioskId", req.KioskID,
			"screenSeq", w.fc.ScreenSeq,
			"attempts", w.attempts,
		)
		return workflow.NewContinueAsNewError(ctx, KioskFlowWorkflow, shared.FlowRequest{
			KioskID:   req.KioskID,
			TaskQueue: req.TaskQueue,
			Defaults:  req.Defaults,
			NextSeq:   w.fc.ScreenSeq,
			Attempts:  w.attempts,
		})
	}
}
