package navigator

import (
	"context"

	"go.temporal.io/sdk/log"

	"kiosk-age-verification/metrics"
	"kiosk-age-verification/session"
	"kiosk-age-verification/shared"
)

// Signaler is the part of client.Client the navigator uses.
type Signaler interface {
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
}

type outbound struct {
	name string
	arg  interface{}
}

// Temporal forwards kiosk events to the kiosk flow workflow. Sessions call it
// from their commit path, so enqueueing never blocks; Run delivers the
// signals in order.
type Temporal struct {
	client     Signaler
	workflowID string
	logger     log.Logger
	queue      chan outbound
}

var _ session.Navigator = (*Temporal)(nil)

// NewTemporal creates a navigator signalling workflowID. An empty run ID is
// used on every signal so continue-as-new runs keep receiving them.
func NewTemporal(c Signaler, workflowID string, logger log.Logger, buffer int) *Temporal {
	if buffer <= 0 {
		buffer = 16
	}
	return &Temporal{
		client:     c,
		workflowID: workflowID,
		logger:     logger,
		queue:      make(chan outbound, buffer),
	}
}

// Run delivers queued signals until ctx is done.
func (n *Temporal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case o := <-n.queue:
			if err := n.client.SignalWorkflow(ctx, n.workflowID, "", o.name, o.arg); err != nil {
				metrics.RecordNavigationError(o.name)
				n.logger.Error("Failed to signal kiosk flow",
					"workflowId", n.workflowID,
					"signal", o.name,
					"error", err,
				)
			}
		}
	}
}

// Choose implements the choose screen tap.
func (n *Temporal) Choose(method shared.VerificationMethod, fc shared.FlowContext) error {
	n.enqueue(shared.SignalVerificationChosen, shared.ChoiceSignal{ScreenSeq: fc.ScreenSeq, Method: method})
	return nil
}

// ReportOutcome implements session.OutcomeReporter.
func (n *Temporal) ReportOutcome(outcome shared.CaptureOutcome, fc shared.FlowContext) {
	n.enqueue(shared.SignalCaptureOutcome, shared.OutcomeSignal{ScreenSeq: fc.ScreenSeq, Outcome: outcome})
}

// LeaveResult implements session.ResultExiter.
func (n *Temporal) LeaveResult(screen shared.Screen, cause shared.LeaveCause, fc shared.FlowContext) {
	n.enqueue(shared.SignalResultDismissed, shared.DismissSignal{ScreenSeq: fc.ScreenSeq, Screen: screen, Cause: cause})
}

func (n *Temporal) enqueue(name string, arg interface{}) {
	select {
	case n.queue <- outbound{name: name, arg: arg}:
	default:
		metrics.RecordNavigationError(name)
		n.logger.Warn("Navigation queue full, dropping signal", "workflowId", n.workflowID, "signal", name)
	}
}
