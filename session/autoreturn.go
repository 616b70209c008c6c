package session

import (
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/log"

	"kiosk-age-verification/metrics"
	"kiosk-age-verification/shared"
	"kiosk-age-verification/timer"
)

// ReturnState is the lifecycle state of an AutoReturnSession.
type ReturnState string

const (
	ReturnPending  ReturnState = "PENDING"
	ReturnShowing  ReturnState = "SHOWING"
	ReturnTerminal ReturnState = "TERMINAL"
	ReturnClosed   ReturnState = "CLOSED"
)

// AutoReturnSession races a fixed delay against a confirm tap on a result
// screen. Whichever comes first leaves the screen; the other is ignored.
//
// While paused the delay does not run. Resume starts the full delay again, so
// a screen never expires while it is not visible.
type AutoReturnSession struct {
	screen         shared.Screen
	flow           shared.FlowContext
	delay          time.Duration
	confirmOffered bool
	exiter         ResultExiter
	logger         log.Logger
	timer          *timer.Timer

	mu     sync.Mutex
	state  ReturnState
	paused bool
	token  timer.CancelToken
	cause  shared.LeaveCause
}

// NewAutoReturnSession builds a session for a result screen. confirmOffered
// controls whether Confirm has any effect.
func NewAutoReturnSession(
	screen shared.Screen,
	flow shared.FlowContext,
	delay time.Duration,
	confirmOffered bool,
	exiter ResultExiter,
	opts ...Option,
) (*AutoReturnSession, error) {
	if delay <= 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidDuration, delay)
	}
	o := buildOptions(opts)
	return &AutoReturnSession{
		screen:         screen,
		flow:           flow,
		delay:          delay,
		confirmOffered: confirmOffered,
		exiter:         exiter,
		logger:         o.logger,
		timer:          timer.New(o.clock),
		state:          ReturnPending,
	}, nil
}

// Show enters Showing and starts the delay unless the screen is paused.
func (r *AutoReturnSession) Show() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReturnPending {
		return
	}
	r.state = ReturnShowing
	if !r.paused {
		r.token = r.timer.Schedule(r.delay, r.onTimer)
	}
}

// ConfirmOffered reports whether the confirm control should be visible.
func (r *AutoReturnSession) ConfirmOffered() bool {
	return r.confirmOffered
}

// Confirm handles a tap on the confirm control. It reports whether the tap
// left the screen.
func (r *AutoReturnSession) Confirm() bool {
	if !r.confirmOffered {
		return false
	}
	return r.leave(shared.LeaveConfirmed)
}

// Pause stops the delay while the screen is not visible.
func (r *AutoReturnSession) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
	if r.state == ReturnShowing {
		r.timer.Cancel(r.token)
	}
}

// Resume restarts the full delay.
func (r *AutoReturnSession) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.paused = false
	if r.state == ReturnShowing {
		r.token = r.timer.Schedule(r.delay, r.onTimer)
	}
}

// Close cancels the delay without leaving the screen.
func (r *AutoReturnSession) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReturnTerminal {
		r.state = ReturnClosed
	}
	r.timer.Stop()
}

// State returns the current state.
func (r *AutoReturnSession) State() ReturnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Cause returns how the screen was left, or "" if it was not.
func (r *AutoReturnSession) Cause() shared.LeaveCause {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cause
}

func (r *AutoReturnSession) onTimer() {
	r.leave(shared.LeaveAutoReturn)
}

func (r *AutoReturnSession) leave(cause shared.LeaveCause) bool {
	r.mu.Lock()
	if r.state != ReturnShowing {
		r.mu.Unlock()
		metrics.RecordDuplicateSignal(string(cause))
		return false
	}
	r.state = ReturnTerminal
	r.cause = cause
	r.timer.Cancel(r.token)
	r.mu.Unlock()

	metrics.RecordResultExit(r.screen, cause)
	r.logger.Info("Leaving result screen", "screen", r.screen, "cause", cause)
	r.exiter.LeaveResult(r.screen, cause, r.flow)
	return true
}
