// Package flow holds the routing rules of the kiosk: which screen follows
// which, and with what FlowContext. It has no side effects; both navigators
// apply the same rules.
package flow

import (
	"fmt"
	"time"

	"kiosk-age-verification/shared"
)

// Transition is the next screen to present.
type Transition struct {
	Screen       shared.Screen
	Flow         shared.FlowContext
	ClearHistory bool
}

// Request builds the activity request for t on the given kiosk.
func (t Transition) Request(kioskID string, outcome *shared.CaptureOutcome) shared.ScreenRequest {
	return shared.ScreenRequest{
		KioskID:      kioskID,
		Screen:       t.Screen,
		Flow:         t.Flow,
		Outcome:      outcome,
		ClearHistory: t.ClearHistory,
	}
}

// Normalize fills in the choose screen defaults for missing timeouts.
func Normalize(fc shared.FlowContext) shared.FlowContext {
	if fc.TimeoutIDMs <= 0 {
		fc.TimeoutIDMs = shared.DefaultTimeoutIDMs
	}
	if fc.TimeoutFaceMs <= 0 {
		fc.TimeoutFaceMs = shared.DefaultTimeoutFaceMs
	}
	return fc
}

// Initial is the resting screen.
func Initial(defaults shared.FlowContext, seq int64) Transition {
	return Transition{Screen: shared.ScreenChooseVerification, Flow: next(Normalize(defaults), seq), ClearHistory: true}
}

// AfterChoice routes a method picked on the choose screen.
func AfterChoice(fc shared.FlowContext, method shared.VerificationMethod, seq int64) (Transition, error) {
	switch method {
	case shared.MethodIDScan:
		return Transition{Screen: shared.ScreenIDCapture, Flow: next(fc, seq)}, nil
	default:
		return Transition{}, fmt.Errorf("%w: %q", shared.ErrUnsupportedMethod, method)
	}
}

// AfterCapture routes a terminal capture outcome. Only a successful capture
// of someone of legal age reaches the verified screen.
func AfterCapture(fc shared.FlowContext, outcome shared.CaptureOutcome, seq int64) Transition {
	if outcome.Kind == shared.OutcomeSuccess && outcome.Passed {
		return Transition{Screen: shared.ScreenAgeVerified, Flow: next(fc, seq)}
	}
	return Transition{Screen: shared.ScreenAgeNotVerified, Flow: next(fc, seq)}
}

// AfterResult routes the exit of a result screen. In full flow a failure goes
// straight back to capture with the same timeouts.
func AfterResult(screen shared.Screen, fc shared.FlowContext, seq int64) (Transition, error) {
	switch screen {
	case shared.ScreenAgeVerified:
		return Transition{Screen: shared.ScreenChooseVerification, Flow: next(fc, seq), ClearHistory: true}, nil
	case shared.ScreenAgeNotVerified:
		if fc.IsFullFlow {
			return Transition{Screen: shared.ScreenIDCapture, Flow: next(fc, seq)}, nil
		}
		return Transition{Screen: shared.ScreenChooseVerification, Flow: next(fc, seq), ClearHistory: true}, nil
	default:
		return Transition{}, fmt.Errorf("%w: %q is not a result screen", shared.ErrUnknownScreen, screen)
	}
}

// ResultPolicy returns the auto-return delay of a result screen and whether
// it offers a confirm control.
func ResultPolicy(screen shared.Screen, fc shared.FlowContext, showButtons bool) (time.Duration, bool, error) {
	switch screen {
	case shared.ScreenAgeVerified:
		return shared.SuccessAutoReturnDelay, showButtons, nil
	case shared.ScreenAgeNotVerified:
		return shared.FailureAutoReturnDelay, fc.IsFullFlow, nil
	default:
		return 0, false, fmt.Errorf("%w: %q is not a result screen", shared.ErrUnknownScreen, screen)
	}
}

func next(fc shared.FlowContext, seq int64) shared.FlowContext {
	fc.ScreenSeq = seq
	return fc
}
