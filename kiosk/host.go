// Package kiosk is the device side of the flow: the screen host that owns
// the display, builds one session per screen and forwards taps, plus the
// HTTP surface used by the touch UI and monitoring.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/facebookgo/clock"
	"go.temporal.io/sdk/log"

	"kiosk-age-verification/engine"
	"kiosk-age-verification/flow"
	"kiosk-age-verification/logging"
	"kiosk-age-verification/metrics"
	"kiosk-age-verification/session"
	"kiosk-age-verification/shared"
)

var (
	// ErrWrongScreen is returned for a tap the current screen does not offer.
	ErrWrongScreen = errors.New("action not available on current screen")
	// ErrNotConfirmed is returned when a confirm tap did not leave the screen.
	ErrNotConfirmed = errors.New("confirm not accepted")
)

// Navigator routes the events of the sessions the host creates.
type Navigator interface {
	session.Navigator
	Choose(method shared.VerificationMethod, flow shared.FlowContext) error
}

// Options configures a Host.
type Options struct {
	KioskID     string
	ShowButtons bool
	Clock       clock.Clock
	Logger      log.Logger
	// OnFatal is called on the UI loop when the capture engine cannot start.
	OnFatal func(err error)
}

// View is what the display currently shows.
type View struct {
	Screen         shared.Screen          `json:"screen"`
	Flow           shared.FlowContext     `json:"flow"`
	Outcome        *shared.CaptureOutcome `json:"outcome,omitempty"`
	AttemptID      string                 `json:"attemptId,omitempty"`
	ConfirmOffered bool                   `json:"confirmOffered"`
	Paused         bool                   `json:"paused"`
}

// Host serializes every screen change on one UI loop goroutine. Exactly one
// session is live at a time; presenting a screen closes the previous one.
type Host struct {
	engine engine.Adapter
	opts   Options
	logger log.Logger
	nav    Navigator

	qmu     sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool

	vmu  sync.RWMutex
	view View

	// Owned by the UI loop.
	capture *session.CaptureSession
	result  *session.AutoReturnSession
	paused  bool
	seq     int64
}

// NewHost creates a host for eng. Attach a navigator before Run.
func NewHost(eng engine.Adapter, opts Options) *Host {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Host{
		engine: eng,
		opts:   opts,
		logger: opts.Logger,
		wake:   make(chan struct{}, 1),
	}
}

// Attach sets the navigator that receives session events.
func (h *Host) Attach(nav Navigator) {
	h.nav = nav
}

// Run processes UI operations until ctx is done, then closes the live session.
func (h *Host) Run(ctx context.Context) error {
	if h.nav == nil {
		return errors.New("screen host has no navigator")
	}
	h.logger.Info("Screen host started", "kioskId", h.opts.KioskID)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.wake:
			for _, op := range h.drain() {
				op()
			}
		}
	}
}

// Present queues req for display. It never blocks, so sessions and
// navigators may call it from any goroutine, including the UI loop.
func (h *Host) Present(_ context.Context, req shared.ScreenRequest) error {
	if !req.Screen.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrUnknownScreen, req.Screen)
	}
	return h.post(func() { h.show(req) })
}

// TapChoose handles a method tapped on the choose screen.
func (h *Host) TapChoose(ctx context.Context, method shared.VerificationMethod) error {
	return h.do(ctx, func() error {
		v := h.CurrentScreen()
		if v.Screen != shared.ScreenChooseVerification {
			return ErrWrongScreen
		}
		return h.nav.Choose(method, v.Flow)
	})
}

// TapConfirm handles the confirm control of a result screen.
func (h *Host) TapConfirm(ctx context.Context) error {
	return h.do(ctx, func() error {
		if h.result == nil {
			return ErrWrongScreen
		}
		if !h.result.Confirm() {
			return ErrNotConfirmed
		}
		return nil
	})
}

// Pause marks the display as not visible.
func (h *Host) Pause(ctx context.Context) error {
	return h.do(ctx, func() error {
		h.paused = true
		if h.result != nil {
			h.result.Pause()
		}
		h.updateView(func(v *View) { v.Paused = true })
		return nil
	})
}

// Resume marks the display as visible again.
func (h *Host) Resume(ctx context.Context) error {
	return h.do(ctx, func() error {
		h.paused = false
		if h.result != nil {
			h.result.Resume()
		}
		h.updateView(func(v *View) { v.Paused = false })
		return nil
	})
}

// CurrentScreen returns a snapshot of the display.
func (h *Host) CurrentScreen() View {
	h.vmu.RLock()
	defer h.vmu.RUnlock()
	return h.view
}

func (h *Host) show(req shared.ScreenRequest) {
	if !h.accept(req) {
		h.logger.Debug("Ignoring stale screen request",
			"screen", req.Screen,
			"screenSeq", req.Flow.ScreenSeq,
			"currentSeq", h.seq,
		)
		return
	}
	h.teardown()
	h.seq = req.Flow.ScreenSeq

	view := View{Screen: req.Screen, Flow: req.Flow, Outcome: req.Outcome, Paused: h.paused}
	switch req.Screen {
	case shared.ScreenIDCapture:
		view.AttemptID = h.startCapture(req.Flow)
	case shared.ScreenAgeVerified, shared.ScreenAgeNotVerified:
		view.ConfirmOffered = h.startResult(req)
	}
	h.updateView(func(v *View) { *v = view })

	metrics.RecordScreenShown(req.Screen)
	h.logger.Info("Screen shown",
		"kioskId", h.opts.KioskID,
		"screen", req.Screen,
		"screenSeq", req.Flow.ScreenSeq,
		"clearHistory", req.ClearHistory,
	)
}

// accept drops repeated or out-of-order requests. A resting screen that
// clears history always starts over.
func (h *Host) accept(req shared.ScreenRequest) bool {
	if req.ClearHistory && req.Screen == shared.ScreenChooseVerification {
		return true
	}
	return req.Flow.ScreenSeq > h.seq
}

func (h *Host) startCapture(fc shared.FlowContext) string {
	s := session.NewCaptureSession(h.engine, h.nav, fc,
		session.WithClock(h.opts.Clock),
		session.WithLogger(h.logger),
		session.WithStallHandler(func(fc shared.FlowContext) {
			_ = h.post(func() { h.recreateCapture(fc) })
		}),
	)
	h.capture = s

	handle, err := s.Arm(fc.CaptureTimeout())
	if err != nil {
		h.logger.Error("Capture screen failed to start", "kioskId", h.opts.KioskID, "error", err)
		if errors.Is(err, shared.ErrEngineUnavailable) && h.opts.OnFatal != nil {
			h.opts.OnFatal(err)
		}
		return ""
	}
	return handle.AttemptID
}

func (h *Host) recreateCapture(fc shared.FlowContext) {
	if h.capture == nil || fc.ScreenSeq != h.seq {
		return
	}
	h.teardown()
	id := h.startCapture(fc)
	h.updateView(func(v *View) { v.AttemptID = id })
	h.logger.Info("Capture screen recreated", "kioskId", h.opts.KioskID, "screenSeq", fc.ScreenSeq)
}

func (h *Host) startResult(req shared.ScreenRequest) bool {
	delay, confirm, err := flow.ResultPolicy(req.Screen, req.Flow, h.opts.ShowButtons)
	if err != nil {
		h.logger.Error("No result policy for screen", "screen", req.Screen, "error", err)
		return false
	}
	r, err := session.NewAutoReturnSession(req.Screen, req.Flow, delay, confirm, h.nav,
		session.WithClock(h.opts.Clock),
		session.WithLogger(h.logger),
	)
	if err != nil {
		h.logger.Error("Result screen failed to start", "screen", req.Screen, "error", err)
		return false
	}
	h.result = r
	if h.paused {
		r.Pause()
	}
	r.Show()
	return confirm
}

func (h *Host) teardown() {
	if h.capture != nil {
		h.capture.Close()
		h.capture = nil
	}
	if h.result != nil {
		h.result.Close()
		h.result = nil
	}
}

func (h *Host) shutdown() {
	h.qmu.Lock()
	h.stopped = true
	h.queue = nil
	h.qmu.Unlock()

	h.teardown()
	h.logger.Info("Screen host stopped", "kioskId", h.opts.KioskID)
}

func (h *Host) updateView(fn func(v *View)) {
	h.vmu.Lock()
	fn(&h.view)
	h.vmu.Unlock()
}

func (h *Host) post(op func()) error {
	h.qmu.Lock()
	if h.stopped {
		h.qmu.Unlock()
		return shared.ErrHostStopped
	}
	h.queue = append(h.queue, op)
	h.qmu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

func (h *Host) drain() []func() {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	ops := h.queue
	h.queue = nil
	return ops
}

// do runs fn on the UI loop and waits for its result.
func (h *Host) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := h.post(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
