package session

import (
	"github.com/facebookgo/clock"
	"go.temporal.io/sdk/log"

	"kiosk-age-verification/logging"
	"kiosk-age-verification/shared"
)

type options struct {
	clock   clock.Clock
	logger  log.Logger
	onStall func(flow shared.FlowContext)
}

// Option configures a session.
type Option func(*options)

// WithClock drives the session's timers from c.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStallHandler enables the camera stall watchdog. fn is called when the
// camera reports On but delivers no frames; the session is abandoned without
// an outcome and fn is expected to recreate the screen.
func WithStallHandler(fn func(flow shared.FlowContext)) Option {
	return func(o *options) { o.onStall = fn }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	return o
}
