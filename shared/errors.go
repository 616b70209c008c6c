package shared

import "errors"

// Sentinel errors. Callers wrap them with context and match with errors.Is.
var (
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrEngineUnavailable = errors.New("capture engine unavailable")
	ErrAlreadyArmed      = errors.New("session already armed")
	ErrUnknownScreen     = errors.New("unknown screen")
	ErrHostStopped       = errors.New("screen host stopped")
	ErrUnsupportedMethod = errors.New("unsupported verification method")
)
