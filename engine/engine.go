// Package engine wraps the vendor document capture SDK behind a small,
// explicitly owned adapter. One Engine is created by the kiosk runtime and
// injected into every capture session; there is no process-wide instance.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.temporal.io/sdk/log"

	"kiosk-age-verification/shared"
)

// CameraState is the frame source state reported by the driver.
type CameraState string

const (
	CameraOff      CameraState = "OFF"
	CameraStarting CameraState = "STARTING"
	CameraOn       CameraState = "ON"
	CameraStopping CameraState = "STOPPING"
)

// CameraPosition selects the physical camera.
type CameraPosition string

const (
	CameraUserFacing  CameraPosition = "USER_FACING"
	CameraWorldFacing CameraPosition = "WORLD_FACING"
)

// Settings configures the capture engine at construction time.
type Settings struct {
	LicenseKey        string
	AcceptedDocuments []shared.DocumentType
	Camera            CameraPosition
	PreferFullHD      bool
}

// DefaultSettings accepts ID cards, driver licenses and passports from any
// region on the user-facing camera.
func DefaultSettings(licenseKey string) Settings {
	return Settings{
		LicenseKey: licenseKey,
		AcceptedDocuments: []shared.DocumentType{
			shared.DocumentIDCard,
			shared.DocumentDriverLicense,
			shared.DocumentPassport,
		},
		Camera:       CameraUserFacing,
		PreferFullHD: true,
	}
}

// Accepts reports whether documents of type t are enabled.
func (s Settings) Accepts(t shared.DocumentType) bool {
	for _, d := range s.AcceptedDocuments {
		if d == t {
			return true
		}
	}
	return false
}

// Listener receives capture engine events. Calls may arrive on any goroutine,
// including concurrently with Enable or Disable.
type Listener interface {
	OnDocumentCaptured(doc shared.CapturedDocument)
	OnDocumentRejected(doc *shared.CapturedDocument, reason shared.RejectionReason)
	OnCameraStateChanged(state CameraState)
	OnFrame(at time.Time)
}

// Adapter is the part of the engine a capture session depends on.
type Adapter interface {
	Enable() error
	Disable()
	AddListener(l Listener)
	RemoveListener(l Listener)
}

// Driver is the vendor SDK boundary. Init hands the driver the sink it must
// deliver raw events to. Drivers must not hold their own locks while calling
// the sink.
type Driver interface {
	Init(settings Settings, sink Listener) error
	SetCameraOn(on bool) error
	SetCapturing(on bool) error
}

// Engine owns a driver and fans its events out to listeners. Enable and
// Disable are idempotent.
type Engine struct {
	driver   Driver
	settings Settings
	logger   log.Logger

	// mu serializes Enable and Disable. The sink reads enabled without it.
	mu      sync.Mutex
	enabled atomic.Bool

	lmu       sync.RWMutex
	listeners []Listener
}

var _ Adapter = (*Engine)(nil)

// New initializes the driver. It fails with shared.ErrEngineUnavailable when
// the license key is missing or the driver cannot start.
func New(driver Driver, settings Settings, logger log.Logger) (*Engine, error) {
	if settings.LicenseKey == "" {
		return nil, fmt.Errorf("%w: missing license key", shared.ErrEngineUnavailable)
	}
	e := &Engine{
		driver:   driver,
		settings: settings,
		logger:   logger,
	}
	if err := driver.Init(settings, e); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrEngineUnavailable, err)
	}
	logger.Info("Capture engine initialized",
		"camera", settings.Camera,
		"acceptedDocuments", settings.AcceptedDocuments,
	)
	return e, nil
}

// Enable switches the camera on and starts document capture.
func (e *Engine) Enable() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enabled.Load() {
		return nil
	}
	if err := e.driver.SetCameraOn(true); err != nil {
		return fmt.Errorf("%w: camera: %v", shared.ErrEngineUnavailable, err)
	}
	if err := e.driver.SetCapturing(true); err != nil {
		_ = e.driver.SetCameraOn(false)
		return fmt.Errorf("%w: capture: %v", shared.ErrEngineUnavailable, err)
	}
	e.enabled.Store(true)
	return nil
}

// Disable stops document capture and switches the camera off. Driver errors
// are logged; the engine is considered disabled either way.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled.Load() {
		return
	}
	e.enabled.Store(false)
	if err := e.driver.SetCapturing(false); err != nil {
		e.logger.Warn("Failed to stop capture", "error", err)
	}
	if err := e.driver.SetCameraOn(false); err != nil {
		e.logger.Warn("Failed to switch camera off", "error", err)
	}
}

// Enabled reports whether capture is on.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// Settings returns the settings the engine was built with.
func (e *Engine) Settings() Settings {
	return e.settings
}

// AddListener registers l. Adding the same listener twice is a no-op.
func (e *Engine) AddListener(l Listener) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	for _, existing := range e.listeners {
		if existing == l {
			return
		}
	}
	e.listeners = append(e.listeners, l)
}

// RemoveListener unregisters l.
func (e *Engine) RemoveListener(l Listener) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	for i, existing := range e.listeners {
		if existing == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

func (e *Engine) snapshot() []Listener {
	e.lmu.RLock()
	defer e.lmu.RUnlock()
	out := make([]Listener, len(e.listeners))
	copy(out, e.listeners)
	return out
}

// OnDocumentCaptured implements the driver sink. Capture results are dropped
// while the engine is disabled.
func (e *Engine) OnDocumentCaptured(doc shared.CapturedDocument) {
	if !e.Enabled() {
		return
	}
	for _, l := range e.snapshot() {
		l.OnDocumentCaptured(doc)
	}
}

// OnDocumentRejected implements the driver sink.
func (e *Engine) OnDocumentRejected(doc *shared.CapturedDocument, reason shared.RejectionReason) {
	if !e.Enabled() {
		return
	}
	for _, l := range e.snapshot() {
		l.OnDocumentRejected(doc, reason)
	}
}

// OnCameraStateChanged implements the driver sink.
func (e *Engine) OnCameraStateChanged(state CameraState) {
	for _, l := range e.snapshot() {
		l.OnCameraStateChanged(state)
	}
}

// OnFrame implements the driver sink.
func (e *Engine) OnFrame(at time.Time) {
	for _, l := range e.snapshot() {
		l.OnFrame(at)
	}
}
