package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"kiosk-age-verification/shared"
)

// StepKind is one scripted simulator event.
type StepKind string

const (
	StepCaptured  StepKind = "captured"
	StepRejected  StepKind = "rejected"
	StepMalformed StepKind = "malformed"
)

// Step fires At after capture is switched on.
type Step struct {
	At        time.Duration
	Kind      StepKind
	BirthDate time.Time
	Reason    shared.RejectionReason
}

// ParseScript reads a ';'-separated list of steps:
//
//	captured:1990-04-02@1500ms
//	rejected:LOCALIZATION_TIMEOUT@500ms
//	malformed@2s
func ParseScript(script string) ([]Step, error) {
	var steps []Step
	for _, raw := range strings.Split(script, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		event, offset, ok := strings.Cut(raw, "@")
		if !ok {
			return nil, fmt.Errorf("step %q: missing @offset", raw)
		}
		at, err := time.ParseDuration(offset)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", raw, err)
		}
		kind, arg, _ := strings.Cut(event, ":")
		step := Step{At: at, Kind: StepKind(kind)}
		switch step.Kind {
		case StepCaptured:
			step.BirthDate, err = time.Parse(time.DateOnly, arg)
			if err != nil {
				return nil, fmt.Errorf("step %q: birth date: %w", raw, err)
			}
		case StepRejected:
			if arg == "" {
				return nil, fmt.Errorf("step %q: missing rejection reason", raw)
			}
			step.Reason = shared.RejectionReason(arg)
		case StepMalformed:
		default:
			return nil, fmt.Errorf("step %q: unknown event %q", raw, kind)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Simulator is a Driver that replays a script instead of reading camera
// frames. It stands in for the vendor SDK on development kiosks and in tests.
type Simulator struct {
	clock         clock.Clock
	script        []Step
	frameInterval time.Duration

	mu        sync.Mutex
	sink      Listener
	settings  Settings
	cameraOn  bool
	capturing bool
	steps     []*clock.Timer
	frames    *clock.Timer
}

var _ Driver = (*Simulator)(nil)

// NewSimulator builds a simulator. A zero frameInterval produces no frames,
// which looks like a stalled camera.
func NewSimulator(c clock.Clock, script []Step, frameInterval time.Duration) *Simulator {
	if c == nil {
		c = clock.New()
	}
	return &Simulator{clock: c, script: script, frameInterval: frameInterval}
}

// Init implements Driver.
func (s *Simulator) Init(settings Settings, sink Listener) error {
	if settings.Camera == "" {
		return errors.New("failed to init camera")
	}
	if len(settings.AcceptedDocuments) == 0 {
		return errors.New("no accepted documents configured")
	}
	s.mu.Lock()
	s.settings = settings
	s.sink = sink
	s.mu.Unlock()
	return nil
}

// SetCameraOn implements Driver.
func (s *Simulator) SetCameraOn(on bool) error {
	s.mu.Lock()
	if s.sink == nil {
		s.mu.Unlock()
		return errors.New("driver not initialized")
	}
	if s.cameraOn == on {
		s.mu.Unlock()
		return nil
	}
	s.cameraOn = on
	sink := s.sink
	if on {
		s.scheduleFrameLocked()
	} else if s.frames != nil {
		s.frames.Stop()
		s.frames = nil
	}
	s.mu.Unlock()

	if on {
		sink.OnCameraStateChanged(CameraStarting)
		sink.OnCameraStateChanged(CameraOn)
	} else {
		sink.OnCameraStateChanged(CameraStopping)
		sink.OnCameraStateChanged(CameraOff)
	}
	return nil
}

// SetCapturing implements Driver. Switching capture on replays the script
// from the start.
func (s *Simulator) SetCapturing(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capturing == on {
		return nil
	}
	s.capturing = on
	for _, t := range s.steps {
		t.Stop()
	}
	s.steps = nil
	if !on {
		return nil
	}
	for _, step := range s.script {
		step := step
		s.steps = append(s.steps, s.clock.AfterFunc(step.At, func() { s.emit(step) }))
	}
	return nil
}

func (s *Simulator) emit(step Step) {
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return
	}
	sink := s.sink
	doc := shared.CapturedDocument{DocumentType: s.settings.AcceptedDocuments[0]}
	s.mu.Unlock()

	switch step.Kind {
	case StepCaptured:
		dob := step.BirthDate
		doc.DateOfBirth = &dob
		sink.OnDocumentCaptured(doc)
	case StepMalformed:
		sink.OnDocumentCaptured(doc)
	case StepRejected:
		sink.OnDocumentRejected(&doc, step.Reason)
	}
}

func (s *Simulator) scheduleFrameLocked() {
	if s.frameInterval <= 0 {
		return
	}
	s.frames = s.clock.AfterFunc(s.frameInterval, s.frame)
}

func (s *Simulator) frame() {
	s.mu.Lock()
	if !s.cameraOn {
		s.mu.Unlock()
		return
	}
	sink := s.sink
	s.scheduleFrameLocked()
	s.mu.Unlock()

	sink.OnFrame(s.clock.Now())
}
