package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kiosk-age-verification/logging"
	"kiosk-age-verification/shared"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) Init(settings Settings, sink Listener) error {
	return m.Called(settings, sink).Error(0)
}

func (m *mockDriver) SetCameraOn(on bool) error {
	return m.Called(on).Error(0)
}

func (m *mockDriver) SetCapturing(on bool) error {
	return m.Called(on).Error(0)
}

type recorder struct {
	mu       sync.Mutex
	captured []shared.CapturedDocument
	rejected []shared.RejectionReason
	states   []CameraState
	frames   int
}

func (r *recorder) OnDocumentCaptured(doc shared.CapturedDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = append(r.captured, doc)
}

func (r *recorder) OnDocumentRejected(_ *shared.CapturedDocument, reason shared.RejectionReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
}

func (r *recorder) OnCameraStateChanged(state CameraState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) OnFrame(time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
}

func TestNew_MissingLicenseKey(t *testing.T) {
	d := &mockDriver{}
	_, err := New(d, DefaultSettings(""), logging.Discard())
	assert.ErrorIs(t, err, shared.ErrEngineUnavailable)
	d.AssertNotCalled(t, "Init", mock.Anything, mock.Anything)
}

func TestNew_DriverInitFailure(t *testing.T) {
	d := &mockDriver{}
	d.On("Init", mock.Anything, mock.Anything).Return(errors.New("failed to init camera"))

	_, err := New(d, DefaultSettings("key"), logging.Discard())
	assert.ErrorIs(t, err, shared.ErrEngineUnavailable)
	assert.Contains(t, err.Error(), "failed to init camera")
}

func TestEngine_EnableDisableIdempotent(t *testing.T) {
	d := &mockDriver{}
	d.On("Init", mock.Anything, mock.Anything).Return(nil)
	d.On("SetCameraOn", true).Return(nil).Once()
	d.On("SetCapturing", true).Return(nil).Once()
	d.On("SetCapturing", false).Return(nil).Once()
	d.On("SetCameraOn", false).Return(nil).Once()

	e, err := New(d, DefaultSettings("key"), logging.Discard())
	require.NoError(t, err)

	require.NoError(t, e.Enable())
	require.NoError(t, e.Enable())
	assert.True(t, e.Enabled())

	e.Disable()
	e.Disable()
	assert.False(t, e.Enabled())

	d.AssertExpectations(t)
}

func TestEngine_EnableCaptureFailureRollsBackCamera(t *testing.T) {
	d := &mockDriver{}
	d.On("Init", mock.Anything, mock.Anything).Return(nil)
	d.On("SetCameraOn", true).Return(nil)
	d.On("SetCapturing", true).Return(errors.New("license expired"))
	d.On("SetCameraOn", false).Return(nil)

	e, err := New(d, DefaultSettings("key"), logging.Discard())
	require.NoError(t, err)

	err = e.Enable()
	assert.ErrorIs(t, err, shared.ErrEngineUnavailable)
	assert.False(t, e.Enabled())
	d.AssertCalled(t, "SetCameraOn", false)
}

func TestEngine_DropsResultsWhileDisabled(t *testing.T) {
	d := &mockDriver{}
	d.On("Init", mock.Anything, mock.Anything).Return(nil)
	e, err := New(d, DefaultSettings("key"), logging.Discard())
	require.NoError(t, err)

	r := &recorder{}
	e.AddListener(r)
	e.AddListener(r)

	e.OnDocumentCaptured(shared.CapturedDocument{})
	e.OnDocumentRejected(nil, shared.RejectionRuleViolation)
	e.OnCameraStateChanged(CameraOn)

	assert.Empty(t, r.captured)
	assert.Empty(t, r.rejected)
	assert.Equal(t, []CameraState{CameraOn}, r.states, "listener registered once")

	e.RemoveListener(r)
	e.OnCameraStateChanged(CameraOff)
	assert.Len(t, r.states, 1)
}

func TestSimulator_ReplaysScript(t *testing.T) {
	clk := clock.NewMock()
	steps, err := ParseScript("rejected:LOCALIZATION_TIMEOUT@500ms; captured:2000-01-15@1s")
	require.NoError(t, err)

	sim := NewSimulator(clk, steps, 100*time.Millisecond)
	e, err := New(sim, DefaultSettings("key"), logging.Discard())
	require.NoError(t, err)

	r := &recorder{}
	e.AddListener(r)
	require.NoError(t, e.Enable())
	assert.Equal(t, []CameraState{CameraStarting, CameraOn}, r.states)

	clk.Add(500 * time.Millisecond)
	assert.Equal(t, []shared.RejectionReason{shared.RejectionLocalizationTimeout}, r.rejected)
	assert.Equal(t, 5, r.frames)

	clk.Add(500 * time.Millisecond)
	require.Len(t, r.captured, 1)
	require.NotNil(t, r.captured[0].DateOfBirth)
	assert.Equal(t, 2000, r.captured[0].DateOfBirth.Year())
	assert.Equal(t, shared.DocumentIDCard, r.captured[0].DocumentType)

	e.Disable()
	assert.Equal(t, []CameraState{CameraStarting, CameraOn, CameraStopping, CameraOff}, r.states)

	frames := r.frames
	clk.Add(time.Second)
	assert.Equal(t, frames, r.frames, "no frames after camera off")
}

func TestSimulator_DisableStopsScript(t *testing.T) {
	clk := clock.NewMock()
	steps, err := ParseScript("captured:1990-04-02@2s")
	require.NoError(t, err)

	e, err := New(NewSimulator(clk, steps, 0), DefaultSettings("key"), logging.Discard())
	require.NoError(t, err)

	r := &recorder{}
	e.AddListener(r)
	require.NoError(t, e.Enable())
	clk.Add(time.Second)
	e.Disable()
	clk.Add(5 * time.Second)

	assert.Empty(t, r.captured)
	assert.Zero(t, r.frames)
}

func TestParseScript(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		want    []Step
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"malformed", "malformed@2s", []Step{{At: 2 * time.Second, Kind: StepMalformed}}, false},
		{"rejected", "rejected:RULE_VIOLATION@10ms", []Step{{At: 10 * time.Millisecond, Kind: StepRejected, Reason: shared.RejectionRuleViolation}}, false},
		{"missing offset", "malformed", nil, true},
		{"bad date", "captured:yesterday@1s", nil, true},
		{"missing reason", "rejected@1s", nil, true},
		{"unknown event", "blink@1s", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScript(tt.script)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
