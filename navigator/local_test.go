package navigator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-age-verification/logging"
	"kiosk-age-verification/shared"
)

type recordingPresenter struct {
	mu   sync.Mutex
	reqs []shared.ScreenRequest
	err  error
}

func (p *recordingPresenter) Present(_ context.Context, req shared.ScreenRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return p.err
}

func (p *recordingPresenter) last() shared.ScreenRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqs[len(p.reqs)-1]
}

func (p *recordingPresenter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}

func startLocal(t *testing.T, defaults shared.FlowContext) (*Local, *recordingPresenter) {
	t.Helper()
	p := &recordingPresenter{}
	n := NewLocal("kiosk-1", p, defaults, logging.Discard())
	require.NoError(t, n.Start(context.Background()))
	return n, p
}

func TestLocal_FullPassingRun(t *testing.T) {
	n, p := startLocal(t, shared.FlowContext{})

	choose := p.last()
	assert.Equal(t, shared.ScreenChooseVerification, choose.Screen)
	assert.True(t, choose.ClearHistory)
	assert.Equal(t, "kiosk-1", choose.KioskID)

	require.NoError(t, n.Choose(shared.MethodIDScan, choose.Flow))
	capture := p.last()
	assert.Equal(t, shared.ScreenIDCapture, capture.Screen)
	assert.Equal(t, int64(5000), capture.Flow.TimeoutIDMs)

	outcome := shared.CaptureOutcome{Kind: shared.OutcomeSuccess, AgeYears: 30, Passed: true}
	n.ReportOutcome(outcome, capture.Flow)
	verified := p.last()
	assert.Equal(t, shared.ScreenAgeVerified, verified.Screen)
	require.NotNil(t, verified.Outcome)
	assert.Equal(t, 30, verified.Outcome.AgeYears)

	n.LeaveResult(shared.ScreenAgeVerified, shared.LeaveAutoReturn, verified.Flow)
	back := p.last()
	assert.Equal(t, shared.ScreenChooseVerification, back.Screen)
	assert.True(t, back.ClearHistory)

	status := n.Status()
	assert.Equal(t, shared.ScreenChooseVerification, status.Screen)
	assert.Equal(t, back.Flow.ScreenSeq, status.ScreenSeq)
	assert.Equal(t, 1, status.Attempts)
}

func TestLocal_FullFlowFailureRetriesCapture(t *testing.T) {
	n, p := startLocal(t, shared.FlowContext{IsFullFlow: true, TimeoutIDMs: 3000})

	require.NoError(t, n.Choose(shared.MethodIDScan, p.last().Flow))
	n.ReportOutcome(shared.CaptureOutcome{Kind: shared.OutcomeTimedOut}, p.last().Flow)
	failed := p.last()
	assert.Equal(t, shared.ScreenAgeNotVerified, failed.Screen)

	n.LeaveResult(shared.ScreenAgeNotVerified, shared.LeaveConfirmed, failed.Flow)
	retry := p.last()
	assert.Equal(t, shared.ScreenIDCapture, retry.Screen)
	assert.Equal(t, int64(3000), retry.Flow.TimeoutIDMs)
	assert.True(t, retry.Flow.IsFullFlow)
}

func TestLocal_DropsStaleEvents(t *testing.T) {
	n, p := startLocal(t, shared.FlowContext{})
	require.NoError(t, n.Choose(shared.MethodIDScan, p.last().Flow))
	capture := p.last()

	n.ReportOutcome(shared.CaptureOutcome{Kind: shared.OutcomeTimedOut}, capture.Flow)
	n.ReportOutcome(shared.CaptureOutcome{Kind: shared.OutcomeTimedOut}, capture.Flow)
	assert.Equal(t, 3, p.count(), "second outcome for the same screen is dropped")

	require.NoError(t, n.Choose(shared.MethodIDScan, capture.Flow))
	assert.Equal(t, 3, p.count(), "choice from a screen that is gone is dropped")

	n.LeaveResult(shared.ScreenAgeVerified, shared.LeaveAutoReturn, p.last().Flow)
	assert.Equal(t, 3, p.count(), "wrong result screen is dropped")
	assert.Equal(t, 1, n.Status().Attempts)
}

func TestLocal_UnsupportedMethod(t *testing.T) {
	n, p := startLocal(t, shared.FlowContext{})

	err := n.Choose("FACE_SCAN", p.last().Flow)
	assert.ErrorIs(t, err, shared.ErrUnsupportedMethod)
	assert.Equal(t, shared.ScreenChooseVerification, n.Status().Screen)
}

func TestLocal_PresenterErrorIsLogged(t *testing.T) {
	n, p := startLocal(t, shared.FlowContext{})
	p.err = errors.New("display gone")

	assert.NoError(t, n.Choose(shared.MethodIDScan, p.last().Flow))
	assert.Equal(t, shared.ScreenIDCapture, n.Status().Screen)
}
