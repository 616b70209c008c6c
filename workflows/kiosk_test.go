package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"kiosk-age-verification/activities"
	"kiosk-age-verification/shared"
)

// screenLog records every screen the workflow asked the kiosk to show.
type screenLog struct {
	mu   sync.Mutex
	reqs []shared.ScreenRequest
}

func (l *screenLog) show(_ context.Context, req shared.ScreenRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, req)
	return nil
}

func (l *screenLog) screens() []shared.Screen {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]shared.Screen, 0, len(l.reqs))
	for _, r := range l.reqs {
		out = append(out, r.Screen)
	}
	return out
}

func (l *screenLog) last() shared.ScreenRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reqs[len(l.reqs)-1]
}

func registerMockActivities(env *testsuite.TestWorkflowEnvironment) (*activities.Activities, *screenLog) {
	a := &activities.Activities{}
	env.RegisterActivity(a)
	log := &screenLog{}
	env.OnActivity(a.ShowScreen, mock.Anything, mock.Anything).Return(log.show)
	return a, log
}

func defaultFlowRequest() shared.FlowRequest {
	return shared.FlowRequest{
		KioskID:  "kiosk-1",
		Defaults: shared.FlowContext{TimeoutIDMs: 3000},
	}
}

func adult() shared.CaptureOutcome {
	return shared.CaptureOutcome{Kind: shared.OutcomeSuccess, AttemptID: "att-1", AgeYears: 30, Passed: true}
}

func signalAt(env *testsuite.TestWorkflowEnvironment, d time.Duration, name string, arg interface{}) {
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(name, arg)
	}, d)
}

// nextRun decodes the input the workflow continued as new with.
func nextRun(t *testing.T, err error) shared.FlowRequest {
	t.Helper()
	require.True(t, workflow.IsContinueAsNewError(err), "expected continue-as-new, got %v", err)

	var canErr *workflow.ContinueAsNewError
	require.True(t, errors.As(err, &canErr))
	var next shared.FlowRequest
	require.NoError(t, converter.GetDefaultDataConverter().FromPayloads(canErr.Input, &next))
	return next
}

func TestKioskFlowWorkflow_PassingCustomer(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	_, log := registerMockActivities(env)

	signalAt(env, time.Second, shared.SignalVerificationChosen,
		shared.ChoiceSignal{ScreenSeq: 1, Method: shared.MethodIDScan})
	signalAt(env, 2*time.Second, shared.SignalCaptureOutcome,
		shared.OutcomeSignal{ScreenSeq: 2, Outcome: adult()})
	signalAt(env, 7*time.Second, shared.SignalResultDismissed,
		shared.DismissSignal{ScreenSeq: 3, Screen: shared.ScreenAgeVerified, Cause: shared.LeaveAutoReturn})

	env.ExecuteWorkflow(KioskFlowWorkflow, defaultFlowRequest())

	assert.True(t, env.IsWorkflowCompleted())
	next := nextRun(t, env.GetWorkflowError())
	assert.Equal(t, int64(4), next.NextSeq)
	assert.Equal(t, 1, next.Attempts)
	assert.Equal(t, "kiosk-1", next.KioskID)

	assert.Equal(t, []shared.Screen{
		shared.ScreenChooseVerification,
		shared.ScreenIDCapture,
		shared.ScreenAgeVerified,
		shared.ScreenChooseVerification,
	}, log.screens())

	rest := log.last()
	assert.True(t, rest.ClearHistory)
	assert.Equal(t, int64(4), rest.Flow.ScreenSeq)
	assert.Equal(t, int64(3000), rest.Flow.TimeoutIDMs)
}

func TestKioskFlowWorkflow_FullFlowRetryDropsStaleOutcome(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	_, log := registerMockActivities(env)

	timedOut := shared.OutcomeSignal{ScreenSeq: 2, Outcome: shared.CaptureOutcome{Kind: shared.OutcomeTimedOut, AttemptID: "att-1"}}

	signalAt(env, time.Second, shared.SignalVerificationChosen,
		shared.ChoiceSignal{ScreenSeq: 1, Method: shared.MethodIDScan})
	signalAt(env, 4*time.Second, shared.SignalCaptureOutcome, timedOut)
	// A late repeat of the same outcome belongs to a screen that is gone.
	signalAt(env, 5*time.Second, shared.SignalCaptureOutcome, timedOut)
	signalAt(env, 6*time.Second, shared.SignalResultDismissed,
		shared.DismissSignal{ScreenSeq: 3, Screen: shared.ScreenAgeNotVerified, Cause: shared.LeaveConfirmed})
	signalAt(env, 7*time.Second, shared.SignalCaptureOutcome,
		shared.OutcomeSignal{ScreenSeq: 4, Outcome: adult()})
	signalAt(env, 12*time.Second, shared.SignalResultDismissed,
		shared.DismissSignal{ScreenSeq: 5, Screen: shared.ScreenAgeVerified, Cause: shared.LeaveAutoReturn})

	req := defaultFlowRequest()
	req.Defaults.IsFullFlow = true
	env.ExecuteWorkflow(KioskFlowWorkflow, req)

	assert.True(t, env.IsWorkflowCompleted())
	next := nextRun(t, env.GetWorkflowError())
	assert.Equal(t, int64(6), next.NextSeq)
	assert.Equal(t, 2, next.Attempts)

	assert.Equal(t, []shared.Screen{
		shared.ScreenChooseVerification,
		shared.ScreenIDCapture,
		shared.ScreenAgeNotVerified,
		shared.ScreenIDCapture,
		shared.ScreenAgeVerified,
		shared.ScreenChooseVerification,
	}, log.screens())
}

func TestKioskFlowWorkflow_ContinuedRunStartsAtRest(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	_, log := registerMockActivities(env)

	signalAt(env, time.Second, shared.SignalVerificationChosen,
		shared.ChoiceSignal{ScreenSeq: 6, Method: "FACE_SCAN"})
	signalAt(env, 2*time.Second, shared.SignalVerificationChosen,
		shared.ChoiceSignal{ScreenSeq: 6, Method: shared.MethodIDScan})
	signalAt(env, 3*time.Second, shared.SignalCaptureOutcome,
		shared.OutcomeSignal{ScreenSeq: 7, Outcome: shared.CaptureOutcome{
			Kind: shared.OutcomeRejected, Reason: shared.RejectionRuleViolation,
		}})
	signalAt(env, 5*time.Second, shared.SignalResultDismissed,
		shared.DismissSignal{ScreenSeq: 8, Screen: shared.ScreenAgeNotVerified, Cause: shared.LeaveAutoReturn})

	req := defaultFlowRequest()
	req.NextSeq = 6
	req.Attempts = 3
	env.ExecuteWorkflow(KioskFlowWorkflow, req)

	next := nextRun(t, env.GetWorkflowError())
	assert.Equal(t, int64(9), next.NextSeq)
	assert.Equal(t, 4, next.Attempts)

	assert.Equal(t, []shared.Screen{
		shared.ScreenIDCapture,
		shared.ScreenAgeNotVerified,
		shared.ScreenChooseVerification,
	}, log.screens(), "resting screen is not shown again and unsupported methods are ignored")
}

func TestKioskFlowWorkflow_QueryCurrentScreen(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerMockActivities(env)

	signalAt(env, time.Second, shared.SignalVerificationChosen,
		shared.ChoiceSignal{ScreenSeq: 1, Method: shared.MethodIDScan})
	env.RegisterDelayedCallback(func() {
		result, err := env.QueryWorkflow(shared.QueryCurrentScreen)
		require.NoError(t, err)
		var status shared.FlowStatusResponse
		require.NoError(t, result.Get(&status))
		assert.Equal(t, shared.ScreenIDCapture, status.Screen)
		assert.Equal(t, int64(2), status.ScreenSeq)
		assert.Zero(t, status.Attempts)
	}, 1500*time.Millisecond)
	signalAt(env, 2*time.Second, shared.SignalCaptureOutcome,
		shared.OutcomeSignal{ScreenSeq: 2, Outcome: adult()})
	signalAt(env, 3*time.Second, shared.SignalResultDismissed,
		shared.DismissSignal{ScreenSeq: 3, Screen: shared.ScreenAgeVerified, Cause: shared.LeaveConfirmed})

	env.ExecuteWorkflow(KioskFlowWorkflow, defaultFlowRequest())

	assert.True(t, workflow.IsContinueAsNewError(env.GetWorkflowError()))
}

func TestKioskFlowWorkflow_ScreenUnavailableFailsFlow(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	a := &activities.Activities{}
	env.RegisterActivity(a)
	env.OnActivity(a.ShowScreen, mock.Anything, mock.Anything).Return(
		temporal.NewNonRetryableApplicationError("display stopped", shared.ErrTypeScreenUnavailable, nil),
	).Once()

	env.ExecuteWorkflow(KioskFlowWorkflow, defaultFlowRequest())

	assert.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.False(t, workflow.IsContinueAsNewError(err))

	var actErr *temporal.ActivityError
	require.ErrorAs(t, err, &actErr)
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, actErr.Unwrap(), &appErr)
	assert.Equal(t, shared.ErrTypeScreenUnavailable, appErr.Type())
	env.AssertExpectations(t)
}
