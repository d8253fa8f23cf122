package watcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/protection"
	"igmonitor/pkg/schedule"
)

type capturedReport struct {
	taskType schedule.TaskType
	email    string
	results  []*Result
}

type fakeNotifier struct {
	reports   []capturedReport
	banAlerts []string
}

func (n *fakeNotifier) SendReport(_ context.Context, taskType schedule.TaskType, email string, results []*Result) error {
	n.reports = append(n.reports, capturedReport{taskType: taskType, email: email, results: results})
	return nil
}

func (n *fakeNotifier) SendBanAlert(_ context.Context, email string, reason string) error {
	n.banAlerts = append(n.banAlerts, reason)
	return nil
}

func newTestRunner(gate Gate, notifier Notifier, checks ...AccountCheck) *TaskRunner {
	seq, _ := newTestSequencer(gate)
	return NewTaskRunner(seq, notifier, logger.NewNop(), checks...)
}

func TestExecuteSendsOneConsolidatedReport(t *testing.T) {
	notifier := &fakeNotifier{}
	runner := newTestRunner(&fakeGate{}, notifier, &scriptedCheck{})

	runner.Execute(context.Background(), &schedule.Task{
		ID:        "privacy_a@b.c_1",
		Type:      schedule.TaskPrivacy,
		Usernames: []string{"alpha", "beta"},
		Email:     "a@b.c",
	})

	require.Len(t, notifier.reports, 1)
	report := notifier.reports[0]
	assert.Equal(t, schedule.TaskPrivacy, report.taskType)
	assert.Equal(t, "a@b.c", report.email)
	assert.Len(t, report.results, 2)
}

func TestExecuteNoReportWhenGateDenies(t *testing.T) {
	notifier := &fakeNotifier{}
	gate := &fakeGate{decisions: []protection.Decision{
		{Allowed: false, Reason: "Emergency Mode active: checkpoint"},
	}}
	runner := newTestRunner(gate, notifier, &scriptedCheck{})

	runner.Execute(context.Background(), &schedule.Task{
		Type:      schedule.TaskPrivacy,
		Usernames: []string{"alpha"},
		Email:     "a@b.c",
	})
	assert.Empty(t, notifier.reports)
}

func TestExecuteNoReportWithoutSuccesses(t *testing.T) {
	notifier := &fakeNotifier{}
	check := &scriptedCheck{results: map[string]*Result{
		"alpha": {Username: "alpha", Error: "rate limit hit"},
	}}
	runner := newTestRunner(&fakeGate{}, notifier, check)

	runner.Execute(context.Background(), &schedule.Task{
		Type:      schedule.TaskPrivacy,
		Usernames: []string{"alpha"},
		Email:     "a@b.c",
	})
	assert.Empty(t, notifier.reports)
}

func TestExecuteSendsBanAlertOnCriticalError(t *testing.T) {
	notifier := &fakeNotifier{}
	check := &scriptedCheck{errs: map[string]error{
		"alpha": apperrors.New(apperrors.ErrorTypeCriticalUpstream, "account blocked by upstream"),
	}}
	runner := newTestRunner(&fakeGate{}, notifier, check)

	runner.Execute(context.Background(), &schedule.Task{
		Type:      schedule.TaskPrivacy,
		Usernames: []string{"alpha"},
		Email:     "a@b.c",
	})

	require.Len(t, notifier.banAlerts, 1)
	assert.Contains(t, notifier.banAlerts[0], "account blocked")
	assert.Empty(t, notifier.reports)
}

func TestExecuteUnknownTaskType(t *testing.T) {
	notifier := &fakeNotifier{}
	runner := newTestRunner(&fakeGate{}, notifier)

	// Must not panic when no check is registered.
	runner.Execute(context.Background(), &schedule.Task{
		Type:      schedule.TaskStories,
		Usernames: []string{"alpha"},
		Email:     "a@b.c",
	})
	assert.Empty(t, notifier.reports)
}
