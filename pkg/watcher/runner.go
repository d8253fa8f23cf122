package watcher

import (
	"context"
	"fmt"

	"igmonitor/pkg/logger"
	"igmonitor/pkg/schedule"
)

// Notifier delivers one consolidated report for a finished batch. A nil
// Notifier disables outbound notifications.
type Notifier interface {
	SendReport(ctx context.Context, taskType schedule.TaskType, email string, results []*Result) error
	SendBanAlert(ctx context.Context, email string, reason string) error
}

// TaskRunner executes scheduled tasks: it picks the account check
// matching the task type, runs the batch through the sequencer and sends
// a single consolidated notification for all successful results.
type TaskRunner struct {
	seq      *Sequencer
	checks   map[schedule.TaskType]AccountCheck
	notifier Notifier
	log      logger.Logger
}

// NewTaskRunner registers the given checks by their task type.
func NewTaskRunner(seq *Sequencer, notifier Notifier, log logger.Logger, checks ...AccountCheck) *TaskRunner {
	byType := make(map[schedule.TaskType]AccountCheck, len(checks))
	for _, check := range checks {
		byType[check.Type()] = check
	}
	return &TaskRunner{
		seq:      seq,
		checks:   byType,
		notifier: notifier,
		log:      log,
	}
}

// CheckFor returns the account check registered for a task type.
func (r *TaskRunner) CheckFor(taskType schedule.TaskType) (AccountCheck, bool) {
	check, ok := r.checks[taskType]
	return check, ok
}

// RunBatch runs an ad-hoc batch for a task type, outside any scheduled
// task. Ad-hoc and scheduled checks share the same sequencer and gate.
func (r *TaskRunner) RunBatch(ctx context.Context, taskType schedule.TaskType, usernames []string) (*BatchSummary, error) {
	check, ok := r.checks[taskType]
	if !ok {
		return nil, fmt.Errorf("no check registered for task type %q", taskType)
	}
	return r.seq.Run(ctx, usernames, check)
}

// Execute satisfies schedule.ExecuteFunc. Failures are logged, never
// propagated: the scheduler reschedules the task regardless.
func (r *TaskRunner) Execute(ctx context.Context, task *schedule.Task) {
	check, ok := r.checks[task.Type]
	if !ok {
		r.log.WithField("type", string(task.Type)).Error("No check registered for task type")
		return
	}

	summary, err := r.seq.Run(ctx, task.Usernames, check)
	if err != nil {
		r.log.WithFields(map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		}).Warn("Task batch refused by protection gate")
		return
	}

	r.log.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"checked": summary.TotalChecked,
		"success": summary.SuccessCount,
		"errors":  summary.ErrorCount,
		"stopped": summary.Stopped,
	}).Info("Task batch finished")

	if r.notifier == nil || task.Email == "" {
		return
	}
	if summary.CriticalError != "" {
		if err := r.notifier.SendBanAlert(ctx, task.Email, summary.CriticalError); err != nil {
			r.log.WithFields(map[string]interface{}{
				"task_id": task.ID,
				"error":   err.Error(),
			}).Error("Failed to send ban alert")
		}
	}
	if len(summary.ValidResults) == 0 {
		return
	}
	if err := r.notifier.SendReport(ctx, task.Type, task.Email, summary.ValidResults); err != nil {
		r.log.WithFields(map[string]interface{}{
			"task_id": task.ID,
			"email":   task.Email,
			"error":   err.Error(),
		}).Error("Failed to send consolidated report")
	}
}
