package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
)

// ExecuteFunc runs one task's batch of checks. Implementations must not
// panic; a failed run is logged and the task is rescheduled regardless.
type ExecuteFunc func(ctx context.Context, task *Task)

// Scheduler owns the live timers for all scheduled tasks. Task records
// are durable, timer handles exist only in memory and are rebuilt from
// the persisted nextRunTime on startup.
//
// A task's executions never overlap themselves: the next timer is armed
// only after the previous execution has completed.
type Scheduler struct {
	mu      sync.Mutex
	store   *Store
	log     logger.Logger
	execute ExecuteFunc
	now     func() time.Time
	ctx     context.Context
	stopped bool

	tasks  map[string]*Task
	timers map[string]*time.Timer
}

// NewScheduler loads the persisted task collection. Timers are not armed
// until Start is called.
func NewScheduler(store *Store, execute ExecuteFunc, log logger.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		log:     log,
		execute: execute,
		now:     time.Now,
		ctx:     context.Background(),
		tasks:   store.LoadTasks(),
		timers:  make(map[string]*time.Timer),
	}
}

// Start runs the overdue catch-up sweep and arms a timer for every active
// task. Tasks whose nextRunTime passed during downtime but were not
// caught up (sweep throttled) skip the missed run and are re-armed one
// interval out, so downtime never kills a task permanently.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.stopped = false
	s.mu.Unlock()

	result := s.RunOverdueSweep(false)
	if result.Skipped {
		s.log.Debug("Overdue sweep throttled, skipping catch-up")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	armed := 0
	for _, task := range s.tasks {
		if !task.IsActive {
			continue
		}
		if _, ok := s.timers[task.ID]; ok {
			// Already re-armed by a catch-up execution.
			continue
		}
		if task.NextRunTime == nil || !task.NextRunTime.After(now) {
			next := now.Add(IntervalForFrequency(task.CheckFrequency))
			task.NextRunTime = &next
		}
		s.armLocked(task)
		armed++
	}
	s.persistLocked()
	s.log.WithField("count", armed).Info("Scheduler started")
}

// Stop cancels all pending timers. In-flight executions run to
// completion but are not rescheduled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.log.Info("Scheduler stopped")
}

// CreateParams describes a new scheduled task.
type CreateParams struct {
	Type           TaskType
	Usernames      []string
	Email          string
	CheckFrequency int
	IsActive       bool
}

// Create registers a new task and arms its first timer. An existing task
// for the same (type, email) pair is superseded.
func (s *Scheduler) Create(p CreateParams) (*Task, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("unknown task type %q", p.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.tasks {
		if existing.Type == p.Type && existing.Email == p.Email {
			s.cancelTimerLocked(id)
			delete(s.tasks, id)
			s.log.WithField("task_id", id).Info("Superseding existing task")
		}
	}

	now := s.now()
	next := now.Add(IntervalForFrequency(p.CheckFrequency))
	task := &Task{
		ID:             NewTaskID(p.Type, p.Email, now),
		Type:           p.Type,
		Usernames:      append([]string(nil), p.Usernames...),
		Email:          p.Email,
		CheckFrequency: p.CheckFrequency,
		IsActive:       p.IsActive,
		CreatedAt:      now,
		NextRunTime:    &next,
	}
	s.tasks[task.ID] = task
	s.persistLocked()
	if task.IsActive {
		s.armLocked(task)
	}

	s.log.WithFields(map[string]interface{}{
		"task_id":   task.ID,
		"type":      task.Type,
		"frequency": task.CheckFrequency,
	}).Info("Task created")
	return task.Clone(), nil
}

// UpdateParams carries the mutable task fields; nil means leave as is.
type UpdateParams struct {
	Usernames      []string
	Email          *string
	CheckFrequency *int
	IsActive       *bool
}

// Update cancels any pending timer, applies the changes, clears the run
// history and re-arms only if the task remains active.
func (s *Scheduler) Update(id string, p UpdateParams) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeNotFound, "task %s not found", id)
	}

	s.cancelTimerLocked(id)
	if p.Usernames != nil {
		task.Usernames = append([]string(nil), p.Usernames...)
	}
	if p.Email != nil {
		task.Email = *p.Email
	}
	if p.CheckFrequency != nil {
		task.CheckFrequency = *p.CheckFrequency
	}
	if p.IsActive != nil {
		task.IsActive = *p.IsActive
	}
	task.LastRunTime = nil
	task.NextRunTime = nil
	if task.IsActive {
		next := s.now().Add(IntervalForFrequency(task.CheckFrequency))
		task.NextRunTime = &next
		s.armLocked(task)
	}
	s.persistLocked()

	s.log.WithField("task_id", id).Info("Task updated")
	return task.Clone(), nil
}

// Delete cancels the task's timer and removes it permanently.
func (s *Scheduler) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return apperrors.Newf(apperrors.ErrorTypeNotFound, "task %s not found", id)
	}
	s.cancelTimerLocked(id)
	delete(s.tasks, id)
	s.persistLocked()

	s.log.WithField("task_id", id).Info("Task deleted")
	return nil
}

// Get returns a copy of one task.
func (s *Scheduler) Get(id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeNotFound, "task %s not found", id)
	}
	return task.Clone(), nil
}

// List returns copies of all tasks ordered by creation time.
func (s *Scheduler) List() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

// SweepResult reports what an overdue sweep did.
type SweepResult struct {
	Skipped         bool       `json:"skipped"`
	NextAllowedTime *time.Time `json:"nextAllowedTime,omitempty"`
	CheckedTasks    int        `json:"checkedTasks"`
	ExecutedTaskIDs []string   `json:"executedTaskIds"`
}

// RunOverdueSweep executes every active task whose nextRunTime has
// passed, sequentially. The sweep itself is self-throttled by the
// persisted OverdueRecord unless force is set, so repeated process
// restarts do not re-trigger catch-up work.
func (s *Scheduler) RunOverdueSweep(force bool) SweepResult {
	s.mu.Lock()
	now := s.now()
	rec := s.store.LoadOverdue()
	interval := time.Duration(rec.CheckIntervalHours) * time.Hour
	if !force && rec.LastCheckTime != nil && now.Sub(*rec.LastCheckTime) < interval {
		next := rec.LastCheckTime.Add(interval)
		s.mu.Unlock()
		return SweepResult{Skipped: true, NextAllowedTime: &next}
	}
	rec.LastCheckTime = &now
	if err := s.store.SaveOverdue(rec); err != nil {
		s.log.WithError(err).Error("Failed to persist overdue-check record")
	}

	var overdue []string
	for id, task := range s.tasks {
		if task.IsActive && task.NextRunTime != nil && task.NextRunTime.Before(now) {
			overdue = append(overdue, id)
		}
	}
	sort.Strings(overdue)
	checked := len(s.tasks)
	s.mu.Unlock()

	for _, id := range overdue {
		s.log.WithField("task_id", id).Info("Running overdue catch-up")
		s.fire(id)
	}
	return SweepResult{CheckedTasks: checked, ExecutedTaskIDs: overdue}
}

// OverdueStatus describes the sweep throttle and how many tasks are
// currently overdue.
type OverdueStatus struct {
	LastCheckTime      *time.Time `json:"lastCheckTime"`
	CheckIntervalHours int        `json:"checkIntervalHours"`
	NextAllowedTime    *time.Time `json:"nextAllowedTime"`
	OverdueTaskCount   int        `json:"overdueTaskCount"`
}

// OverdueStatusReport returns the current sweep throttle state.
func (s *Scheduler) OverdueStatusReport() OverdueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := s.store.LoadOverdue()
	status := OverdueStatus{
		LastCheckTime:      rec.LastCheckTime,
		CheckIntervalHours: rec.CheckIntervalHours,
	}
	if rec.LastCheckTime != nil {
		next := rec.LastCheckTime.Add(time.Duration(rec.CheckIntervalHours) * time.Hour)
		status.NextAllowedTime = &next
	}
	for _, task := range s.tasks {
		if task.IsActive && task.NextRunTime != nil && task.NextRunTime.Before(now) {
			status.OverdueTaskCount++
		}
	}
	return status
}

// ResetOverdueThrottle clears the sweep throttle so the next sweep runs
// immediately.
func (s *Scheduler) ResetOverdueThrottle() error {
	return s.store.ResetOverdue()
}

// fire executes one task and reschedules it. Called from timer callbacks
// and from the overdue sweep.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok || !task.IsActive || s.stopped {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked(id)
	snapshot := task.Clone()
	ctx := s.ctx
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{
		"task_id": id,
		"type":    snapshot.Type,
	}).Info("Executing scheduled task")
	s.execute(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok = s.tasks[id]
	if !ok || !task.IsActive || s.stopped {
		// Deleted or deactivated mid-flight; the run completed but is
		// not rescheduled.
		return
	}
	now := s.now()
	next := now.Add(IntervalForFrequency(task.CheckFrequency))
	task.LastRunTime = &now
	task.NextRunTime = &next
	s.persistLocked()
	s.armLocked(task)
}

// armLocked arms (or re-arms) the timer for a task. Caller holds the lock.
func (s *Scheduler) armLocked(task *Task) {
	if s.stopped || !task.IsActive || task.NextRunTime == nil {
		return
	}
	if timer, ok := s.timers[task.ID]; ok {
		timer.Stop()
	}
	delay := task.NextRunTime.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	id := task.ID
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

func (s *Scheduler) cancelTimerLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// persistLocked writes the task collection, favoring availability over
// durability: failures are logged, not propagated.
func (s *Scheduler) persistLocked() {
	if err := s.store.SaveTasks(s.tasks); err != nil {
		s.log.WithError(err).Error("Failed to persist scheduled tasks")
	}
}
