package schedule

import (
	"fmt"
	"time"
)

// TaskType selects which account check a task performs.
type TaskType string

const (
	TaskPrivacy TaskType = "privacy"
	TaskStories TaskType = "stories"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	return t == TaskPrivacy || t == TaskStories
}

// Task is the durable descriptor of a recurring check job. The live timer
// handle is owned by the Scheduler and never serialized.
type Task struct {
	ID             string     `json:"taskId"`
	Type           TaskType   `json:"type"`
	Usernames      []string   `json:"usernames"`
	Email          string     `json:"email"`
	CheckFrequency int        `json:"checkFrequency"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	NextRunTime    *time.Time `json:"nextRunTime"`
	LastRunTime    *time.Time `json:"lastRunTime"`
}

// Clone returns a deep copy safe to use outside the scheduler's lock.
func (t *Task) Clone() *Task {
	c := *t
	c.Usernames = append([]string(nil), t.Usernames...)
	return &c
}

// NewTaskID derives a task id from its type, subscriber and creation
// instant.
func NewTaskID(taskType TaskType, email string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", taskType, email, now.UnixMilli())
}

var frequencyIntervals = map[int]time.Duration{
	0: 5 * time.Minute,
	1: 30 * time.Minute,
	2: time.Hour,
	3: 3 * time.Hour,
	4: 6 * time.Hour,
	5: 8 * time.Hour,
	6: 12 * time.Hour,
	7: 24 * time.Hour,
}

const defaultInterval = 12 * time.Hour

// IntervalForFrequency maps a frequency code to its run interval. Unknown
// codes fall back to twelve hours.
func IntervalForFrequency(code int) time.Duration {
	if interval, ok := frequencyIntervals[code]; ok {
		return interval
	}
	return defaultInterval
}
