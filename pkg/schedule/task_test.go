package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalForFrequency(t *testing.T) {
	tests := []struct {
		code int
		want time.Duration
	}{
		{0, 5 * time.Minute},
		{1, 30 * time.Minute},
		{2, time.Hour},
		{3, 3 * time.Hour},
		{4, 6 * time.Hour},
		{5, 8 * time.Hour},
		{6, 12 * time.Hour},
		{7, 24 * time.Hour},
		{-1, 12 * time.Hour},
		{8, 12 * time.Hour},
		{99, 12 * time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IntervalForFrequency(tt.code), "code %d", tt.code)
	}
}

func TestNewTaskID(t *testing.T) {
	now := time.Date(2026, 1, 7, 20, 0, 0, 0, time.UTC)
	id := NewTaskID(TaskPrivacy, "user@example.com", now)
	assert.Equal(t, "privacy_user@example.com_1767816000000", id)
}

func TestTaskTypeValid(t *testing.T) {
	assert.True(t, TaskPrivacy.Valid())
	assert.True(t, TaskStories.Valid())
	assert.False(t, TaskType("").Valid())
	assert.False(t, TaskType("likes").Valid())
}

func TestTaskClone(t *testing.T) {
	now := time.Now()
	task := &Task{
		ID:        "privacy_a@b.c_1",
		Type:      TaskPrivacy,
		Usernames: []string{"alpha", "beta"},
		Email:     "a@b.c",
		CreatedAt: now,
	}

	clone := task.Clone()
	clone.Usernames[0] = "changed"
	assert.Equal(t, "alpha", task.Usernames[0])
	assert.Equal(t, task.ID, clone.ID)
}
