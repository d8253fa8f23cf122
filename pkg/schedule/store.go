package schedule

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/storage"
)

const (
	tasksFileName   = "scheduled_tasks.json"
	overdueFileName = "overdue_check.json"

	defaultSweepIntervalHours = 24
)

// OverdueRecord throttles the overdue-task sweep itself, independent of
// any per-task schedule.
type OverdueRecord struct {
	LastCheckTime      *time.Time `json:"lastCheckTime"`
	CheckIntervalHours int        `json:"checkIntervalHours"`
}

// Store persists the scheduled task collection and the overdue-sweep
// record as two separate JSON documents.
type Store struct {
	tasksPath   string
	overduePath string
	log         logger.Logger
}

// NewStore creates a store rooted at dataDir.
func NewStore(dataDir string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		tasksPath:   filepath.Join(dataDir, tasksFileName),
		overduePath: filepath.Join(dataDir, overdueFileName),
		log:         log,
	}, nil
}

// LoadTasks reads all persisted tasks keyed by id. Missing or unreadable
// files yield an empty collection.
func (s *Store) LoadTasks() map[string]*Task {
	tasks := make(map[string]*Task)
	if err := storage.ReadJSON(s.tasksPath, &tasks); err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Failed to read scheduled tasks, starting empty")
		}
		return make(map[string]*Task)
	}
	for id, task := range tasks {
		if task == nil {
			delete(tasks, id)
			continue
		}
		task.ID = id
	}
	return tasks
}

// SaveTasks atomically writes the whole task collection.
func (s *Store) SaveTasks(tasks map[string]*Task) error {
	if err := storage.WriteJSON(s.tasksPath, tasks); err != nil {
		return apperrors.Newf(apperrors.ErrorTypePersistence, "save scheduled tasks: %v", err)
	}
	return nil
}

// LoadOverdue reads the sweep record, substituting defaults when absent.
func (s *Store) LoadOverdue() OverdueRecord {
	var rec OverdueRecord
	if err := storage.ReadJSON(s.overduePath, &rec); err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Failed to read overdue-check record, using defaults")
		}
		return OverdueRecord{CheckIntervalHours: defaultSweepIntervalHours}
	}
	if rec.CheckIntervalHours <= 0 {
		rec.CheckIntervalHours = defaultSweepIntervalHours
	}
	return rec
}

// SaveOverdue atomically writes the sweep record.
func (s *Store) SaveOverdue(rec OverdueRecord) error {
	if err := storage.WriteJSON(s.overduePath, rec); err != nil {
		return apperrors.Newf(apperrors.ErrorTypePersistence, "save overdue-check record: %v", err)
	}
	return nil
}

// ResetOverdue clears the sweep throttle so the next sweep may run
// immediately.
func (s *Store) ResetOverdue() error {
	return s.SaveOverdue(OverdueRecord{CheckIntervalHours: defaultSweepIntervalHours})
}
