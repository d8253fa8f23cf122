package protection

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/storage"
)

const stateFileName = "bot_protection.json"

// Store persists protection state as a JSON document. Writes go through
// a temp file and rename so a crash mid-write never corrupts the state.
type Store struct {
	path   string
	quotas BaseQuotas
	log    logger.Logger
}

// NewStore creates a store rooted at dataDir, creating the directory if
// needed. Fresh states are seeded from quotas.
func NewStore(dataDir string, quotas BaseQuotas, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		path:   filepath.Join(dataDir, stateFileName),
		quotas: quotas,
		log:    log,
	}, nil
}

// Load reads the persisted state. A missing or unreadable file yields a
// fresh default state rather than an error, so a wiped data directory
// silently resets protection to its defaults.
func (s *Store) Load() *State {
	var st State
	if err := storage.ReadJSON(s.path, &st); err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Failed to read protection state, using defaults")
		}
		return NewState(s.quotas)
	}
	normalize(&st, s.quotas)
	return &st
}

// Save atomically writes the state to disk.
func (s *Store) Save(st *State) error {
	if err := storage.WriteJSON(s.path, st); err != nil {
		return apperrors.Newf(apperrors.ErrorTypePersistence, "save protection state: %v", err)
	}
	return nil
}

// normalize backfills zero values in a loaded state so hand-edited or
// older documents keep working.
func normalize(st *State, quotas BaseQuotas) {
	if st.DailyCheckLimit <= 0 {
		st.DailyCheckLimit = quotas.DailyCheckLimit
	}
	if st.MaxChecksPerHour <= 0 {
		st.MaxChecksPerHour = quotas.MaxChecksPerHour
	}
	if st.MinIntervalMinutes <= 0 {
		st.MinIntervalMinutes = quotas.MinIntervalMinutes
	}
	if st.HourlyChecks == nil {
		st.HourlyChecks = []time.Time{}
	}
	if st.DailyChecks == nil {
		st.DailyChecks = []time.Time{}
	}
	if st.Statistics.ResponseTimes == nil {
		st.Statistics.ResponseTimes = []float64{}
	}
	defaults := NewState(quotas)
	if st.SafetyMode.DurationMinutes <= 0 {
		st.SafetyMode.DurationMinutes = defaults.SafetyMode.DurationMinutes
	}
	if st.EmergencyMode.DurationHours <= 0 {
		st.EmergencyMode.DurationHours = defaults.EmergencyMode.DurationHours
	}
	if len(st.Advanced.ErrorHandling.SuspiciousErrors) == 0 {
		st.Advanced.ErrorHandling.SuspiciousErrors = defaults.Advanced.ErrorHandling.SuspiciousErrors
	}
	if len(st.Advanced.ErrorHandling.CriticalErrors) == 0 {
		st.Advanced.ErrorHandling.CriticalErrors = defaults.Advanced.ErrorHandling.CriticalErrors
	}
	if st.Advanced.ErrorHandling.MaxErrorsPerHour <= 0 {
		st.Advanced.ErrorHandling.MaxErrorsPerHour = defaults.Advanced.ErrorHandling.MaxErrorsPerHour
	}
	if st.Advanced.ErrorHandling.ErrorCooldownMinutes <= 0 {
		st.Advanced.ErrorHandling.ErrorCooldownMinutes = defaults.Advanced.ErrorHandling.ErrorCooldownMinutes
	}
	if st.Advanced.SessionManagement.MaxSessionsPerDay <= 0 {
		st.Advanced.SessionManagement.MaxSessionsPerDay = defaults.Advanced.SessionManagement.MaxSessionsPerDay
	}
	if st.Advanced.SessionManagement.SessionTimeoutMinutes <= 0 {
		st.Advanced.SessionManagement.SessionTimeoutMinutes = defaults.Advanced.SessionManagement.SessionTimeoutMinutes
	}
	if st.Advanced.RequestPatterns.MaxConsecutiveRequests <= 0 {
		st.Advanced.RequestPatterns.MaxConsecutiveRequests = defaults.Advanced.RequestPatterns.MaxConsecutiveRequests
	}
	if st.Advanced.RequestPatterns.CooldownMinutes <= 0 {
		st.Advanced.RequestPatterns.CooldownMinutes = defaults.Advanced.RequestPatterns.CooldownMinutes
	}
	if st.Advanced.ProgressiveBackoff.BaseDelayMinutes <= 0 {
		st.Advanced.ProgressiveBackoff = defaults.Advanced.ProgressiveBackoff
	}
	if st.Advanced.TimeBasedRestrictions.PeakHours.Start == "" {
		st.Advanced.TimeBasedRestrictions = defaults.Advanced.TimeBasedRestrictions
	}
	if len(st.Advanced.GeographicSimulation.HolidayMode.Holidays) == 0 {
		st.Advanced.GeographicSimulation = defaults.Advanced.GeographicSimulation
	}
	if st.Advanced.BehavioralPatterns.HumanLikeDelays.Typing.MaxMs <= 0 {
		st.Advanced.BehavioralPatterns = defaults.Advanced.BehavioralPatterns
	}
	if st.Advanced.RandomDelays.MaxSeconds <= 0 {
		st.Advanced.RandomDelays = defaults.Advanced.RandomDelays
	}
}
