package protection

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), DefaultQuotas(), logger.NewNop())
	require.NoError(t, err)
	return store
}

func TestStoreLoadMissingFileReturnsDefaults(t *testing.T) {
	store := newTestStore(t)

	st := store.Load()
	require.NotNil(t, st)
	assert.Equal(t, 50, st.DailyCheckLimit)
	assert.Equal(t, 10, st.MaxChecksPerHour)
	assert.Equal(t, 5, st.MinIntervalMinutes)
	assert.NotEmpty(t, st.Advanced.ErrorHandling.SuspiciousErrors)
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	st := store.Load()
	now := time.Date(2026, 1, 7, 20, 0, 0, 0, time.UTC)
	st.LastCheckTime = &now
	st.CheckCount = 7
	st.HourlyChecks = []time.Time{now.Add(-10 * time.Minute), now}
	st.Statistics.TotalRequests = 7
	st.Statistics.ConsecutiveSuccesses = 3
	st.SafetyMode.Enabled = true
	st.SafetyMode.TriggeredBy = "challenge required"
	st.SafetyMode.ActivationTime = &now
	require.NoError(t, store.Save(st))

	loaded := store.Load()
	require.NotNil(t, loaded.LastCheckTime)
	assert.True(t, loaded.LastCheckTime.Equal(now))
	assert.Equal(t, 7, loaded.CheckCount)
	assert.Len(t, loaded.HourlyChecks, 2)
	assert.Equal(t, 7, loaded.Statistics.TotalRequests)
	assert.Equal(t, 3, loaded.Statistics.ConsecutiveSuccesses)
	assert.True(t, loaded.SafetyMode.Enabled)
	assert.Equal(t, "challenge required", loaded.SafetyMode.TriggeredBy)
}

func TestStoreLoadCorruptFileReturnsDefaults(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.path, []byte("{not json"), 0o644))

	st := store.Load()
	require.NotNil(t, st)
	assert.Equal(t, 50, st.DailyCheckLimit)
	assert.Zero(t, st.CheckCount)
}

func TestStoreNormalizeBackfillsZeroLimits(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.path, []byte(`{"checkCount": 3}`), 0o644))

	st := store.Load()
	assert.Equal(t, 3, st.CheckCount)
	assert.Equal(t, 50, st.DailyCheckLimit)
	assert.Equal(t, 10, st.MaxChecksPerHour)
	assert.NotNil(t, st.HourlyChecks)
	assert.NotEmpty(t, st.Advanced.ErrorHandling.CriticalErrors)
	assert.Equal(t, 60, st.SafetyMode.DurationMinutes)
	assert.Equal(t, 24, st.EmergencyMode.DurationHours)
}

func TestStoreSaveFailureIsPersistenceError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.Mkdir(store.path, 0o755))

	err := store.Save(NewState(DefaultQuotas()))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypePersistence, apperrors.TypeOf(err))
}
