package protection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"nonsense", 0, true},
	}

	for _, tt := range tests {
		got, err := parseClock(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestClockInWindowWrapsMidnight(t *testing.T) {
	start, err := parseClock("22:00")
	require.NoError(t, err)
	end, err := parseClock("06:00")
	require.NoError(t, err)

	assert.True(t, clockInWindow(23*60, start, end))
	assert.True(t, clockInWindow(5*60, start, end))
	assert.False(t, clockInWindow(12*60, start, end))
	assert.False(t, clockInWindow(6*60, start, end), "end is exclusive")
}

func TestTimeMultiplierCompounds(t *testing.T) {
	st := NewState(DefaultQuotas())
	st.Advanced.TimeBasedRestrictions = TimeBasedRestrictions{
		PeakHours:   TimeWindow{Start: "09:00", End: "18:00", ReducedLimit: 0.7},
		NightMode:   NightWindow{Enabled: true, Start: "22:00", End: "06:00", ReducedLimit: 0.3},
		WeekendMode: WeekendRestriction{Enabled: true, ReducedLimit: 0.8},
	}
	st.Advanced.GeographicSimulation.HolidayMode = HolidayMode{
		Enabled:      true,
		Holidays:     []Holiday{{Month: time.January, Day: 1}},
		ReducedLimit: 0.5,
	}

	// Thursday afternoon outside every window.
	quiet := time.Date(2026, 1, 8, 20, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, TimeMultiplier(st, quiet), 1e-9)

	// Thursday during peak hours.
	peak := time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC)
	assert.InDelta(t, 0.7, TimeMultiplier(st, peak), 1e-9)

	// Saturday night compounds weekend and night reductions.
	weekendNight := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)
	assert.InDelta(t, 0.3*0.8, TimeMultiplier(st, weekendNight), 1e-9)

	// New Year's Day (a Thursday) during peak hours.
	holiday := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.InDelta(t, 0.7*0.5, TimeMultiplier(st, holiday), 1e-9)
}

func TestTimeMultiplierDisabledRestrictions(t *testing.T) {
	st := NewState(DefaultQuotas())
	st.Advanced.TimeBasedRestrictions = TimeBasedRestrictions{
		PeakHours: TimeWindow{Start: "00:00", End: "00:00", ReducedLimit: 0.7},
	}
	st.Advanced.GeographicSimulation.HolidayMode.Enabled = false

	weekday := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, TimeMultiplier(st, weekday), 1e-9)
}
