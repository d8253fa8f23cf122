package protection

import (
	"fmt"
	"time"
)

// parseClock parses an "HH:MM" string into minutes since midnight.
func parseClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return hh*60 + mm, nil
}

// clockInWindow reports whether the minute-of-day falls inside the
// [start, end) window. Windows where start > end wrap across midnight.
func clockInWindow(minute, start, end int) bool {
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func windowContains(start, end string, now time.Time) bool {
	s, err := parseClock(start)
	if err != nil {
		return false
	}
	e, err := parseClock(end)
	if err != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	return clockInWindow(minute, s, e)
}

func isHoliday(holidays []Holiday, now time.Time) bool {
	for _, h := range holidays {
		if now.Month() == h.Month && now.Day() == h.Day {
			return true
		}
	}
	return false
}

// TimeMultiplier compounds every active wall-clock restriction into a
// single factor in (0, 1]. Overlapping restrictions multiply, so a
// weekend night is throttled harder than either alone.
func TimeMultiplier(st *State, now time.Time) float64 {
	restrictions := st.Advanced.TimeBasedRestrictions
	multiplier := 1.0

	if windowContains(restrictions.PeakHours.Start, restrictions.PeakHours.End, now) {
		multiplier *= restrictions.PeakHours.ReducedLimit
	}
	if restrictions.NightMode.Enabled &&
		windowContains(restrictions.NightMode.Start, restrictions.NightMode.End, now) {
		multiplier *= restrictions.NightMode.ReducedLimit
	}
	if restrictions.WeekendMode.Enabled {
		switch now.Weekday() {
		case time.Saturday, time.Sunday:
			multiplier *= restrictions.WeekendMode.ReducedLimit
		}
	}

	holiday := st.Advanced.GeographicSimulation.HolidayMode
	if holiday.Enabled && isHoliday(holiday.Holidays, now) {
		multiplier *= holiday.ReducedLimit
	}

	return multiplier
}
