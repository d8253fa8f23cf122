package protection

import (
	"math"
	"time"
)

// PruneWindow drops timestamps older than maxAge relative to now,
// preserving order. It never returns nil.
func PruneWindow(window []time.Time, now time.Time, maxAge time.Duration) []time.Time {
	cutoff := now.Add(-maxAge)
	pruned := window[:0:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	if pruned == nil {
		pruned = []time.Time{}
	}
	return pruned
}

// MinIntervalRemaining returns how long until the minimum spacing from the
// last check has elapsed, or zero when a check is already permitted.
func MinIntervalRemaining(lastCheck *time.Time, now time.Time, minInterval time.Duration) time.Duration {
	if lastCheck == nil {
		return 0
	}
	remaining := minInterval - now.Sub(*lastCheck)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BackoffDelay returns the exponential delay earned by the given number
// of consecutive failures: base * multiplier^(failures-1), capped at the
// configured maximum. Zero failures earn no delay.
func (p ProgressiveBackoff) BackoffDelay(consecutiveFailures int) time.Duration {
	if !p.Enabled || consecutiveFailures <= 0 {
		return 0
	}
	minutes := p.BaseDelayMinutes * math.Pow(p.Multiplier, float64(consecutiveFailures-1))
	maxMinutes := p.MaxDelayHours * 60
	if maxMinutes > 0 && minutes > maxMinutes {
		minutes = maxMinutes
	}
	return time.Duration(minutes * float64(time.Minute))
}

// AdjustedLimits are the hourly and daily caps after the time-context
// multiplier has been applied.
type AdjustedLimits struct {
	Hourly int `json:"hourly"`
	Daily  int `json:"daily"`
}

// Adjust scales the base caps by the multiplier, flooring the result.
// A small enough limit or multiplier can floor to zero, which denies
// every check until the multiplier recovers.
func Adjust(hourly, daily int, multiplier float64) AdjustedLimits {
	return AdjustedLimits{
		Hourly: scaleLimit(hourly, multiplier),
		Daily:  scaleLimit(daily, multiplier),
	}
}

func scaleLimit(limit int, multiplier float64) int {
	return int(math.Floor(float64(limit) * multiplier))
}
