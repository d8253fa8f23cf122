package protection

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"igmonitor/pkg/logger"
)

// Decision is the outcome of a gate evaluation. When Allowed is false the
// Reason and wait fields describe the denial; when true, AdjustedLimits
// and TimeMultiplier expose the effective quotas for caller visibility.
type Decision struct {
	Allowed        bool            `json:"allowed"`
	Reason         string          `json:"reason,omitempty"`
	WaitMinutes    int             `json:"waitMinutes,omitempty"`
	WaitHours      int             `json:"waitHours,omitempty"`
	EmergencyMode  bool            `json:"emergencyMode,omitempty"`
	SafetyMode     bool            `json:"safetyMode,omitempty"`
	TimeMultiplier float64         `json:"timeMultiplier,omitempty"`
	AdjustedLimits *AdjustedLimits `json:"adjustedLimits,omitempty"`
}

// Gate is the admission-control decision point before any outbound check.
// Every evaluation and mutation runs under one mutex, so load-modify-save
// on the state file never interleaves.
type Gate struct {
	mu    sync.Mutex
	store *Store
	log   logger.Logger
	now   func() time.Time
}

// NewGate wires a gate to its state store.
func NewGate(store *Store, log logger.Logger) *Gate {
	return &Gate{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// CanCheck evaluates the layered gate and reports whether a check may
// proceed right now. Housekeeping mutations (mode expiry, daily reset,
// window pruning, session timeout) are persisted as a side effect, but
// the decision itself is deterministic for a fixed instant.
func (g *Gate) CanCheck() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := g.store.Load()
	dec := evaluate(st, now)
	g.save(st)

	if !dec.Allowed {
		g.log.WithFields(map[string]interface{}{
			"reason":       dec.Reason,
			"wait_minutes": dec.WaitMinutes,
		}).Debug("Check denied by protection gate")
	}
	return dec
}

// evaluate runs the gate layers in strict order, short-circuiting on the
// first denial. It mutates st for housekeeping only.
func evaluate(st *State, now time.Time) Decision {
	// 1. Emergency Mode.
	if st.EmergencyMode.Enabled {
		if remaining := modeRemaining(st.EmergencyMode.ActivationTime, time.Duration(st.EmergencyMode.DurationHours)*time.Hour, now); remaining > 0 {
			return Decision{
				Reason:        fmt.Sprintf("Emergency Mode active: %s", st.EmergencyMode.TriggeredBy),
				WaitHours:     ceilHours(remaining),
				WaitMinutes:   ceilMinutes(remaining),
				EmergencyMode: true,
			}
		}
		st.EmergencyMode = EmergencyMode{DurationHours: st.EmergencyMode.DurationHours}
	}

	// 2. Safety Mode.
	if st.SafetyMode.Enabled {
		if remaining := modeRemaining(st.SafetyMode.ActivationTime, time.Duration(st.SafetyMode.DurationMinutes)*time.Minute, now); remaining > 0 {
			return Decision{
				Reason:      fmt.Sprintf("Safety Mode active: %s", st.SafetyMode.TriggeredBy),
				WaitMinutes: ceilMinutes(remaining),
				SafetyMode:  true,
			}
		}
		st.SafetyMode = SafetyMode{DurationMinutes: st.SafetyMode.DurationMinutes}
	}

	// 3. Daily counter reset.
	if st.ResetTime == nil || !now.Before(*st.ResetTime) {
		next := now.Add(24 * time.Hour)
		st.ResetTime = &next
		st.CheckCount = 0
		st.HourlyChecks = []time.Time{}
		st.DailyChecks = []time.Time{}
		st.Advanced.SessionManagement.SessionCount = 0
		st.Advanced.RequestPatterns.ConsecutiveCount = 0
		st.Advanced.ErrorHandling.ErrorCount = 0
	}

	// 4. Prune sliding windows.
	st.HourlyChecks = PruneWindow(st.HourlyChecks, now, time.Hour)
	st.DailyChecks = PruneWindow(st.DailyChecks, now, 24*time.Hour)
	eh := &st.Advanced.ErrorHandling
	if eh.LastErrorTime != nil && now.Sub(*eh.LastErrorTime) > time.Hour {
		eh.ErrorCount = 0
	}

	// 5. Session timeout. Closing an expired session does not deny.
	sm := &st.Advanced.SessionManagement
	if sm.CurrentSessionStart != nil &&
		now.Sub(*sm.CurrentSessionStart) > time.Duration(sm.SessionTimeoutMinutes)*time.Minute {
		sm.CurrentSessionStart = nil
	}

	// 6. Consecutive-request cooldown.
	rp := &st.Advanced.RequestPatterns
	if rp.LastConsecutiveTime != nil {
		cooldown := time.Duration(rp.CooldownMinutes) * time.Minute
		if remaining := cooldown - now.Sub(*rp.LastConsecutiveTime); remaining > 0 {
			return Decision{
				Reason:      "Request cooldown in effect",
				WaitMinutes: ceilMinutes(remaining),
			}
		}
		rp.ConsecutiveCount = 0
	}

	// 7. Error cooldown.
	if eh.LastErrorTime != nil {
		cooldown := time.Duration(eh.ErrorCooldownMinutes) * time.Minute
		if remaining := cooldown - now.Sub(*eh.LastErrorTime); remaining > 0 {
			return Decision{
				Reason:      "Cooling down after suspicious errors",
				WaitMinutes: ceilMinutes(remaining),
			}
		}
	}

	// 8. Wall-clock multiplier.
	multiplier := TimeMultiplier(st, now)

	// 9. Progressive backoff, measured from the last failure.
	if delay := st.Advanced.ProgressiveBackoff.BackoffDelay(st.Statistics.ConsecutiveFailures); delay > 0 &&
		st.Statistics.LastFailureTime != nil {
		if remaining := delay - now.Sub(*st.Statistics.LastFailureTime); remaining > 0 {
			return Decision{
				Reason:      fmt.Sprintf("Backing off after %d consecutive failures", st.Statistics.ConsecutiveFailures),
				WaitMinutes: ceilMinutes(remaining),
			}
		}
	}

	// 10. Adjusted limits.
	limits := Adjust(st.MaxChecksPerHour, st.DailyCheckLimit, multiplier)

	// 11. Minimum spacing between checks.
	minInterval := time.Duration(st.MinIntervalMinutes) * time.Minute
	if remaining := MinIntervalRemaining(st.LastCheckTime, now, minInterval); remaining > 0 {
		return Decision{
			Reason:      fmt.Sprintf("Minimum interval of %d minutes between checks", st.MinIntervalMinutes),
			WaitMinutes: ceilMinutes(remaining),
		}
	}

	// 12. Hourly cap.
	if len(st.HourlyChecks) >= limits.Hourly {
		oldest := st.HourlyChecks[0]
		remaining := time.Hour - now.Sub(oldest)
		return Decision{
			Reason:      fmt.Sprintf("Hourly limit reached (%d checks)", limits.Hourly),
			WaitMinutes: ceilMinutes(remaining),
		}
	}

	// 13. Daily cap.
	if len(st.DailyChecks) >= limits.Daily {
		return Decision{
			Reason:      fmt.Sprintf("Daily limit reached (%d checks)", limits.Daily),
			WaitMinutes: 1440,
		}
	}

	// 14. Session cap.
	if sm.SessionCount >= sm.MaxSessionsPerDay {
		return Decision{
			Reason:      fmt.Sprintf("Daily session limit reached (%d sessions)", sm.MaxSessionsPerDay),
			WaitMinutes: 1440,
		}
	}

	return Decision{
		Allowed:        true,
		TimeMultiplier: multiplier,
		AdjustedLimits: &limits,
	}
}

// RecordCheck records the outcome of one completed account check.
func (g *Gate) RecordCheck(success bool, responseTime time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := g.store.Load()
	applyCheck(st, now, success, responseTime)
	g.save(st)
}

// applyCheck folds one check outcome into the state.
func applyCheck(st *State, now time.Time, success bool, responseTime time.Duration) {
	st.LastCheckTime = &now
	st.CheckCount++
	st.HourlyChecks = append(st.HourlyChecks, now)
	st.DailyChecks = append(st.DailyChecks, now)

	stats := &st.Statistics
	stats.TotalRequests++
	if success {
		stats.SuccessfulRequests++
		stats.ConsecutiveSuccesses++
		stats.ConsecutiveFailures = 0
		stats.LastSuccessTime = &now
	} else {
		stats.FailedRequests++
		stats.ConsecutiveFailures++
		stats.ConsecutiveSuccesses = 0
		stats.LastFailureTime = &now
	}

	if responseTime > 0 {
		stats.ResponseTimes = append(stats.ResponseTimes, float64(responseTime.Milliseconds()))
		if len(stats.ResponseTimes) > 100 {
			stats.ResponseTimes = stats.ResponseTimes[len(stats.ResponseTimes)-100:]
		}
		var sum float64
		for _, rt := range stats.ResponseTimes {
			sum += rt
		}
		stats.AverageResponseTime = sum / float64(len(stats.ResponseTimes))
	}

	// A burst continues while requests stay within five minutes of each
	// other, otherwise it restarts at one.
	rp := &st.Advanced.RequestPatterns
	if rp.LastConsecutiveTime != nil && now.Sub(*rp.LastConsecutiveTime) < 5*time.Minute {
		rp.ConsecutiveCount++
	} else {
		rp.ConsecutiveCount = 1
	}
	rp.LastConsecutiveTime = &now

	sm := &st.Advanced.SessionManagement
	if sm.CurrentSessionStart == nil {
		sm.CurrentSessionStart = &now
		sm.SessionCount++
	}
}

// RecordError classifies an upstream error message and escalates
// protection modes when it looks like bot detection. Messages that match
// nothing are recorded as ordinary failures.
func (g *Gate) RecordError(message string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := g.store.Load()
	eh := &st.Advanced.ErrorHandling

	if matchesAny(message, eh.SuspiciousErrors) {
		eh.ErrorCount++
		eh.LastErrorTime = &now

		if eh.ErrorCount >= eh.MaxErrorsPerHour {
			st.SafetyMode.Enabled = true
			st.SafetyMode.TriggeredBy = message
			st.SafetyMode.ActivationTime = &now
			st.Statistics.ConsecutiveFailures++
			st.Statistics.ConsecutiveSuccesses = 0
			st.Statistics.LastFailureTime = &now
			g.save(st)
			g.log.WithField("trigger", message).Warn("Safety Mode activated")
			return
		}

		if matchesAny(message, eh.CriticalErrors) && st.Statistics.ConsecutiveFailures+1 >= 3 {
			st.EmergencyMode.Enabled = true
			st.EmergencyMode.TriggeredBy = message
			st.EmergencyMode.ActivationTime = &now
			st.Statistics.ConsecutiveFailures++
			st.Statistics.ConsecutiveSuccesses = 0
			st.Statistics.LastFailureTime = &now
			g.save(st)
			g.log.WithField("trigger", message).Error("Emergency Mode activated")
			return
		}
	}

	applyCheck(st, now, false, 0)
	g.save(st)
}

// Reset clears all counters, windows and modes, starting a fresh 24 hour
// quota period. Configured limits and keyword lists are preserved.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := g.store.Load()
	next := now.Add(24 * time.Hour)

	st.LastCheckTime = nil
	st.CheckCount = 0
	st.ResetTime = &next
	st.HourlyChecks = []time.Time{}
	st.DailyChecks = []time.Time{}
	st.SafetyMode = SafetyMode{DurationMinutes: st.SafetyMode.DurationMinutes}
	st.EmergencyMode = EmergencyMode{DurationHours: st.EmergencyMode.DurationHours}
	st.Statistics = Statistics{ResponseTimes: []float64{}}
	st.Advanced.SessionManagement.CurrentSessionStart = nil
	st.Advanced.SessionManagement.SessionCount = 0
	st.Advanced.RequestPatterns.ConsecutiveCount = 0
	st.Advanced.RequestPatterns.LastConsecutiveTime = nil
	st.Advanced.ErrorHandling.ErrorCount = 0
	st.Advanced.ErrorHandling.LastErrorTime = nil

	g.save(st)
	g.log.Info("Protection state reset")
}

// StatusReport is a read-only snapshot of the gate for status endpoints.
type StatusReport struct {
	Decision           Decision      `json:"decision"`
	ChecksToday        int           `json:"checksToday"`
	DailyLimit         int           `json:"dailyLimit"`
	ChecksThisHour     int           `json:"checksThisHour"`
	HourlyLimit        int           `json:"hourlyLimit"`
	MinIntervalMinutes int           `json:"minIntervalMinutes"`
	LastCheckTime      *time.Time    `json:"lastCheckTime"`
	ResetTime          *time.Time    `json:"resetTime"`
	TimeMultiplier     float64       `json:"timeMultiplier"`
	SafetyMode         SafetyMode    `json:"safetyMode"`
	EmergencyMode      EmergencyMode `json:"emergencyMode"`
	Statistics         Statistics    `json:"statistics"`
}

// Status evaluates the gate and returns a full snapshot.
func (g *Gate) Status() StatusReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := g.store.Load()
	dec := evaluate(st, now)
	g.save(st)

	return StatusReport{
		Decision:           dec,
		ChecksToday:        len(st.DailyChecks),
		DailyLimit:         st.DailyCheckLimit,
		ChecksThisHour:     len(st.HourlyChecks),
		HourlyLimit:        st.MaxChecksPerHour,
		MinIntervalMinutes: st.MinIntervalMinutes,
		LastCheckTime:      st.LastCheckTime,
		ResetTime:          st.ResetTime,
		TimeMultiplier:     TimeMultiplier(st, now),
		SafetyMode:         st.SafetyMode,
		EmergencyMode:      st.EmergencyMode,
		Statistics:         st.Statistics,
	}
}

// AccountHealth summarizes how healthy the monitored account looks from
// the protection state alone.
type AccountHealth struct {
	Status              string  `json:"status"`
	Message             string  `json:"message"`
	TriggeredBy         string  `json:"triggeredBy,omitempty"`
	RemainingHours      int     `json:"remainingHours,omitempty"`
	RemainingMinutes    int     `json:"remainingMinutes,omitempty"`
	SuccessRate         float64 `json:"successRate"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
}

// AccountStatus reports the account state: EMERGENCY while Emergency
// Mode holds, SAFETY under Safety Mode, NORMAL otherwise. Repeated
// failures only annotate the NORMAL message.
func (g *Gate) AccountStatus() AccountHealth {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := g.store.Load()

	health := AccountHealth{
		Status:              "NORMAL",
		Message:             "Account operating normally",
		SuccessRate:         successRate(st.Statistics),
		ConsecutiveFailures: st.Statistics.ConsecutiveFailures,
	}

	if st.EmergencyMode.Enabled {
		remaining := modeRemaining(st.EmergencyMode.ActivationTime, time.Duration(st.EmergencyMode.DurationHours)*time.Hour, now)
		if remaining > 0 {
			health.Status = "EMERGENCY"
			health.Message = "Possible ban detected, all checks suspended"
			health.TriggeredBy = st.EmergencyMode.TriggeredBy
			health.RemainingHours = ceilHours(remaining)
			return health
		}
	}
	if st.SafetyMode.Enabled {
		remaining := modeRemaining(st.SafetyMode.ActivationTime, time.Duration(st.SafetyMode.DurationMinutes)*time.Minute, now)
		if remaining > 0 {
			health.Status = "SAFETY"
			health.Message = "Suspicious activity detected, checks paused"
			health.TriggeredBy = st.SafetyMode.TriggeredBy
			health.RemainingMinutes = ceilMinutes(remaining)
			return health
		}
	}
	if st.Statistics.ConsecutiveFailures >= 3 {
		health.Message = fmt.Sprintf("%d consecutive failures, backing off", st.Statistics.ConsecutiveFailures)
	}
	return health
}

// DelayProfile returns the behavioral delay settings the sequencer
// applies between checks.
func (g *Gate) DelayProfile() (BehavioralPatterns, RandomDelays) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.store.Load()
	return st.Advanced.BehavioralPatterns, st.Advanced.RandomDelays
}

func (g *Gate) save(st *State) {
	if err := g.store.Save(st); err != nil {
		g.log.WithError(err).Error("Failed to persist protection state")
	}
}

func successRate(stats Statistics) float64 {
	if stats.TotalRequests == 0 {
		return 1
	}
	return float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
}

func matchesAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func modeRemaining(activated *time.Time, duration time.Duration, now time.Time) time.Duration {
	if activated == nil {
		return 0
	}
	return activated.Add(duration).Sub(now)
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

func ceilHours(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}
