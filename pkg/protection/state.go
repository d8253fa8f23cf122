package protection

import "time"

// State is the durable, process-wide bot-protection state. It is loaded
// fresh before every gate decision and persisted after every mutation;
// the gate serializes all access.
type State struct {
	LastCheckTime      *time.Time  `json:"lastCheckTime"`
	CheckCount         int         `json:"checkCount"`
	DailyCheckLimit    int         `json:"dailyCheckLimit"`
	ResetTime          *time.Time  `json:"resetTime"`
	MinIntervalMinutes int         `json:"minIntervalMinutes"`
	MaxChecksPerHour   int         `json:"maxChecksPerHour"`
	HourlyChecks       []time.Time `json:"hourlyChecks"`
	DailyChecks        []time.Time `json:"dailyChecks"`

	SafetyMode    SafetyMode    `json:"safetyMode"`
	EmergencyMode EmergencyMode `json:"emergencyMode"`

	Statistics Statistics `json:"statistics"`

	Advanced AdvancedProtection `json:"advancedProtection"`
}

// SafetyMode is the medium-severity lockout, activated when too many
// suspicious upstream errors pile up within the hour.
type SafetyMode struct {
	Enabled         bool       `json:"enabled"`
	TriggeredBy     string     `json:"triggeredBy,omitempty"`
	ActivationTime  *time.Time `json:"activationTime"`
	DurationMinutes int        `json:"durationMinutes"`
}

// EmergencyMode is the highest-severity lockout, activated by ban-like
// upstream errors after repeated consecutive failures.
type EmergencyMode struct {
	Enabled        bool       `json:"enabled"`
	TriggeredBy    string     `json:"triggeredBy,omitempty"`
	ActivationTime *time.Time `json:"activationTime"`
	DurationHours  int        `json:"durationHours"`
}

// Statistics tracks request outcomes. ConsecutiveSuccesses and
// ConsecutiveFailures are mutually exclusive: recording either outcome
// resets the other.
type Statistics struct {
	TotalRequests        int        `json:"totalRequests"`
	SuccessfulRequests   int        `json:"successfulRequests"`
	FailedRequests       int        `json:"failedRequests"`
	ConsecutiveSuccesses int        `json:"consecutiveSuccesses"`
	ConsecutiveFailures  int        `json:"consecutiveFailures"`
	ResponseTimes        []float64  `json:"responseTimes"`
	AverageResponseTime  float64    `json:"averageResponseTime"`
	LastSuccessTime      *time.Time `json:"lastSuccessTime"`
	LastFailureTime      *time.Time `json:"lastFailureTime"`
}

// AdvancedProtection groups the layered gate settings. Each gate layer
// owns its own sub-struct.
type AdvancedProtection struct {
	SessionManagement     SessionManagement     `json:"sessionManagement"`
	RequestPatterns       RequestPatterns       `json:"requestPatterns"`
	ErrorHandling         ErrorHandling         `json:"errorHandling"`
	ProgressiveBackoff    ProgressiveBackoff    `json:"progressiveBackoff"`
	TimeBasedRestrictions TimeBasedRestrictions `json:"timeBasedRestrictions"`
	GeographicSimulation  GeographicSimulation  `json:"geographicSimulation"`
	BehavioralPatterns    BehavioralPatterns    `json:"behavioralPatterns"`
	RandomDelays          RandomDelays          `json:"randomDelays"`
}

// SessionManagement caps how many working sessions may be opened per day
// and how long one may stay open.
type SessionManagement struct {
	CurrentSessionStart   *time.Time `json:"currentSessionStart"`
	SessionCount          int        `json:"sessionCount"`
	MaxSessionsPerDay     int        `json:"maxSessionsPerDay"`
	SessionTimeoutMinutes int        `json:"sessionTimeoutMinutes"`
}

// RequestPatterns tracks bursts of closely spaced requests. A burst
// continues while the gap between requests stays under five minutes.
type RequestPatterns struct {
	ConsecutiveCount       int        `json:"consecutiveCount"`
	LastConsecutiveTime    *time.Time `json:"lastConsecutiveTime"`
	MaxConsecutiveRequests int        `json:"maxConsecutiveRequests"`
	CooldownMinutes        int        `json:"cooldownMinutes"`
}

// ErrorHandling classifies upstream error messages by substring match and
// throttles after suspicious ones.
type ErrorHandling struct {
	SuspiciousErrors     []string   `json:"suspiciousErrors"`
	CriticalErrors       []string   `json:"criticalErrors"`
	ErrorCount           int        `json:"errorCount"`
	LastErrorTime        *time.Time `json:"lastErrorTime"`
	MaxErrorsPerHour     int        `json:"maxErrorsPerHour"`
	ErrorCooldownMinutes int        `json:"errorCooldownMinutes"`
}

// ProgressiveBackoff configures the exponential delay applied after
// consecutive failures.
type ProgressiveBackoff struct {
	Enabled          bool    `json:"enabled"`
	BaseDelayMinutes float64 `json:"baseDelayMinutes"`
	Multiplier       float64 `json:"multiplier"`
	MaxDelayHours    float64 `json:"maxDelayHours"`
}

// TimeWindow is a clock-time window expressed as "HH:MM" strings. Start
// may be later than End, in which case the window wraps across midnight.
type TimeWindow struct {
	Start        string  `json:"start"`
	End          string  `json:"end"`
	ReducedLimit float64 `json:"reducedLimit"`
}

// WeekendRestriction reduces limits on Saturday and Sunday.
type WeekendRestriction struct {
	Enabled      bool    `json:"enabled"`
	ReducedLimit float64 `json:"reducedLimit"`
}

// TimeBasedRestrictions holds the wall-clock throttling windows.
type TimeBasedRestrictions struct {
	PeakHours   TimeWindow         `json:"peakHours"`
	NightMode   NightWindow        `json:"nightMode"`
	WeekendMode WeekendRestriction `json:"weekendMode"`
}

// NightWindow is a TimeWindow with its own enable flag.
type NightWindow struct {
	Enabled      bool    `json:"enabled"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	ReducedLimit float64 `json:"reducedLimit"`
}

// Holiday is a fixed (month, day) calendar entry.
type Holiday struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// HolidayMode reduces limits on calendar holidays.
type HolidayMode struct {
	Enabled      bool      `json:"enabled"`
	Holidays     []Holiday `json:"holidays"`
	ReducedLimit float64   `json:"reducedLimit"`
}

// GeographicSimulation holds locale-dependent throttling settings.
type GeographicSimulation struct {
	HolidayMode HolidayMode `json:"holidayMode"`
}

// DelayRange is a uniform random delay range in milliseconds.
type DelayRange struct {
	MinMs int `json:"minMs"`
	MaxMs int `json:"maxMs"`
}

// HumanLikeDelays simulates typing, reading and thinking pauses before a
// check. The three sub-delays are drawn independently and summed.
type HumanLikeDelays struct {
	Enabled  bool       `json:"enabled"`
	Typing   DelayRange `json:"typingDelay"`
	Reading  DelayRange `json:"readingDelay"`
	Thinking DelayRange `json:"thinkingDelay"`
}

// SessionBreaks inserts a long random pause between checks with a fixed
// probability.
type SessionBreaks struct {
	Enabled          bool    `json:"enabled"`
	BreakProbability float64 `json:"breakProbability"`
	MinBreakMinutes  int     `json:"minBreakMinutes"`
	MaxBreakMinutes  int     `json:"maxBreakMinutes"`
}

// BehavioralPatterns groups the human-imitating delay settings.
type BehavioralPatterns struct {
	HumanLikeDelays HumanLikeDelays `json:"humanLikeDelays"`
	SessionBreaks   SessionBreaks   `json:"sessionBreaks"`
}

// RandomDelays is the uniform inter-item delay applied between accounts
// in a batch.
type RandomDelays struct {
	Enabled    bool `json:"enabled"`
	MinSeconds int  `json:"minSeconds"`
	MaxSeconds int  `json:"maxSeconds"`
}

// BaseQuotas are the configured limits that seed a fresh state.
type BaseQuotas struct {
	DailyCheckLimit    int
	MaxChecksPerHour   int
	MinIntervalMinutes int
}

// DefaultQuotas returns the stock quota set.
func DefaultQuotas() BaseQuotas {
	return BaseQuotas{
		DailyCheckLimit:    50,
		MaxChecksPerHour:   10,
		MinIntervalMinutes: 5,
	}
}

// NewState returns a State with default settings and the given quotas.
func NewState(quotas BaseQuotas) *State {
	return &State{
		DailyCheckLimit:    quotas.DailyCheckLimit,
		MaxChecksPerHour:   quotas.MaxChecksPerHour,
		MinIntervalMinutes: quotas.MinIntervalMinutes,
		HourlyChecks:       []time.Time{},
		DailyChecks:        []time.Time{},
		SafetyMode: SafetyMode{
			DurationMinutes: 60,
		},
		EmergencyMode: EmergencyMode{
			DurationHours: 24,
		},
		Statistics: Statistics{
			ResponseTimes: []float64{},
		},
		Advanced: AdvancedProtection{
			SessionManagement: SessionManagement{
				MaxSessionsPerDay:     8,
				SessionTimeoutMinutes: 30,
			},
			RequestPatterns: RequestPatterns{
				MaxConsecutiveRequests: 5,
				CooldownMinutes:        3,
			},
			ErrorHandling: ErrorHandling{
				SuspiciousErrors: []string{
					"rate limit",
					"too many requests",
					"checkpoint",
					"challenge",
					"login required",
					"temporarily blocked",
					"try again later",
					"suspicious",
				},
				CriticalErrors: []string{
					"blocked",
					"suspended",
					"disabled",
					"captcha",
					"checkpoint",
				},
				MaxErrorsPerHour:     3,
				ErrorCooldownMinutes: 30,
			},
			ProgressiveBackoff: ProgressiveBackoff{
				Enabled:          true,
				BaseDelayMinutes: 5,
				Multiplier:       2,
				MaxDelayHours:    4,
			},
			TimeBasedRestrictions: TimeBasedRestrictions{
				PeakHours: TimeWindow{
					Start:        "09:00",
					End:          "18:00",
					ReducedLimit: 0.7,
				},
				NightMode: NightWindow{
					Enabled:      true,
					Start:        "22:00",
					End:          "06:00",
					ReducedLimit: 0.3,
				},
				WeekendMode: WeekendRestriction{
					Enabled:      true,
					ReducedLimit: 0.8,
				},
			},
			GeographicSimulation: GeographicSimulation{
				HolidayMode: HolidayMode{
					Enabled: true,
					Holidays: []Holiday{
						{Month: time.January, Day: 1},
						{Month: time.April, Day: 13},
						{Month: time.May, Day: 5},
						{Month: time.December, Day: 10},
						{Month: time.December, Day: 31},
					},
					ReducedLimit: 0.5,
				},
			},
			BehavioralPatterns: BehavioralPatterns{
				HumanLikeDelays: HumanLikeDelays{
					Enabled:  true,
					Typing:   DelayRange{MinMs: 500, MaxMs: 2000},
					Reading:  DelayRange{MinMs: 1000, MaxMs: 3000},
					Thinking: DelayRange{MinMs: 2000, MaxMs: 5000},
				},
				SessionBreaks: SessionBreaks{
					Enabled:          true,
					BreakProbability: 0.1,
					MinBreakMinutes:  5,
					MaxBreakMinutes:  15,
				},
			},
			RandomDelays: RandomDelays{
				Enabled:    true,
				MinSeconds: 15,
				MaxSeconds: 45,
			},
		},
	}
}
