// Package watcher drives batches of account checks through the
// protection gate, one account at a time, with human-like pacing.
package watcher

import (
	"context"
	"math/rand"
	"time"

	apperrors "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/protection"
	"igmonitor/pkg/schedule"
)

// Result is the outcome of checking one account. Privacy checks fill
// IsPrivate, story checks fill HasNewStories and StoryCount; failed
// checks carry only Error.
type Result struct {
	Username      string    `json:"username"`
	FullName      string    `json:"fullName,omitempty"`
	IsPrivate     *bool     `json:"isPrivate,omitempty"`
	HasNewStories *bool     `json:"hasNewStories,omitempty"`
	StoryCount    int       `json:"storyCount,omitempty"`
	CheckedAt     time.Time `json:"checkedAt"`
	Error         string    `json:"error,omitempty"`
}

// AccountCheck is one kind of account check, dispatched by task type.
type AccountCheck interface {
	Type() schedule.TaskType
	Check(ctx context.Context, username string) (*Result, error)
}

// Gate is the admission-control surface the sequencer consults.
// *protection.Gate implements it.
type Gate interface {
	CanCheck() protection.Decision
	RecordCheck(success bool, responseTime time.Duration)
	RecordError(message string)
	DelayProfile() (protection.BehavioralPatterns, protection.RandomDelays)
}

// BatchSummary aggregates a sequencer run. Results holds every per-item
// entry in input order, ValidResults only the successes.
type BatchSummary struct {
	Results      []*Result `json:"results"`
	ValidResults []*Result `json:"-"`
	Errors       []*Result `json:"-"`
	TotalChecked int       `json:"totalChecked"`
	SuccessCount int       `json:"successCount"`
	ErrorCount   int       `json:"errorCount"`
	Stopped      bool      `json:"stopped,omitempty"`
	StopReason   string    `json:"stopReason,omitempty"`

	// CriticalError holds the first upstream error classified as
	// critical, empty otherwise.
	CriticalError string `json:"-"`
}

// errorPenalty is the extra pause after a hard per-account failure.
const errorPenalty = 120 * time.Second

// Sequencer runs account checks strictly sequentially. Concurrency
// across accounts is deliberately unsupported: it would defeat the
// rate-limiting semantics the gate enforces.
type Sequencer struct {
	gate    Gate
	log     logger.Logger
	timeout time.Duration

	sleep     func(ctx context.Context, d time.Duration)
	randFloat func() float64
	randRange func(min, max int) int
}

// NewSequencer wires a sequencer to its gate. timeout bounds each
// upstream check; zero disables the bound.
func NewSequencer(gate Gate, timeout time.Duration, log logger.Logger) *Sequencer {
	return &Sequencer{
		gate:      gate,
		log:       log,
		timeout:   timeout,
		sleep:     sleepCtx,
		randFloat: rand.Float64,
		randRange: randRange,
	}
}

// Run checks usernames in order. A gate denial before the first account
// is returned as a quota error; a denial mid-batch stops early and the
// partial summary is returned without error. Per-account failures never
// abort the batch.
func (s *Sequencer) Run(ctx context.Context, usernames []string, check AccountCheck) (*BatchSummary, error) {
	dec := s.gate.CanCheck()
	if !dec.Allowed {
		return nil, apperrors.New(apperrors.ErrorTypeQuotaDenied, dec.Reason)
	}

	behaviors, interDelays := s.gate.DelayProfile()
	summary := &BatchSummary{}

	for i, username := range usernames {
		if ctx.Err() != nil {
			summary.Stopped = true
			summary.StopReason = ctx.Err().Error()
			break
		}
		if i > 0 {
			dec := s.gate.CanCheck()
			if !dec.Allowed {
				summary.Stopped = true
				summary.StopReason = dec.Reason
				s.log.WithFields(map[string]interface{}{
					"reason":    dec.Reason,
					"processed": summary.TotalChecked,
					"remaining": len(usernames) - i,
				}).Info("Stopping batch early, gate denied")
				break
			}
		}

		s.humanDelay(ctx, behaviors.HumanLikeDelays)

		res, elapsed, err := s.checkOne(ctx, check, username)
		summary.TotalChecked++
		switch {
		case err != nil:
			msg := err.Error()
			s.gate.RecordError(msg)
			if summary.CriticalError == "" && apperrors.TypeOf(err) == apperrors.ErrorTypeCriticalUpstream {
				summary.CriticalError = msg
			}
			entry := &Result{Username: username, Error: msg, CheckedAt: time.Now()}
			summary.Results = append(summary.Results, entry)
			summary.Errors = append(summary.Errors, entry)
			summary.ErrorCount++
			s.log.WithFields(map[string]interface{}{
				"username": username,
				"error":    msg,
			}).Warn("Account check failed")
			s.sleep(ctx, errorPenalty)
		case res.Error != "":
			s.gate.RecordError(res.Error)
			summary.Results = append(summary.Results, res)
			summary.Errors = append(summary.Errors, res)
			summary.ErrorCount++
		default:
			s.gate.RecordCheck(true, elapsed)
			summary.Results = append(summary.Results, res)
			summary.ValidResults = append(summary.ValidResults, res)
			summary.SuccessCount++
		}

		if i < len(usernames)-1 {
			s.interItemDelay(ctx, interDelays)
		}
		s.maybeSessionBreak(ctx, behaviors.SessionBreaks)
	}

	return summary, nil
}

// checkOne invokes the check under the configured timeout, measuring
// wall-clock elapsed time.
func (s *Sequencer) checkOne(ctx context.Context, check AccountCheck, username string) (*Result, time.Duration, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := check.Check(ctx, username)
	return res, time.Since(start), err
}

// humanDelay simulates typing, reading and thinking before a check: three
// independently drawn pauses, summed.
func (s *Sequencer) humanDelay(ctx context.Context, cfg protection.HumanLikeDelays) {
	if !cfg.Enabled {
		return
	}
	totalMs := s.randRange(cfg.Typing.MinMs, cfg.Typing.MaxMs) +
		s.randRange(cfg.Reading.MinMs, cfg.Reading.MaxMs) +
		s.randRange(cfg.Thinking.MinMs, cfg.Thinking.MaxMs)
	s.sleep(ctx, time.Duration(totalMs)*time.Millisecond)
}

func (s *Sequencer) interItemDelay(ctx context.Context, cfg protection.RandomDelays) {
	if !cfg.Enabled {
		return
	}
	seconds := s.randRange(cfg.MinSeconds, cfg.MaxSeconds)
	s.sleep(ctx, time.Duration(seconds)*time.Second)
}

func (s *Sequencer) maybeSessionBreak(ctx context.Context, cfg protection.SessionBreaks) {
	if !cfg.Enabled || s.randFloat() >= cfg.BreakProbability {
		return
	}
	minutes := s.randRange(cfg.MinBreakMinutes, cfg.MaxBreakMinutes)
	s.log.WithField("minutes", minutes).Info("Taking a session break")
	s.sleep(ctx, time.Duration(minutes)*time.Minute)
}

func randRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.Intn(max-min+1)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
