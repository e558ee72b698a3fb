// Package lifecycle owns the prediction state machine and the time-driven
// evaluation rules that advance it.
package lifecycle

import (
	"time"

	"github.com/civant/procure-intel/internal/model"
)

// allowed maps each state to its legal outgoing transitions. Hit, Miss and
// Withdrawn are terminal. Withdrawn is reachable from every other state via
// the explicit withdraw command.
var allowed = map[model.PredictionStatus]map[model.PredictionStatus]bool{
	model.StatusDraft: {
		model.StatusPublished:   true,
		model.StatusNeedsReview: true,
		model.StatusWithdrawn:   true,
	},
	model.StatusPublished: {
		model.StatusMonitoring:  true,
		model.StatusHit:         true, // early re-tender landing within slack
		model.StatusNeedsReview: true,
		model.StatusWithdrawn:   true,
	},
	model.StatusMonitoring: {
		model.StatusHit:         true,
		model.StatusMiss:        true,
		model.StatusNeedsReview: true,
		model.StatusWithdrawn:   true,
	},
	model.StatusNeedsReview: {
		model.StatusMonitoring: true, // adjudicated: resume watching
		model.StatusHit:        true,
		model.StatusMiss:       true,
		model.StatusWithdrawn:  true,
	},
	model.StatusHit:       {model.StatusWithdrawn: true},
	model.StatusMiss:      {model.StatusWithdrawn: true},
	model.StatusWithdrawn: {},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to model.PredictionStatus) bool {
	return allowed[from][to]
}

// Transition validates from -> to, returning a LifecycleError for illegal
// moves. The caller persists nothing on error; audit logging of the rejected
// attempt is the caller's responsibility.
func Transition(from, to model.PredictionStatus) error {
	if !from.Valid() || !to.Valid() {
		return &model.LifecycleError{From: from, To: to}
	}
	if !CanTransition(from, to) {
		return &model.LifecycleError{From: from, To: to}
	}
	return nil
}

// Config holds the externally supplied lifecycle tuning. None of these are
// hardcoded in the evaluation logic.
type Config struct {
	// PublishThreshold is the minimum confidence for Draft -> Published.
	PublishThreshold float64
	// GraceDays extends the window end before a Miss is declared.
	GraceDays int
	// SlackDays widens the hit window on both sides when matching a notice
	// publication date.
	SlackDays int
}

// Grace returns the grace period as a duration.
func (c Config) Grace() time.Duration {
	return time.Duration(c.GraceDays) * 24 * time.Hour
}

// Slack returns the hit-window slack as a duration.
func (c Config) Slack() time.Duration {
	return time.Duration(c.SlackDays) * 24 * time.Hour
}

// InHitWindow reports whether a notice published at publishedAt falls within
// [window_start - slack, window_end + slack].
func InHitWindow(p *model.Prediction, publishedAt time.Time, cfg Config) bool {
	if p.WindowStart.IsZero() || p.WindowEnd.IsZero() {
		return false
	}
	lo := p.WindowStart.Add(-cfg.Slack())
	hi := p.WindowEnd.Add(cfg.Slack())
	return !publishedAt.Before(lo) && !publishedAt.After(hi)
}

// Evaluate returns the next status a prediction should move to based on the
// clock and its confidence, or the current status when nothing is due. Only
// time/score driven transitions are evaluated here; reconciliation-driven
// transitions (Hit, NeedsReview) and the withdraw command go through
// Transition directly.
func Evaluate(p *model.Prediction, now time.Time, cfg Config) model.PredictionStatus {
	switch p.Status {
	case model.StatusDraft:
		if p.Confidence >= cfg.PublishThreshold && p.WindowStart.After(now) {
			return model.StatusPublished
		}
	case model.StatusPublished:
		if !p.WindowStart.After(now) {
			return model.StatusMonitoring
		}
	case model.StatusMonitoring:
		if now.After(p.WindowEnd.Add(cfg.Grace())) {
			return model.StatusMiss
		}
	}
	return p.Status
}
