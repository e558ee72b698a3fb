package model

import "time"

// PredictionStatus is the lifecycle state of a prediction.
type PredictionStatus string

const (
	StatusDraft       PredictionStatus = "Draft"
	StatusPublished   PredictionStatus = "Published"
	StatusMonitoring  PredictionStatus = "Monitoring"
	StatusHit         PredictionStatus = "Hit"
	StatusMiss        PredictionStatus = "Miss"
	StatusWithdrawn   PredictionStatus = "Withdrawn"
	StatusNeedsReview PredictionStatus = "NeedsReview"
)

// Valid reports whether the status is a known lifecycle state.
func (s PredictionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusMonitoring, StatusHit,
		StatusMiss, StatusWithdrawn, StatusNeedsReview:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s PredictionStatus) Terminal() bool {
	switch s {
	case StatusHit, StatusMiss, StatusWithdrawn:
		return true
	}
	return false
}

// SubScores is the six-term decomposition behind a prediction's confidence.
// Each component is clamped to its documented range before summing.
type SubScores struct {
	Cycle       float64 `json:"cycle"`       // [0,25]
	Timing      float64 `json:"timing"`      // [0,15]
	Behavioural float64 `json:"behavioural"` // [0,15]
	Structural  float64 `json:"structural"`  // [0,10]
	External    float64 `json:"external"`    // [0,25], capped at 18 without non-external support
	Quality     float64 `json:"quality"`     // [0,20]
}

// Prediction is the current best forecast for one (tenant, buyer, cluster)
// pair. One logical row per pair; recomputes overwrite it and append a
// history row.
type Prediction struct {
	TenantID     string           `json:"tenant_id"`
	PredictionID string           `json:"prediction_id"`
	BuyerID      string           `json:"buyer_id"`
	CPVClusterID string           `json:"cpv_cluster_id"`
	WindowStart  time.Time        `json:"predicted_window_start"`
	WindowEnd    time.Time        `json:"predicted_window_end"`
	Confidence   float64          `json:"confidence"` // [0,100]
	SubScores    SubScores        `json:"sub_scores"`
	Status       PredictionStatus `json:"status"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Version      int64            `json:"version"` // optimistic concurrency token
}

// CycleHistoryRow is one scoring run appended to the per-pair history log.
// Rows are never deleted; they feed cycle-trend reporting and backfills.
type CycleHistoryRow struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	PredictionID string    `json:"prediction_id"`
	BuyerID      string    `json:"buyer_id"`
	CPVClusterID string    `json:"cpv_cluster_id"`
	WindowStart  time.Time `json:"predicted_window_start"`
	WindowEnd    time.Time `json:"predicted_window_end"`
	Confidence   float64   `json:"confidence"`
	SubScores    SubScores `json:"sub_scores"`
	ScoredAt     time.Time `json:"scored_at"`
}
