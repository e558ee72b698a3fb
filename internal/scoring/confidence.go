// Package scoring implements the deterministic confidence engines: the
// generic data/signal/model confidence breakdown and the six-term prediction
// scorecard. Both are pure functions over validated inputs.
package scoring

import (
	"math"

	"github.com/civant/procure-intel/internal/model"
)

// DataInputs describe the quality of the underlying notice history for a
// (buyer, cluster) pair.
type DataInputs struct {
	Completeness       float64 `json:"completeness"`         // [0,1]
	RecencyDays        float64 `json:"recency_days"`         // days since most recent event
	HistoryLengthWeeks float64 `json:"history_length_weeks"` // observed history span
	DedupeQuality      float64 `json:"dedupe_quality"`       // [0,1]
}

// SignalObservation is one external signal's contribution to confidence.
type SignalObservation struct {
	Strength      float64 `json:"strength"`       // [0,1]
	SourceQuality float64 `json:"source_quality"` // [0,1]
}

// SignalInputs describe the external evidence available for the pair.
type SignalInputs struct {
	Signals   []SignalObservation `json:"signals"`
	Agreement float64             `json:"agreement"` // [0,1], fraction pointing the same way
}

// ModelInputs describe how well the forecasting model itself is behaving.
type ModelInputs struct {
	Calibration float64 `json:"calibration"` // [0,1]
	Variance    float64 `json:"variance"`    // [0,1], lower is better
	Stability   float64 `json:"stability"`   // [0,1]
}

// ConfidenceBreakdown is the decomposed result of ComputeConfidence.
// OverallConfidence always equals the 2-dp rounded sum of the three
// components, clamped to [0,100].
type ConfidenceBreakdown struct {
	DataConfidence    float64  `json:"data_confidence"`    // [0,40]
	SignalConfidence  float64  `json:"signal_confidence"`  // [0,30]
	ModelConfidence   float64  `json:"model_confidence"`   // [0,30]
	OverallConfidence float64  `json:"overall_confidence"` // [0,100]
	Drivers           []string `json:"drivers,omitempty"`
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// finite rejects NaN and ±Inf, the only malformed shapes a float input can
// take once it has passed JSON/SQL decoding.
func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &model.ValidationError{Field: name, Reason: "must be a finite number"}
	}
	return nil
}

// ScoreDataConfidence returns the data sub-score in [0,40]: weighted sum of
// completeness (x14), recency decay over 180 days (x10), history length up
// to 52 weeks (x8) and dedupe quality (x8). Each weighted term is clamped to
// [0,1] before multiplication, so adversarial inputs (negative recency,
// completeness above 1) stay bounded.
func ScoreDataConfidence(in DataInputs) float64 {
	completeness := clamp(in.Completeness, 0, 1) * 14
	recency := clamp(1-in.RecencyDays/180, 0, 1) * 10
	history := clamp(in.HistoryLengthWeeks/52, 0, 1) * 8
	dedupe := clamp(in.DedupeQuality, 0, 1) * 8
	return clamp(round2(completeness+recency+history+dedupe), 0, 40)
}

// ScoreSignalConfidence returns the signal sub-score in [0,30]. Zero signals
// score 0; callers must not treat "no evidence" as an error.
func ScoreSignalConfidence(in SignalInputs) float64 {
	if len(in.Signals) == 0 {
		return 0
	}
	strengths := make([]float64, len(in.Signals))
	qualities := make([]float64, len(in.Signals))
	for i, s := range in.Signals {
		strengths[i] = clamp(s.Strength, 0, 1)
		qualities[i] = clamp(s.SourceQuality, 0, 1)
	}
	agreement := clamp(in.Agreement, 0, 1)
	total := (mean(strengths)*0.45 + mean(qualities)*0.35 + agreement*0.20) * 30
	return clamp(round2(total), 0, 30)
}

// ScoreModelConfidence returns the model sub-score in [0,30].
func ScoreModelConfidence(in ModelInputs) float64 {
	calibration := clamp(in.Calibration, 0, 1)
	varianceQuality := 1 - clamp(in.Variance, 0, 1)
	stability := clamp(in.Stability, 0, 1)
	total := (calibration*0.5 + varianceQuality*0.25 + stability*0.25) * 30
	return clamp(round2(total), 0, 30)
}

// ComputeConfidence combines the three sub-scores into the overall
// confidence. Missing optional inputs default to their lowest-scoring value
// through clamping; non-finite required inputs fail fast.
func ComputeConfidence(data DataInputs, signals SignalInputs, mdl ModelInputs, drivers []string) (ConfidenceBreakdown, error) {
	checks := []struct {
		name string
		v    float64
	}{
		{"completeness", data.Completeness},
		{"recency_days", data.RecencyDays},
		{"history_length_weeks", data.HistoryLengthWeeks},
		{"dedupe_quality", data.DedupeQuality},
		{"agreement", signals.Agreement},
		{"calibration", mdl.Calibration},
		{"variance", mdl.Variance},
		{"stability", mdl.Stability},
	}
	for _, c := range checks {
		if err := finite(c.name, c.v); err != nil {
			return ConfidenceBreakdown{}, err
		}
	}
	for _, s := range signals.Signals {
		if err := finite("signals.strength", s.Strength); err != nil {
			return ConfidenceBreakdown{}, err
		}
		if err := finite("signals.source_quality", s.SourceQuality); err != nil {
			return ConfidenceBreakdown{}, err
		}
	}

	b := ConfidenceBreakdown{
		DataConfidence:   ScoreDataConfidence(data),
		SignalConfidence: ScoreSignalConfidence(signals),
		ModelConfidence:  ScoreModelConfidence(mdl),
		Drivers:          drivers,
	}
	b.OverallConfidence = clamp(round2(b.DataConfidence+b.SignalConfidence+b.ModelConfidence), 0, 100)
	return b, nil
}
