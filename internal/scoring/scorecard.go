package scoring

import (
	"math"

	"github.com/civant/procure-intel/internal/model"
)

// Sub-score ceilings. Structural and the external cap are contractual; the
// rest bound each component so the clamped total stays in [0,100].
const (
	maxCycleScore       = 25
	maxTimingScore      = 15
	maxBehaviouralScore = 15
	maxStructuralScore  = 10
	maxExternalScore    = 25
	maxQualityScore     = 20
)

// ScorecardConfig tunes the prediction-specific composite. Values come from
// deployment configuration, not constants in the engine.
type ScorecardConfig struct {
	// ExternalCap limits the external sub-score when no other sub-score
	// corroborates the external evidence.
	ExternalCap float64
	// SupportThreshold is the minimum cycle+timing+behavioural sum that
	// counts as non-external support and lifts the external cap.
	SupportThreshold float64
	// TimingHorizonDays is the distance at which timing proximity decays
	// to zero.
	TimingHorizonDays float64
}

// DefaultScorecardConfig returns the production defaults.
func DefaultScorecardConfig() ScorecardConfig {
	return ScorecardConfig{
		ExternalCap:       18,
		SupportThreshold:  10,
		TimingHorizonDays: 365,
	}
}

// CycleStats summarize the observed re-tender cadence for a pair. Zero
// AvgCycleDays means no cycle could be established.
type CycleStats struct {
	EventCount24M       int     `json:"event_count_24m"`
	AvgCycleDays        float64 `json:"avg_cycle_days"`
	CycleRegularity     float64 `json:"cycle_regularity"`      // [0,1]
	ValueStabilityScore float64 `json:"value_stability_score"` // [0,1]
}

// EvidenceRollup is the aggregated external evidence for a pair, as produced
// by the evidence aggregator. A zero value means no matching signals.
type EvidenceRollup struct {
	SignalCount       int     `json:"signal_count"`
	MeanStrength      float64 `json:"mean_strength"`
	MeanSourceQuality float64 `json:"mean_source_quality"`
	Agreement         float64 `json:"agreement"`
}

// PairInputs carry everything the scorecard needs for one pair.
type PairInputs struct {
	Stats    CycleStats
	Evidence EvidenceRollup
	// DaysToWindowStart is signed: negative once the predicted window has
	// opened.
	DaysToWindowStart float64
	Completeness      float64 // [0,1]
	DedupeQuality     float64 // [0,1]
	RecurringPattern  bool    // annual / maintenance style cadence detected
	FrameworkPattern  bool    // framework / panel / DPS contract detected
}

// Scorecard is the six-term decomposition plus the clamped total.
type Scorecard struct {
	SubScores  model.SubScores `json:"sub_scores"`
	TotalScore float64         `json:"total_score"` // [0,100]
	// CapApplied records whether the external cap limited the external
	// sub-score, for the evidence trail.
	CapApplied bool `json:"cap_applied"`
}

// ComputeScorecard evaluates the prediction composite for one pair.
// Non-finite inputs fail fast; absent evidence scores conservatively.
func ComputeScorecard(in PairInputs, cfg ScorecardConfig) (Scorecard, error) {
	checks := []struct {
		name string
		v    float64
	}{
		{"avg_cycle_days", in.Stats.AvgCycleDays},
		{"cycle_regularity", in.Stats.CycleRegularity},
		{"value_stability_score", in.Stats.ValueStabilityScore},
		{"mean_strength", in.Evidence.MeanStrength},
		{"mean_source_quality", in.Evidence.MeanSourceQuality},
		{"agreement", in.Evidence.Agreement},
		{"days_to_window_start", in.DaysToWindowStart},
		{"completeness", in.Completeness},
		{"dedupe_quality", in.DedupeQuality},
	}
	for _, c := range checks {
		if err := finite(c.name, c.v); err != nil {
			return Scorecard{}, err
		}
	}

	cycle := scoreCycle(in.Stats)
	timing := scoreTiming(in, cfg)
	behavioural := scoreBehavioural(in)
	structural := scoreStructural(in.Stats.ValueStabilityScore)
	quality := scoreQuality(in.Completeness, in.DedupeQuality)

	external := scoreExternal(in.Evidence)
	capApplied := false
	if cycle+timing+behavioural < cfg.SupportThreshold && external > cfg.ExternalCap {
		external = cfg.ExternalCap
		capApplied = true
	}

	total := cycle + timing + behavioural + structural + external + quality
	sc := Scorecard{
		SubScores: model.SubScores{
			Cycle:       cycle,
			Timing:      timing,
			Behavioural: behavioural,
			Structural:  structural,
			External:    external,
			Quality:     quality,
		},
		TotalScore: clamp(round2(total), 0, 100),
		CapApplied: capApplied,
	}
	return sc, nil
}

// scoreCycle rewards an established, regular re-tender cadence. Pairs with
// fewer than two events cannot have a cycle and score 0.
func scoreCycle(stats CycleStats) float64 {
	if stats.AvgCycleDays <= 0 || stats.EventCount24M < 2 {
		return 0
	}
	countFactor := clamp(float64(stats.EventCount24M)/4, 0, 1)
	regularity := clamp(stats.CycleRegularity, 0, 1)
	return clamp(round2(maxCycleScore*regularity*countFactor), 0, maxCycleScore)
}

// scoreTiming rewards proximity of the scoring time to the predicted window
// start, decaying linearly to zero over the horizon. Without a cycle there
// is no window and timing scores 0.
func scoreTiming(in PairInputs, cfg ScorecardConfig) float64 {
	if in.Stats.AvgCycleDays <= 0 {
		return 0
	}
	horizon := cfg.TimingHorizonDays
	if horizon <= 0 {
		horizon = 365
	}
	proximity := clamp(1-math.Abs(in.DaysToWindowStart)/horizon, 0, 1)
	return clamp(round2(maxTimingScore*proximity), 0, maxTimingScore)
}

// scoreBehavioural rewards named buyer behaviour patterns. Recurring service
// cadence is the stronger indicator.
func scoreBehavioural(in PairInputs) float64 {
	var score float64
	if in.RecurringPattern {
		score += 8
	}
	if in.FrameworkPattern {
		score += 7
	}
	return clamp(score, 0, maxBehaviouralScore)
}

// scoreStructural derives contract stability from the value-stability
// statistic: clamp(0,10, round(10 x value_stability)).
func scoreStructural(valueStability float64) float64 {
	return clamp(math.Round(10*clamp(valueStability, 0, 1)), 0, maxStructuralScore)
}

// scoreExternal converts the evidence roll-up into the uncapped external
// sub-score. Zero matching signals score 0, never an error.
func scoreExternal(ev EvidenceRollup) float64 {
	if ev.SignalCount == 0 {
		return 0
	}
	strength := clamp(ev.MeanStrength, 0, 1)
	sourceQuality := clamp(ev.MeanSourceQuality, 0, 1)
	agreement := clamp(ev.Agreement, 0, 1)
	countFactor := clamp(float64(ev.SignalCount)/3, 0, 1)
	base := (strength*0.5 + sourceQuality*0.3 + agreement*0.2) * maxExternalScore * countFactor
	return clamp(round2(base), 0, maxExternalScore)
}

// scoreQuality measures data hygiene for the pair.
func scoreQuality(completeness, dedupeQuality float64) float64 {
	c := clamp(completeness, 0, 1)
	d := clamp(dedupeQuality, 0, 1)
	return clamp(round2(maxQualityScore*(c*0.6+d*0.4)), 0, maxQualityScore)
}
