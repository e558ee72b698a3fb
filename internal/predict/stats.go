// Package predict turns a pair's signal history into a scored, lifecycle
// managed prediction.
package predict

import (
	"math"
	"sort"
	"time"

	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/scoring"
)

const (
	// minGapDays and maxGapDays bound plausible re-tender gaps; anything
	// outside is treated as noise (duplicate loads, decade-old records).
	minGapDays = 1
	maxGapDays = 2555

	recencyWindowMonths = 24
)

// PairHistory is the derived view of a pair's full signal history.
type PairHistory struct {
	Stats scoring.CycleStats
	// LastEventAt anchors window derivation; zero when there is no history.
	LastEventAt time.Time
	// FirstEventAt bounds the observed history span.
	FirstEventAt time.Time
	// DedupeQuality is the fraction of raw events that survived same-day
	// deduplication.
	DedupeQuality float64
	// Completeness is the mean field coverage of the raw signals.
	Completeness float64
	// RecurringPattern is set when the cadence looks annual or shorter.
	RecurringPattern bool
	// FrameworkPattern is set when framework expiries or renewals appear in
	// the history.
	FrameworkPattern bool
}

// ComputeHistory derives cycle statistics from a pair's signals. Events on
// the same day collapse to one; gaps outside [1, 2555] days are discarded.
func ComputeHistory(signals []model.Signal, asOf time.Time) PairHistory {
	if len(signals) == 0 {
		return PairHistory{}
	}

	seen := map[string]bool{}
	var days []time.Time
	for _, s := range signals {
		d := s.OccurredAt.UTC().Truncate(24 * time.Hour)
		key := d.Format("2006-01-02")
		if !seen[key] {
			seen[key] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	h := PairHistory{
		FirstEventAt:  days[0],
		LastEventAt:   days[len(days)-1],
		DedupeQuality: float64(len(days)) / float64(len(signals)),
		Completeness:  meanCompleteness(signals),
	}

	cutoff := asOf.AddDate(0, -recencyWindowMonths, 0)
	for _, d := range days {
		if !d.Before(cutoff) && !d.After(asOf) {
			h.Stats.EventCount24M++
		}
	}

	var gaps []float64
	for i := 1; i < len(days); i++ {
		gap := days[i].Sub(days[i-1]).Hours() / 24
		if gap >= minGapDays && gap <= maxGapDays {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) > 0 {
		avg := meanOf(gaps)
		h.Stats.AvgCycleDays = avg
		h.Stats.CycleRegularity = regularity(gaps, avg)
		h.RecurringPattern = avg <= 400 && h.Stats.CycleRegularity >= 0.5
	}

	h.Stats.ValueStabilityScore = valueStability(signals)

	for _, s := range signals {
		if s.SignalType == model.SignalFrameworkExpiry || s.SignalType == model.SignalContractRenewal {
			h.FrameworkPattern = true
			break
		}
	}
	return h
}

// regularity maps the coefficient of variation of gap lengths to [0,1]:
// perfectly even cadence scores 1, chaotic cadence approaches 0.
func regularity(gaps []float64, avg float64) float64 {
	if len(gaps) < 2 || avg <= 0 {
		// A single gap gives no spread to judge; score it middling.
		return 0.5
	}
	var sum float64
	for _, g := range gaps {
		d := g - avg
		sum += d * d
	}
	sd := math.Sqrt(sum / float64(len(gaps)))
	cv := sd / avg
	if cv > 1 {
		cv = 1
	}
	return 1 - cv
}

// valueStability scores how consistent the pair's contract values are.
// Without at least two priced events it stays neutral.
func valueStability(signals []model.Signal) float64 {
	var values []float64
	for _, s := range signals {
		if s.ValueEUR > 0 {
			values = append(values, s.ValueEUR)
		}
	}
	if len(values) < 2 {
		return 0.5
	}
	avg := meanOf(values)
	var sum float64
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	cv := math.Sqrt(sum/float64(len(values))) / avg
	if cv > 1 {
		cv = 1
	}
	return 1 - cv
}

func meanCompleteness(signals []model.Signal) float64 {
	var total float64
	for _, s := range signals {
		populated := 2.0 // buyer and occurrence date are mandatory
		if s.CPVClusterID != "" && s.CPVClusterID != model.ClusterUnknown {
			populated++
		}
		if s.ValueEUR > 0 {
			populated++
		}
		if s.Region != "" {
			populated++
		}
		total += populated / 5
	}
	return total / float64(len(signals))
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// DeriveWindow projects the next expected tender window from the history.
// The window centres on the last event plus the average cycle; irregular
// cadences widen it. No established cycle yields a zero window.
func DeriveWindow(h PairHistory) (start, end time.Time) {
	if h.Stats.AvgCycleDays <= 0 || h.LastEventAt.IsZero() {
		return time.Time{}, time.Time{}
	}
	centre := h.LastEventAt.AddDate(0, 0, int(math.Round(h.Stats.AvgCycleDays)))
	halfDays := 14 + (1-h.Stats.CycleRegularity)*76
	half := time.Duration(halfDays*24) * time.Hour
	return centre.Add(-half), centre.Add(half)
}
