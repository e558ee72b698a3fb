package predict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/evidence"
	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/lifecycle"
	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/resilience"
	"github.com/civant/procure-intel/internal/scoring"
	"github.com/civant/procure-intel/internal/store"
)

// historyYears bounds how far back cycle derivation looks. Gaps longer than
// maxGapDays are discarded anyway, so older signals cannot contribute.
const historyYears = 7

// Params collects the engine's tunables.
type Params struct {
	Scorecard        scoring.ScorecardConfig
	Lifecycle        lifecycle.Config
	Retry            resilience.RetryConfig
	BatchConcurrency int
	BatchRatePerSec  float64
}

// Engine recomputes predictions for buyer/cluster pairs.
type Engine struct {
	store  store.Store
	agg    *evidence.Aggregator
	params Params
	log    *zap.Logger
	now    func() time.Time
}

func NewEngine(s store.Store, agg *evidence.Aggregator, params Params) *Engine {
	if params.BatchConcurrency <= 0 {
		params.BatchConcurrency = 8
	}
	if params.BatchRatePerSec <= 0 {
		params.BatchRatePerSec = 50
	}
	return &Engine{
		store:  s,
		agg:    agg,
		params: params,
		log:    zap.L().Named("predict"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecomputePair rescores one pair from its full signal history and moves the
// stored prediction through any due lifecycle transition. Terminal
// predictions are left untouched. Version conflicts with concurrent writers
// are retried with fresh reads.
func (e *Engine) RecomputePair(ctx context.Context, tenantID, buyerID, clusterID string) (*model.Prediction, error) {
	if err := guard.Require(ctx, tenantID); err != nil {
		return nil, err
	}
	asOf := e.now()

	history, err := e.store.ListSignals(ctx, tenantID, buyerID, asOf.AddDate(-historyYears, 0, 0))
	if err != nil {
		return nil, err
	}
	if err := guard.VerifyRows(ctx, history, func(s model.Signal) string { return s.TenantID }); err != nil {
		return nil, err
	}
	pairSignals := filterPair(history, clusterID)

	ev, err := e.agg.Collect(ctx, tenantID, buyerID, clusterID, asOf)
	if err != nil {
		return nil, err
	}

	h := ComputeHistory(pairSignals, asOf)
	windowStart, windowEnd := DeriveWindow(h)

	daysToStart := 0.0
	if !windowStart.IsZero() {
		daysToStart = windowStart.Sub(asOf).Hours() / 24
	}
	in := scoring.PairInputs{
		Stats:             h.Stats,
		Evidence:          ev.Rollup,
		DaysToWindowStart: daysToStart,
		Completeness:      h.Completeness,
		DedupeQuality:     h.DedupeQuality,
		RecurringPattern:  h.RecurringPattern,
		FrameworkPattern:  h.FrameworkPattern,
	}
	card, err := scoring.ComputeScorecard(in, e.params.Scorecard)
	if err != nil {
		return nil, err
	}

	breakdown, err := e.genericBreakdown(h, ev, card, asOf)
	if err != nil {
		return nil, err
	}
	e.log.Debug("pair rescored",
		zap.String("tenant_id", tenantID),
		zap.String("buyer_id", buyerID),
		zap.String("cluster_id", clusterID),
		zap.Float64("total_score", card.TotalScore),
		zap.Float64("data_confidence", breakdown.DataConfidence),
		zap.Float64("signal_confidence", breakdown.SignalConfidence),
		zap.Float64("model_confidence", breakdown.ModelConfidence),
		zap.Strings("drivers", breakdown.Drivers),
		zap.Bool("external_cap_applied", card.CapApplied))

	upsert := func(ctx context.Context) (*model.Prediction, error) {
		existing, err := e.store.GetPrediction(ctx, tenantID, buyerID, clusterID)
		if err != nil {
			return nil, err
		}

		p := model.Prediction{
			TenantID:     tenantID,
			BuyerID:      buyerID,
			CPVClusterID: clusterID,
			WindowStart:  windowStart,
			WindowEnd:    windowEnd,
			Confidence:   card.TotalScore,
			SubScores:    card.SubScores,
			Status:       model.StatusDraft,
			GeneratedAt:  asOf,
		}
		var expected int64
		if existing != nil {
			if existing.Status.Terminal() {
				return existing, nil
			}
			expected = existing.Version
			p.PredictionID = existing.PredictionID
			p.Status = existing.Status
		}
		p.Status = lifecycle.Evaluate(&p, asOf, e.params.Lifecycle)

		return e.store.UpsertPrediction(ctx, p, expected)
	}

	cfg := e.params.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("predict", "upsert prediction")
	}
	return resilience.DoVal(ctx, cfg, upsert)
}

// genericBreakdown computes the data/signal/model decomposition for the
// evidence trail. It never feeds the stored confidence; the scorecard does.
func (e *Engine) genericBreakdown(h PairHistory, ev evidence.Evidence, card scoring.Scorecard, asOf time.Time) (scoring.ConfidenceBreakdown, error) {
	data := scoring.DataInputs{
		Completeness:  h.Completeness,
		DedupeQuality: h.DedupeQuality,
	}
	if !h.LastEventAt.IsZero() {
		data.RecencyDays = asOf.Sub(h.LastEventAt).Hours() / 24
		data.HistoryLengthWeeks = h.LastEventAt.Sub(h.FirstEventAt).Hours() / (24 * 7)
	}

	obs := make([]scoring.SignalObservation, 0, len(ev.Signals))
	for _, s := range ev.Signals {
		obs = append(obs, scoring.SignalObservation{Strength: s.SignalStrength, SourceQuality: s.SourceQuality})
	}
	signals := scoring.SignalInputs{Signals: obs, Agreement: ev.Rollup.Agreement}

	mdl := scoring.ModelInputs{
		Calibration: h.Stats.CycleRegularity,
		Variance:    1 - h.Stats.CycleRegularity,
		Stability:   h.Stats.ValueStabilityScore,
	}
	return scoring.ComputeConfidence(data, signals, mdl, topDrivers(card.SubScores))
}

// topDrivers names the two largest sub-scores.
func topDrivers(s model.SubScores) []string {
	type scored struct {
		name  string
		value float64
	}
	all := []scored{
		{"cycle", s.Cycle},
		{"timing", s.Timing},
		{"behavioural", s.Behavioural},
		{"structural", s.Structural},
		{"external", s.External},
		{"quality", s.Quality},
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].value > all[j].value })
	drivers := []string{}
	for _, d := range all[:2] {
		if d.value > 0 {
			drivers = append(drivers, d.name)
		}
	}
	return drivers
}

// filterPair applies the per-type cluster matching rules: buyer-level types
// span all clusters, unclustered signals count everywhere, the rest need an
// exact match.
func filterPair(signals []model.Signal, clusterID string) []model.Signal {
	var out []model.Signal
	for _, s := range signals {
		switch {
		case s.SignalType.BuyerLevel():
			out = append(out, s)
		case s.CPVClusterID == "" || s.CPVClusterID == model.ClusterUnknown:
			out = append(out, s)
		case s.CPVClusterID == clusterID:
			out = append(out, s)
		}
	}
	return out
}

// Withdraw moves a prediction to Withdrawn and records who asked for it.
func (e *Engine) Withdraw(ctx context.Context, tenantID, predictionID, actor string) (*model.Prediction, error) {
	if err := guard.Require(ctx, tenantID); err != nil {
		return nil, err
	}
	p, err := e.store.GetPredictionByID(ctx, tenantID, predictionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.Errorf("predict: prediction not found: %s", predictionID)
	}
	if err := lifecycle.Transition(p.Status, model.StatusWithdrawn); err != nil {
		return nil, err
	}
	moved, err := e.store.SetPredictionStatus(ctx, tenantID, predictionID, p.Status, model.StatusWithdrawn)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, eris.Errorf("predict: prediction %s changed status concurrently", predictionID)
	}
	entry := model.ReconciliationLogEntry{
		TenantID:     tenantID,
		PredictionID: predictionID,
		Actor:        actor,
		Decision:     "withdraw",
		FromStatus:   p.Status,
		ToStatus:     model.StatusWithdrawn,
		Accepted:     true,
		CreatedAt:    e.now(),
	}
	if err := e.store.AppendLog(ctx, entry); err != nil {
		return nil, err
	}
	out := *p
	out.Status = model.StatusWithdrawn
	return &out, nil
}

// SweepMisses moves every Monitoring prediction whose window plus grace has
// lapsed to Miss. Returns how many predictions were swept.
func (e *Engine) SweepMisses(ctx context.Context, tenantID string) (int, error) {
	if err := guard.Require(ctx, tenantID); err != nil {
		return 0, err
	}
	now := e.now()

	monitoring, err := e.store.ListByStatus(ctx, tenantID, []model.PredictionStatus{model.StatusMonitoring})
	if err != nil {
		return 0, err
	}
	if err := guard.VerifyRows(ctx, monitoring, func(p model.Prediction) string { return p.TenantID }); err != nil {
		return 0, err
	}

	swept := 0
	for _, p := range monitoring {
		if lifecycle.Evaluate(&p, now, e.params.Lifecycle) != model.StatusMiss {
			continue
		}
		moved, err := e.store.SetPredictionStatus(ctx, tenantID, p.PredictionID, model.StatusMonitoring, model.StatusMiss)
		if err != nil {
			return swept, err
		}
		if !moved {
			continue
		}
		entry := model.ReconciliationLogEntry{
			TenantID:     tenantID,
			PredictionID: p.PredictionID,
			Actor:        "sweep",
			Decision:     "miss",
			FromStatus:   model.StatusMonitoring,
			ToStatus:     model.StatusMiss,
			Accepted:     true,
			Detail:       fmt.Sprintf("window ended %s, grace %d days lapsed", p.WindowEnd.Format(time.RFC3339), e.params.Lifecycle.GraceDays),
			CreatedAt:    now,
		}
		if err := e.store.AppendLog(ctx, entry); err != nil {
			return swept, err
		}
		swept++
	}
	if swept > 0 {
		e.log.Info("miss sweep complete", zap.String("tenant_id", tenantID), zap.Int("swept", swept))
	}
	return swept, nil
}
