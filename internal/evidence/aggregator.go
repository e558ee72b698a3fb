// Package evidence gathers the signals applicable to a (tenant, buyer,
// cluster) pair and rolls them up for the scoring engine.
package evidence

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/scoring"
)

// SignalSource is the read-only slice of the store the aggregator depends
// on.
type SignalSource interface {
	ListSignals(ctx context.Context, tenantID, buyerID string, since time.Time) ([]model.Signal, error)
}

// Evidence is the aggregation result for one pair at one point in time.
type Evidence struct {
	Signals []model.Signal
	Rollup  scoring.EvidenceRollup
}

// Aggregator applies the per-type matching rules and the recency window.
type Aggregator struct {
	src           SignalSource
	cache         *Cache // optional
	recencyMonths int
	log           *zap.Logger
}

// NewAggregator builds an Aggregator. recencyMonths bounds which signals
// count as current external evidence (typically 24). cache may be nil.
func NewAggregator(src SignalSource, cache *Cache, recencyMonths int) *Aggregator {
	if recencyMonths <= 0 {
		recencyMonths = 24
	}
	return &Aggregator{src: src, cache: cache, recencyMonths: recencyMonths, log: zap.L()}
}

// Collect returns the applicable signals and roll-ups for the pair as of
// asOf. Zero matching signals yield a zero rollup, never an error.
func (a *Aggregator) Collect(ctx context.Context, tenantID, buyerID, clusterID string, asOf time.Time) (Evidence, error) {
	if err := guard.Require(ctx, tenantID); err != nil {
		return Evidence{}, err
	}

	key := CacheKey{TenantID: tenantID, BuyerID: buyerID, ClusterID: clusterID, AsOf: asOf.Truncate(time.Hour)}
	if a.cache != nil {
		if ev, ok := a.cache.Get(key); ok {
			return ev, nil
		}
	}

	since := asOf.AddDate(0, -a.recencyMonths, 0)
	signals, err := a.src.ListSignals(ctx, tenantID, buyerID, since)
	if err != nil {
		return Evidence{}, eris.Wrap(err, "evidence: list signals")
	}
	if err := guard.VerifyRows(ctx, signals, func(s model.Signal) string { return s.TenantID }); err != nil {
		return Evidence{}, err
	}

	pairCluster := clusterID
	if pairCluster == "" {
		pairCluster = model.ClusterUnknown
	}

	var matched []model.Signal
	for _, s := range signals {
		if s.OccurredAt.After(asOf) || s.OccurredAt.Before(since) {
			continue
		}
		if !matchesCluster(s, pairCluster) {
			continue
		}
		matched = append(matched, s)
	}

	ev := Evidence{Signals: matched, Rollup: rollup(matched)}
	if a.cache != nil {
		a.cache.Put(key, ev)
	}

	a.log.Debug("evidence: collected",
		zap.String("tenant_id", tenantID),
		zap.String("buyer_id", buyerID),
		zap.String("cpv_cluster_id", pairCluster),
		zap.Int("matched", len(matched)),
		zap.Int("fetched", len(signals)),
	)
	return ev, nil
}

// matchesCluster applies the documented matching policy: buyer-level signal
// types bypass the cluster check entirely; all other types require an exact
// cluster match or an untagged (null/unknown) cluster, which counts as weak
// generic evidence.
func matchesCluster(s model.Signal, pairCluster string) bool {
	if s.SignalType.BuyerLevel() {
		return true
	}
	if s.CPVClusterID == "" || s.CPVClusterID == model.ClusterUnknown {
		return true
	}
	return s.CPVClusterID == pairCluster
}

// rollup computes the aggregate measures the scoring engine consumes.
// Agreement is the fraction of signals pointing the dominant direction,
// where a signal points toward a re-tender when its strength is >= 0.5.
func rollup(signals []model.Signal) scoring.EvidenceRollup {
	if len(signals) == 0 {
		return scoring.EvidenceRollup{}
	}

	var strengthSum, qualitySum float64
	var forward int
	for _, s := range signals {
		strengthSum += s.SignalStrength
		qualitySum += s.SourceQuality
		if s.SignalStrength >= 0.5 {
			forward++
		}
	}
	n := float64(len(signals))
	dominant := forward
	if backward := len(signals) - forward; backward > dominant {
		dominant = backward
	}

	return scoring.EvidenceRollup{
		SignalCount:       len(signals),
		MeanStrength:      strengthSum / n,
		MeanSourceQuality: qualitySum / n,
		Agreement:         float64(dominant) / n,
	}
}
