package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSource struct {
	signals []model.Signal
	calls   int
}

func (f *fakeSource) ListSignals(_ context.Context, tenantID, buyerID string, since time.Time) ([]model.Signal, error) {
	f.calls++
	var out []model.Signal
	for _, s := range f.signals {
		if s.TenantID == tenantID && s.BuyerID == buyerID && !s.OccurredAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

var asOf = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func sig(typ model.SignalType, cluster string, monthsAgo int, strength float64) model.Signal {
	return model.Signal{
		ID:             string(typ) + cluster,
		TenantID:       "tenant_a",
		SignalType:     typ,
		BuyerID:        "buyer-1",
		CPVClusterID:   cluster,
		OccurredAt:     asOf.AddDate(0, -monthsAgo, 0),
		SignalStrength: strength,
		SourceQuality:  0.9,
	}
}

func authed(t *testing.T) context.Context {
	t.Helper()
	ctx, err := guard.WithTenant(context.Background(), "tenant_a")
	require.NoError(t, err)
	return ctx
}

func TestCollectClusterMatching(t *testing.T) {
	src := &fakeSource{signals: []model.Signal{
		sig(model.SignalNoticePublished, "cluster_it_software", 2, 0.8), // exact match
		sig(model.SignalNoticePublished, "cluster_construction", 2, 0.8), // mismatched cluster: excluded
		sig(model.SignalContractAwarded, model.ClusterUnknown, 3, 0.7),   // unknown cluster: weak generic evidence
		sig(model.SignalContractAwarded, "", 4, 0.7),                     // untagged: same treatment
		sig(model.SignalGrantAwarded, "cluster_construction", 5, 0.92),   // buyer-level: bypasses cluster match
	}}
	agg := NewAggregator(src, nil, 24)

	ev, err := agg.Collect(authed(t), "tenant_a", "buyer-1", "cluster_it_software", asOf)
	require.NoError(t, err)
	assert.Len(t, ev.Signals, 4)
	assert.Equal(t, 4, ev.Rollup.SignalCount)

	ids := make(map[string]bool)
	for _, s := range ev.Signals {
		ids[s.ID] = true
	}
	assert.False(t, ids["notice_publishedcluster_construction"], "mismatched explicit cluster must not contribute")
	assert.True(t, ids["grant_awardedcluster_construction"], "grant_awarded applies at buyer level")
}

func TestCollectGrantAwardedUnknownClusterContributes(t *testing.T) {
	// A grant with cluster_unknown still counts toward any pair, while a
	// mismatched notice does not.
	src := &fakeSource{signals: []model.Signal{
		sig(model.SignalGrantAwarded, model.ClusterUnknown, 1, 0.9),
		sig(model.SignalNoticePublished, "cluster_health", 1, 0.9),
	}}
	agg := NewAggregator(src, nil, 24)

	ev, err := agg.Collect(authed(t), "tenant_a", "buyer-1", "cluster_it_software", asOf)
	require.NoError(t, err)
	require.Len(t, ev.Signals, 1)
	assert.Equal(t, model.SignalGrantAwarded, ev.Signals[0].SignalType)
}

func TestCollectRecencyWindow(t *testing.T) {
	src := &fakeSource{signals: []model.Signal{
		sig(model.SignalNoticePublished, "cluster_it_software", 23, 0.8),
		sig(model.SignalNoticePublished, "cluster_it_software", 30, 0.8), // older than 24 months
	}}
	agg := NewAggregator(src, nil, 24)

	ev, err := agg.Collect(authed(t), "tenant_a", "buyer-1", "cluster_it_software", asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Rollup.SignalCount)
}

func TestCollectFutureSignalsExcluded(t *testing.T) {
	future := sig(model.SignalNoticePublished, "cluster_it_software", 0, 0.8)
	future.OccurredAt = asOf.AddDate(0, 1, 0)
	src := &fakeSource{signals: []model.Signal{future}}
	agg := NewAggregator(src, nil, 24)

	ev, err := agg.Collect(authed(t), "tenant_a", "buyer-1", "cluster_it_software", asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Rollup.SignalCount)
}

func TestCollectZeroSignalsIsNotAnError(t *testing.T) {
	agg := NewAggregator(&fakeSource{}, nil, 24)
	ev, err := agg.Collect(authed(t), "tenant_a", "buyer-1", "cluster_it_software", asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Rollup.SignalCount)
	assert.Zero(t, ev.Rollup.MeanStrength)
}

func TestCollectCrossTenantRejected(t *testing.T) {
	src := &fakeSource{}
	agg := NewAggregator(src, nil, 24)

	_, err := agg.Collect(authed(t), "tenant_b", "buyer-1", "cluster_it_software", asOf)
	require.Error(t, err)
	assert.True(t, model.IsCrossTenant(err))
	assert.Zero(t, src.calls, "no query may run for the other tenant")
}

func TestRollupAgreement(t *testing.T) {
	signals := []model.Signal{
		{SignalStrength: 0.9, SourceQuality: 1},
		{SignalStrength: 0.8, SourceQuality: 0.5},
		{SignalStrength: 0.2, SourceQuality: 0.6},
	}
	r := rollup(signals)
	assert.Equal(t, 3, r.SignalCount)
	assert.InDelta(t, (0.9+0.8+0.2)/3, r.MeanStrength, 0.001)
	assert.InDelta(t, (1+0.5+0.6)/3, r.MeanSourceQuality, 0.001)
	assert.InDelta(t, 2.0/3, r.Agreement, 0.001)
}

func TestCollectUsesCache(t *testing.T) {
	src := &fakeSource{signals: []model.Signal{
		sig(model.SignalNoticePublished, "cluster_it_software", 2, 0.8),
	}}
	cache := NewCache(time.Hour)
	agg := NewAggregator(src, cache, 24)
	ctx := authed(t)

	_, err := agg.Collect(ctx, "tenant_a", "buyer-1", "cluster_it_software", asOf)
	require.NoError(t, err)
	_, err = agg.Collect(ctx, "tenant_a", "buyer-1", "cluster_it_software", asOf.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "second collect within the hour should hit the cache")
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Unix(0, 0)
	c.clock = func() time.Time { return now }

	key := CacheKey{TenantID: "tenant_a", BuyerID: "b", ClusterID: "c", AsOf: asOf}
	c.Put(key, Evidence{})
	_, ok := c.Get(key)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok)

	c.Put(key, Evidence{})
	now = now.Add(time.Hour)
	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 0, c.Len())
}

func TestCacheTenantIsolationInKeys(t *testing.T) {
	c := NewCache(time.Hour)
	a := CacheKey{TenantID: "tenant_a", BuyerID: "b", ClusterID: "c", AsOf: asOf}
	b := CacheKey{TenantID: "tenant_b", BuyerID: "b", ClusterID: "c", AsOf: asOf}

	c.Put(a, Evidence{Rollup: rollup([]model.Signal{{SignalStrength: 1}})})
	_, ok := c.Get(b)
	assert.False(t, ok)
}
