package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civant/procure-intel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testSignal(tenantID, buyerID string, occurredAt time.Time) model.Signal {
	return model.Signal{
		TenantID:       tenantID,
		SignalType:     model.SignalContractAwarded,
		BuyerID:        buyerID,
		CPVClusterID:   "cluster_it_software",
		OccurredAt:     occurredAt,
		SignalStrength: 0.8,
		SourceQuality:  0.9,
		ValueEUR:       120000,
	}
}

func TestSQLiteStore_SignalRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.InsertSignal(ctx, testSignal("acme_corp", "buyer-1", now.AddDate(0, -1, 0))))
	require.NoError(t, s.InsertSignal(ctx, testSignal("acme_corp", "buyer-1", now.AddDate(-3, 0, 0))))
	require.NoError(t, s.InsertSignal(ctx, testSignal("other_tenant", "buyer-1", now.AddDate(0, -1, 0))))

	got, err := s.ListSignals(ctx, "acme_corp", "buyer-1", now.AddDate(-2, 0, 0))
	require.NoError(t, err)
	require.Len(t, got, 1, "signals outside the since window and from other tenants are excluded")
	assert.Equal(t, "acme_corp", got[0].TenantID)
	assert.Equal(t, model.SignalContractAwarded, got[0].SignalType)
	assert.InDelta(t, 0.8, got[0].SignalStrength, 1e-9)
}

func TestSQLiteStore_InsertSignal_Invalid(t *testing.T) {
	s := newTestSQLiteStore(t)

	sig := testSignal("acme_corp", "buyer-1", time.Now())
	sig.SignalStrength = 1.5
	err := s.InsertSignal(context.Background(), sig)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestSQLiteStore_BulkInsertSignals_Dedupes(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := testSignal("acme_corp", "buyer-1", now)
	a.ID = "sig-1"
	b := testSignal("acme_corp", "buyer-2", now)
	b.ID = "sig-2"

	n, err := s.BulkInsertSignals(ctx, []model.Signal{a, b})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Re-importing the same batch is a no-op.
	n, err = s.BulkInsertSignals(ctx, []model.Signal{a, b})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLiteStore_ListPairs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.InsertSignal(ctx, testSignal("acme_corp", "buyer-1", now)))
	require.NoError(t, s.InsertSignal(ctx, testSignal("acme_corp", "buyer-1", now.AddDate(0, -6, 0))))
	unclustered := testSignal("acme_corp", "buyer-2", now)
	unclustered.CPVClusterID = ""
	require.NoError(t, s.InsertSignal(ctx, unclustered))

	pairs, err := s.ListPairs(ctx, "acme_corp")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Pair{
		{BuyerID: "buyer-1", CPVClusterID: "cluster_it_software"},
		{BuyerID: "buyer-2", CPVClusterID: model.ClusterUnknown},
	}, pairs)
}

func basePrediction() model.Prediction {
	return model.Prediction{
		TenantID:     "acme_corp",
		BuyerID:      "buyer-1",
		CPVClusterID: "cluster_it_software",
		WindowStart:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:    time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		Confidence:   68.25,
		SubScores: model.SubScores{
			Cycle: 20, Timing: 12, Behavioural: 8, Structural: 7, External: 11.25, Quality: 10,
		},
		Status:      model.StatusDraft,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStore_UpsertPrediction_VersionSequence(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.UpsertPrediction(ctx, basePrediction(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)
	assert.NotEmpty(t, created.PredictionID)

	// Stale expected version is rejected.
	_, err = s.UpsertPrediction(ctx, *created, 0)
	require.Error(t, err)
	assert.True(t, model.IsConcurrentModification(err))

	// Correct expected version advances.
	next := *created
	next.Confidence = 71.0
	next.Status = model.StatusPublished
	updated, err := s.UpsertPrediction(ctx, next, created.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	got, err := s.GetPrediction(ctx, "acme_corp", "buyer-1", "cluster_it_software")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusPublished, got.Status)
	assert.InDelta(t, 71.0, got.Confidence, 1e-9)
	assert.Equal(t, created.SubScores.Cycle, got.SubScores.Cycle)

	// Every upsert appends a history row.
	history, err := s.ListCycleHistory(ctx, "acme_corp", "buyer-1", "cluster_it_software", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSQLiteStore_GetPrediction_Missing(t *testing.T) {
	s := newTestSQLiteStore(t)

	p, err := s.GetPrediction(context.Background(), "acme_corp", "nobody", "cluster_it_software")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = s.GetPredictionByID(context.Background(), "acme_corp", "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSQLiteStore_ListPredictions_Filters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first := basePrediction()
	_, err := s.UpsertPrediction(ctx, first, 0)
	require.NoError(t, err)

	second := basePrediction()
	second.BuyerID = "buyer-2"
	second.Confidence = 90
	second.Status = model.StatusMonitoring
	_, err = s.UpsertPrediction(ctx, second, 0)
	require.NoError(t, err)

	all, err := s.ListPredictions(ctx, "acme_corp", PredictionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "buyer-2", all[0].BuyerID, "ordered by confidence descending")

	monitoring, err := s.ListPredictions(ctx, "acme_corp", PredictionFilter{Status: model.StatusMonitoring})
	require.NoError(t, err)
	require.Len(t, monitoring, 1)
	assert.Equal(t, "buyer-2", monitoring[0].BuyerID)

	byStatus, err := s.ListByStatus(ctx, "acme_corp", []model.PredictionStatus{model.StatusDraft, model.StatusMonitoring})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	none, err := s.ListPredictions(ctx, "other_tenant", PredictionFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_SetPredictionStatus_FromGuard(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.UpsertPrediction(ctx, basePrediction(), 0)
	require.NoError(t, err)

	moved, err := s.SetPredictionStatus(ctx, "acme_corp", created.PredictionID, model.StatusMonitoring, model.StatusHit)
	require.NoError(t, err)
	assert.False(t, moved, "prediction is Draft, not Monitoring")

	moved, err = s.SetPredictionStatus(ctx, "acme_corp", created.PredictionID, model.StatusDraft, model.StatusPublished)
	require.NoError(t, err)
	assert.True(t, moved)

	got, err := s.GetPredictionByID(ctx, "acme_corp", created.PredictionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusPublished, got.Status)
	assert.Equal(t, created.Version+1, got.Version)
}

func TestSQLiteStore_CandidateResolutionIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	cand := model.ReconciliationCandidate{
		TenantID:          "acme_corp",
		CandidateID:       "cand-1",
		PredictionID:      "pred-1",
		CanonicalNoticeID: "notice-1",
		Status:            model.CandidatePending,
		MatchConfidence:   0.82,
		CreatedAt:         now,
	}
	require.NoError(t, s.InsertCandidates(ctx, []model.ReconciliationCandidate{cand}))
	// Idempotent re-enqueue.
	require.NoError(t, s.InsertCandidates(ctx, []model.ReconciliationCandidate{cand}))

	pending, err := s.ListPendingCandidates(ctx, "acme_corp")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "notice-1", pending[0].CanonicalNoticeID)

	resolved, err := s.ResolveCandidateStatus(ctx, "acme_corp", "cand-1", model.CandidateMatched)
	require.NoError(t, err)
	assert.True(t, resolved)

	// Second resolution is a no-op.
	resolved, err = s.ResolveCandidateStatus(ctx, "acme_corp", "cand-1", model.CandidateRejected)
	require.NoError(t, err)
	assert.False(t, resolved)

	got, err := s.GetCandidate(ctx, "acme_corp", "cand-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.CandidateMatched, got.Status)

	pending, err = s.ListPendingCandidates(ctx, "acme_corp")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteStore_ReconciliationLog(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := model.ReconciliationLogEntry{
		TenantID:     "acme_corp",
		CandidateID:  "cand-1",
		PredictionID: "pred-1",
		Actor:        "analyst@acme",
		Decision:     "accept",
		FromStatus:   model.StatusMonitoring,
		ToStatus:     model.StatusHit,
		Accepted:     true,
		Detail:       "notice notice-1 matched",
	}
	require.NoError(t, s.AppendLog(ctx, entry))

	rejected := entry
	rejected.Decision = "reject"
	rejected.Accepted = false
	rejected.ToStatus = ""
	rejected.CreatedAt = time.Now().UTC().Add(time.Second)
	require.NoError(t, s.AppendLog(ctx, rejected))

	got, err := s.ListLog(ctx, "acme_corp", "pred-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "reject", got[0].Decision, "newest first")
	assert.Equal(t, model.StatusHit, got[1].ToStatus)
	assert.True(t, got[1].Accepted)

	other, err := s.ListLog(ctx, "other_tenant", "pred-1", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
