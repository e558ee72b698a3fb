package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/lifecycle"
	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testCfg = Config{
	AutoAcceptThreshold: 0.85,
	AmbiguityMargin:     0.1,
	Lifecycle: lifecycle.Config{
		PublishThreshold: 60,
		GraceDays:        30,
		SlackDays:        14,
	},
}

func newTestQueue(t *testing.T) (*Queue, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewQueue(s, testCfg), s
}

func tenantCtx(t *testing.T, tenantID string) context.Context {
	t.Helper()
	ctx, err := guard.WithTenant(context.Background(), tenantID)
	require.NoError(t, err)
	return ctx
}

func adminCtx(t *testing.T, tenantID string) context.Context {
	t.Helper()
	ctx, err := guard.WithAdmin(tenantCtx(t, tenantID))
	require.NoError(t, err)
	return ctx
}

func seedPrediction(t *testing.T, s store.Store, tenantID, buyerID, clusterID string, status model.PredictionStatus, windowStart, windowEnd time.Time) *model.Prediction {
	t.Helper()
	p := model.Prediction{
		TenantID:     tenantID,
		BuyerID:      buyerID,
		CPVClusterID: clusterID,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Confidence:   72,
		Status:       status,
		GeneratedAt:  time.Now().UTC(),
	}
	created, err := s.UpsertPrediction(context.Background(), p, 0)
	require.NoError(t, err)
	return created
}

func noticeFor(tenantID, buyerID, clusterID string, publishedAt time.Time) model.CanonicalNotice {
	return model.CanonicalNotice{
		TenantID:     tenantID,
		NoticeID:     "notice-1",
		BuyerID:      buyerID,
		CPVClusterID: clusterID,
		NoticeType:   "contract_notice",
		PublishedAt:  publishedAt,
		Completeness: 1,
	}
}

func TestEnqueue_AutoAcceptsUnambiguousMatch(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")
	now := time.Now().UTC()

	pred := seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_it_software",
		model.StatusMonitoring, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))

	out, err := q.EnqueueCandidate(ctx, "acme_corp", noticeFor("acme_corp", "buyer-1", "cluster_it_software", now))
	require.NoError(t, err)
	assert.True(t, out.AutoAccepted)
	require.NotNil(t, out.Prediction)
	assert.Equal(t, model.StatusHit, out.Prediction.Status)

	got, err := s.GetPredictionByID(ctx, "acme_corp", pred.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHit, got.Status)

	log, err := s.ListLog(ctx, "acme_corp", pred.PredictionID, 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "ingest", log[0].Actor)
	assert.True(t, log[0].Accepted)
	assert.Equal(t, model.StatusHit, log[0].ToStatus)
}

func TestEnqueue_AmbiguousMatchGoesToReview(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")
	now := time.Now().UTC()

	a := seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_it_software",
		model.StatusMonitoring, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))
	b := seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_consulting",
		model.StatusMonitoring, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))

	// Unknown cluster matches both predictions equally well.
	out, err := q.EnqueueCandidate(ctx, "acme_corp", noticeFor("acme_corp", "buyer-1", "", now))
	require.NoError(t, err)
	assert.False(t, out.AutoAccepted)
	assert.Len(t, out.Pending, 2)

	pending, err := s.ListPendingCandidates(ctx, "acme_corp")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// The leading prediction is flagged for review; the other is untouched.
	reviewed := 0
	for _, id := range []string{a.PredictionID, b.PredictionID} {
		got, err := s.GetPredictionByID(ctx, "acme_corp", id)
		require.NoError(t, err)
		if got.Status == model.StatusNeedsReview {
			reviewed++
		}
	}
	assert.Equal(t, 1, reviewed)
}

func TestEnqueue_NoMatchingPrediction(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")
	now := time.Now().UTC()

	seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_it_software",
		model.StatusMonitoring, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))

	out, err := q.EnqueueCandidate(ctx, "acme_corp", noticeFor("acme_corp", "other-buyer", "cluster_it_software", now))
	require.NoError(t, err)
	assert.False(t, out.AutoAccepted)
	assert.Empty(t, out.Pending)
}

func TestEnqueue_OutsideWindowNotMatched(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")
	now := time.Now().UTC()

	seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_it_software",
		model.StatusMonitoring, now.AddDate(1, 0, 0), now.AddDate(1, 2, 0))

	out, err := q.EnqueueCandidate(ctx, "acme_corp", noticeFor("acme_corp", "buyer-1", "cluster_it_software", now))
	require.NoError(t, err)
	assert.False(t, out.AutoAccepted)
	assert.Empty(t, out.Pending)
}

func TestEnqueue_CrossTenantRejected(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")

	_, err := q.EnqueueCandidate(ctx, "other_tenant", noticeFor("other_tenant", "buyer-1", "", time.Now()))
	require.Error(t, err)
	assert.True(t, model.IsCrossTenant(err))
}

func TestEnqueue_NoticeTenantMismatch(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")

	_, err := q.EnqueueCandidate(ctx, "acme_corp", noticeFor("other_tenant", "buyer-1", "", time.Now()))
	require.Error(t, err)
	assert.True(t, model.IsCrossTenant(err))
}

func TestEnqueue_InvalidNotice(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")

	n := noticeFor("acme_corp", "buyer-1", "", time.Now())
	n.NoticeID = ""
	_, err := q.EnqueueCandidate(ctx, "acme_corp", n)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestEnqueue_Idempotent(t *testing.T) {
	q, s := newTestQueue(t)
	ctx := tenantCtx(t, "acme_corp")
	now := time.Now().UTC()

	seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_it_software",
		model.StatusMonitoring, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))
	seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_consulting",
		model.StatusMonitoring, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))

	notice := noticeFor("acme_corp", "buyer-1", "", now)
	_, err := q.EnqueueCandidate(ctx, "acme_corp", notice)
	require.NoError(t, err)
	_, err = q.EnqueueCandidate(ctx, "acme_corp", notice)
	require.NoError(t, err)

	pending, err := s.ListPendingCandidates(ctx, "acme_corp")
	require.NoError(t, err)
	assert.Len(t, pending, 2, "re-enqueueing the same notice must not duplicate candidates")
}

func pendingCandidate(t *testing.T, q *Queue, s store.Store, status model.PredictionStatus) (context.Context, *model.Prediction, model.ReconciliationCandidate) {
	t.Helper()
	ctx := adminCtx(t, "acme_corp")
	now := time.Now().UTC()

	pred := seedPrediction(t, s, "acme_corp", "buyer-1", "cluster_it_software",
		status, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))
	cand := model.ReconciliationCandidate{
		TenantID:          "acme_corp",
		CandidateID:       "cand-1",
		PredictionID:      pred.PredictionID,
		CanonicalNoticeID: "notice-1",
		Status:            model.CandidatePending,
		MatchConfidence:   0.7,
		CreatedAt:         now,
	}
	require.NoError(t, s.InsertCandidates(ctx, []model.ReconciliationCandidate{cand}))
	return ctx, pred, cand
}

func TestResolve_Accept(t *testing.T) {
	q, s := newTestQueue(t)
	ctx, pred, cand := pendingCandidate(t, q, s, model.StatusMonitoring)

	res, err := q.ResolveCandidate(ctx, "acme_corp", cand.CandidateID, model.DecisionAccept, "admin:alex")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.CandidateMatched, res.Candidate.Status)
	require.NotNil(t, res.Prediction)
	assert.Equal(t, model.StatusHit, res.Prediction.Status)

	log, err := s.ListLog(ctx, "acme_corp", pred.PredictionID, 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "admin:alex", log[0].Actor)
}

func TestResolve_SecondResolutionIsNoOp(t *testing.T) {
	q, s := newTestQueue(t)
	ctx, pred, cand := pendingCandidate(t, q, s, model.StatusMonitoring)

	_, err := q.ResolveCandidate(ctx, "acme_corp", cand.CandidateID, model.DecisionAccept, "admin:alex")
	require.NoError(t, err)

	res, err := q.ResolveCandidate(ctx, "acme_corp", cand.CandidateID, model.DecisionReject, "admin:blake")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, model.CandidateMatched, res.Candidate.Status, "first decision stands")

	log, err := s.ListLog(ctx, "acme_corp", pred.PredictionID, 10)
	require.NoError(t, err)
	assert.Len(t, log, 1, "no duplicate log entry for a no-op resolution")
}

func TestResolve_AcceptIllegalTransitionLogged(t *testing.T) {
	q, s := newTestQueue(t)
	ctx, pred, cand := pendingCandidate(t, q, s, model.StatusHit)

	_, err := q.ResolveCandidate(ctx, "acme_corp", cand.CandidateID, model.DecisionAccept, "admin:alex")
	require.Error(t, err)
	assert.True(t, model.IsLifecycle(err))

	// The rejected attempt is in the log, the candidate stays pending.
	log, err := s.ListLog(ctx, "acme_corp", pred.PredictionID, 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.False(t, log[0].Accepted)

	got, err := s.GetCandidate(ctx, "acme_corp", cand.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, model.CandidatePending, got.Status)
}

// sweepRacingStore moves the prediction to Miss right before the queue's
// guarded accept update, like a miss sweep landing mid-resolution.
type sweepRacingStore struct {
	store.Store
	predictionID string
	interfered   bool
}

func (s *sweepRacingStore) SetPredictionStatus(ctx context.Context, tenantID, predictionID string, from, to model.PredictionStatus) (bool, error) {
	if !s.interfered && predictionID == s.predictionID && to == model.StatusHit {
		s.interfered = true
		if _, err := s.Store.SetPredictionStatus(ctx, tenantID, predictionID, from, model.StatusMiss); err != nil {
			return false, err
		}
	}
	return s.Store.SetPredictionStatus(ctx, tenantID, predictionID, from, to)
}

func TestResolve_AcceptConcurrentStatusChange(t *testing.T) {
	raw, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, raw.Migrate(context.Background()))
	t.Cleanup(func() { raw.Close() })

	ctx := adminCtx(t, "acme_corp")
	now := time.Now().UTC()
	pred := seedPrediction(t, raw, "acme_corp", "buyer-1", "cluster_it_software",
		model.StatusMonitoring, now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))
	cand := model.ReconciliationCandidate{
		TenantID:          "acme_corp",
		CandidateID:       "cand-1",
		PredictionID:      pred.PredictionID,
		CanonicalNoticeID: "notice-1",
		Status:            model.CandidatePending,
		MatchConfidence:   0.7,
		CreatedAt:         now,
	}
	require.NoError(t, raw.InsertCandidates(ctx, []model.ReconciliationCandidate{cand}))

	racing := &sweepRacingStore{Store: raw, predictionID: pred.PredictionID}
	q := NewQueue(racing, testCfg)

	_, err = q.ResolveCandidate(ctx, "acme_corp", cand.CandidateID, model.DecisionAccept, "admin:alex")
	require.Error(t, err)
	assert.True(t, model.IsLifecycle(err))

	// The swept status stands and the candidate is still open.
	got, err := raw.GetPredictionByID(ctx, "acme_corp", pred.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMiss, got.Status)

	gotCand, err := raw.GetCandidate(ctx, "acme_corp", cand.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, model.CandidatePending, gotCand.Status)

	// The log records the rejected attempt against the status the
	// prediction actually had, not the transition that never ran.
	log, err := raw.ListLog(ctx, "acme_corp", pred.PredictionID, 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.False(t, log[0].Accepted)
	assert.Equal(t, model.StatusMiss, log[0].FromStatus)
	assert.Equal(t, model.StatusHit, log[0].ToStatus)
}

func TestResolve_Reject(t *testing.T) {
	q, s := newTestQueue(t)
	ctx, pred, cand := pendingCandidate(t, q, s, model.StatusMonitoring)

	res, err := q.ResolveCandidate(ctx, "acme_corp", cand.CandidateID, model.DecisionReject, "admin:alex")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.CandidateRejected, res.Candidate.Status)

	got, err := s.GetPredictionByID(ctx, "acme_corp", pred.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMonitoring, got.Status, "rejecting leaves the prediction alone")
}

func TestResolve_RequiresAdmin(t *testing.T) {
	q, s := newTestQueue(t)
	_, _, cand := pendingCandidate(t, q, s, model.StatusMonitoring)

	_, err := q.ResolveCandidate(tenantCtx(t, "acme_corp"), "acme_corp", cand.CandidateID, model.DecisionAccept, "user")
	require.Error(t, err)
}

func TestResolve_InvalidDecision(t *testing.T) {
	q, s := newTestQueue(t)
	ctx, _, cand := pendingCandidate(t, q, s, model.StatusMonitoring)

	_, err := q.ResolveCandidate(ctx, "acme_corp", cand.CandidateID, "maybe", "admin:alex")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestResolve_UnknownCandidate(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.ResolveCandidate(adminCtx(t, "acme_corp"), "acme_corp", "no-such", model.DecisionAccept, "admin:alex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate not found")
}
