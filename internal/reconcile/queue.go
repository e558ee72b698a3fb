// Package reconcile links incoming canonical notices to published
// predictions and manages the review queue for ambiguous matches.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/cpv"
	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/lifecycle"
	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/store"
)

// Config tunes match acceptance.
type Config struct {
	// AutoAcceptThreshold is the minimum match confidence for resolving a
	// notice against a prediction without human review.
	AutoAcceptThreshold float64
	// AmbiguityMargin is the minimum lead the best candidate must have over
	// the runner-up; closer races go to review.
	AmbiguityMargin float64
	Lifecycle       lifecycle.Config
}

// Queue matches notices to predictions and records every decision in the
// reconciliation log.
type Queue struct {
	store store.Store
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

func NewQueue(s store.Store, cfg Config) *Queue {
	return &Queue{
		store: s,
		cfg:   cfg,
		log:   zap.L().Named("reconcile"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Outcome describes what enqueueing a notice did.
type Outcome struct {
	// AutoAccepted is set when the best match cleared the threshold and the
	// prediction moved to Hit without review.
	AutoAccepted bool
	// Prediction is the matched prediction after any status change.
	Prediction *model.Prediction
	// Pending holds candidates queued for review.
	Pending []model.ReconciliationCandidate
}

type scoredMatch struct {
	prediction model.Prediction
	confidence float64
}

// EnqueueCandidate matches a canonical notice against the tenant's open
// predictions. A single unambiguous high-confidence match resolves
// immediately; everything else lands in the pending queue. Re-submitting the
// same notice is a no-op because candidate IDs derive from the notice and
// prediction identity.
func (q *Queue) EnqueueCandidate(ctx context.Context, tenantID string, notice model.CanonicalNotice) (*Outcome, error) {
	if err := guard.Require(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := validateNotice(tenantID, notice); err != nil {
		return nil, err
	}

	open, err := q.store.ListByStatus(ctx, tenantID, []model.PredictionStatus{
		model.StatusPublished, model.StatusMonitoring, model.StatusNeedsReview,
	})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: list open predictions")
	}
	if err := guard.VerifyRows(ctx, open, func(p model.Prediction) string { return p.TenantID }); err != nil {
		return nil, err
	}

	matches := q.scoreMatches(notice, open)
	if len(matches) == 0 {
		q.log.Debug("notice matched no open prediction",
			zap.String("tenant_id", tenantID),
			zap.String("notice_id", notice.NoticeID),
			zap.String("buyer_id", notice.BuyerID))
		return &Outcome{}, nil
	}

	best := matches[0]
	unambiguous := len(matches) == 1 || best.confidence-matches[1].confidence >= q.cfg.AmbiguityMargin
	if best.confidence >= q.cfg.AutoAcceptThreshold && unambiguous &&
		lifecycle.CanTransition(best.prediction.Status, model.StatusHit) {
		return q.autoAccept(ctx, tenantID, notice, best)
	}

	return q.queueForReview(ctx, tenantID, notice, matches)
}

func (q *Queue) scoreMatches(notice model.CanonicalNotice, open []model.Prediction) []scoredMatch {
	var matches []scoredMatch
	for _, p := range open {
		if !buyerMatches(notice, p) {
			continue
		}
		if !clusterMatches(notice.CPVClusterID, p.CPVClusterID) {
			continue
		}
		if !lifecycle.InHitWindow(&p, notice.PublishedAt, q.cfg.Lifecycle) {
			continue
		}
		matches = append(matches, scoredMatch{
			prediction: p,
			confidence: matchConfidence(notice, p, q.cfg.Lifecycle),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].confidence != matches[j].confidence {
			return matches[i].confidence > matches[j].confidence
		}
		return matches[i].prediction.PredictionID < matches[j].prediction.PredictionID
	})
	return matches
}

func (q *Queue) autoAccept(ctx context.Context, tenantID string, notice model.CanonicalNotice, m scoredMatch) (*Outcome, error) {
	cand := q.buildCandidate(tenantID, notice, m)
	cand.Status = model.CandidateMatched
	if err := q.store.InsertCandidates(ctx, []model.ReconciliationCandidate{cand}); err != nil {
		return nil, err
	}

	moved, err := q.store.SetPredictionStatus(ctx, tenantID, m.prediction.PredictionID, m.prediction.Status, model.StatusHit)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost a race with another resolver or a recompute; leave the
		// candidate for manual review instead of guessing.
		q.log.Warn("auto-accept lost status race",
			zap.String("tenant_id", tenantID),
			zap.String("prediction_id", m.prediction.PredictionID))
		return &Outcome{Pending: []model.ReconciliationCandidate{cand}}, nil
	}

	entry := model.ReconciliationLogEntry{
		TenantID:     tenantID,
		CandidateID:  cand.CandidateID,
		PredictionID: m.prediction.PredictionID,
		Actor:        "ingest",
		Decision:     string(model.DecisionAccept),
		FromStatus:   m.prediction.Status,
		ToStatus:     model.StatusHit,
		Accepted:     true,
		Detail:       fmt.Sprintf("auto-accepted notice %s at %.2f confidence", notice.NoticeID, m.confidence),
		CreatedAt:    q.now(),
	}
	if err := q.store.AppendLog(ctx, entry); err != nil {
		return nil, err
	}

	hit := m.prediction
	hit.Status = model.StatusHit
	q.log.Info("notice auto-accepted",
		zap.String("tenant_id", tenantID),
		zap.String("notice_id", notice.NoticeID),
		zap.String("prediction_id", hit.PredictionID),
		zap.Float64("match_confidence", m.confidence))
	return &Outcome{AutoAccepted: true, Prediction: &hit}, nil
}

func (q *Queue) queueForReview(ctx context.Context, tenantID string, notice model.CanonicalNotice, matches []scoredMatch) (*Outcome, error) {
	cands := make([]model.ReconciliationCandidate, 0, len(matches))
	for _, m := range matches {
		cands = append(cands, q.buildCandidate(tenantID, notice, m))
	}
	if err := q.store.InsertCandidates(ctx, cands); err != nil {
		return nil, err
	}

	// Flag the leading prediction so reviewers see it; a failed move just
	// means it is already terminal or in review.
	best := matches[0].prediction
	if lifecycle.CanTransition(best.Status, model.StatusNeedsReview) {
		if _, err := q.store.SetPredictionStatus(ctx, tenantID, best.PredictionID, best.Status, model.StatusNeedsReview); err != nil {
			return nil, err
		}
	}

	q.log.Info("notice queued for review",
		zap.String("tenant_id", tenantID),
		zap.String("notice_id", notice.NoticeID),
		zap.Int("candidates", len(cands)),
		zap.Float64("best_confidence", matches[0].confidence))
	return &Outcome{Pending: cands}, nil
}

func (q *Queue) buildCandidate(tenantID string, notice model.CanonicalNotice, m scoredMatch) model.ReconciliationCandidate {
	return model.ReconciliationCandidate{
		TenantID:          tenantID,
		CandidateID:       candidateID(tenantID, notice.NoticeID, m.prediction.PredictionID),
		PredictionID:      m.prediction.PredictionID,
		CanonicalNoticeID: notice.NoticeID,
		Status:            model.CandidatePending,
		MatchConfidence:   m.confidence,
		CreatedAt:         q.now(),
	}
}

// Resolution is the result of resolving one candidate.
type Resolution struct {
	Candidate model.ReconciliationCandidate
	// Applied is false when the candidate was already resolved; the call is
	// then a no-op and no log entry is written.
	Applied    bool
	Prediction *model.Prediction
}

// ResolveCandidate applies an accept or reject decision to a pending
// candidate. Resolving an already-resolved candidate returns its current
// state without writing a duplicate log entry. Accepting a candidate whose
// prediction can no longer move to Hit records the rejected attempt in the
// log and returns a lifecycle error.
func (q *Queue) ResolveCandidate(ctx context.Context, tenantID, candidateID string, decision model.ReconciliationDecision, actor string) (*Resolution, error) {
	if err := guard.RequireAdmin(ctx, tenantID); err != nil {
		return nil, err
	}
	if !decision.Valid() {
		return nil, &model.ValidationError{Field: "decision", Reason: "must be accept or reject"}
	}

	cand, err := q.store.GetCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, eris.Errorf("reconcile: candidate not found: %s", candidateID)
	}
	if cand.Status != model.CandidatePending {
		return &Resolution{Candidate: *cand, Applied: false}, nil
	}

	if decision == model.DecisionReject {
		return q.reject(ctx, tenantID, *cand, actor)
	}
	return q.accept(ctx, tenantID, *cand, actor)
}

func (q *Queue) accept(ctx context.Context, tenantID string, cand model.ReconciliationCandidate, actor string) (*Resolution, error) {
	pred, err := q.store.GetPredictionByID(ctx, tenantID, cand.PredictionID)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return nil, eris.Errorf("reconcile: prediction not found: %s", cand.PredictionID)
	}

	if err := lifecycle.Transition(pred.Status, model.StatusHit); err != nil {
		attempt := model.ReconciliationLogEntry{
			TenantID:     tenantID,
			CandidateID:  cand.CandidateID,
			PredictionID: pred.PredictionID,
			Actor:        actor,
			Decision:     string(model.DecisionAccept),
			FromStatus:   pred.Status,
			ToStatus:     model.StatusHit,
			Accepted:     false,
			Detail:       "rejected: illegal lifecycle transition",
			CreatedAt:    q.now(),
		}
		if logErr := q.store.AppendLog(ctx, attempt); logErr != nil {
			return nil, logErr
		}
		return nil, err
	}

	moved, err := q.store.SetPredictionStatus(ctx, tenantID, pred.PredictionID, pred.Status, model.StatusHit)
	if err != nil {
		return nil, err
	}
	if !moved {
		// Another writer changed the prediction between the read and the
		// guarded update. Log the rejected attempt against the fresh status
		// and leave the candidate pending for a retry against the new state.
		fresh, err := q.store.GetPredictionByID(ctx, tenantID, cand.PredictionID)
		if err != nil {
			return nil, err
		}
		from := pred.Status
		if fresh != nil {
			from = fresh.Status
		}
		attempt := model.ReconciliationLogEntry{
			TenantID:     tenantID,
			CandidateID:  cand.CandidateID,
			PredictionID: pred.PredictionID,
			Actor:        actor,
			Decision:     string(model.DecisionAccept),
			FromStatus:   from,
			ToStatus:     model.StatusHit,
			Accepted:     false,
			Detail:       "rejected: prediction status changed concurrently",
			CreatedAt:    q.now(),
		}
		if logErr := q.store.AppendLog(ctx, attempt); logErr != nil {
			return nil, logErr
		}
		return nil, &model.LifecycleError{From: from, To: model.StatusHit}
	}

	resolved, err := q.store.ResolveCandidateStatus(ctx, tenantID, cand.CandidateID, model.CandidateMatched)
	if err != nil {
		return nil, err
	}
	if !resolved {
		// A concurrent reject claimed the candidate after the pending check;
		// the prediction move above stands, the candidate decision does not.
		fresh, err := q.store.GetCandidate(ctx, tenantID, cand.CandidateID)
		if err != nil {
			return nil, err
		}
		q.log.Warn("accept lost candidate race",
			zap.String("tenant_id", tenantID),
			zap.String("candidate_id", cand.CandidateID))
		hit := *pred
		hit.Status = model.StatusHit
		return &Resolution{Candidate: *fresh, Applied: false, Prediction: &hit}, nil
	}

	entry := model.ReconciliationLogEntry{
		TenantID:     tenantID,
		CandidateID:  cand.CandidateID,
		PredictionID: pred.PredictionID,
		Actor:        actor,
		Decision:     string(model.DecisionAccept),
		FromStatus:   pred.Status,
		ToStatus:     model.StatusHit,
		Accepted:     true,
		Detail:       fmt.Sprintf("notice %s accepted", cand.CanonicalNoticeID),
		CreatedAt:    q.now(),
	}
	if err := q.store.AppendLog(ctx, entry); err != nil {
		return nil, err
	}

	cand.Status = model.CandidateMatched
	hit := *pred
	hit.Status = model.StatusHit
	q.log.Info("candidate accepted",
		zap.String("tenant_id", tenantID),
		zap.String("candidate_id", cand.CandidateID),
		zap.String("actor", actor))
	return &Resolution{Candidate: cand, Applied: true, Prediction: &hit}, nil
}

func (q *Queue) reject(ctx context.Context, tenantID string, cand model.ReconciliationCandidate, actor string) (*Resolution, error) {
	resolved, err := q.store.ResolveCandidateStatus(ctx, tenantID, cand.CandidateID, model.CandidateRejected)
	if err != nil {
		return nil, err
	}
	if !resolved {
		fresh, err := q.store.GetCandidate(ctx, tenantID, cand.CandidateID)
		if err != nil {
			return nil, err
		}
		return &Resolution{Candidate: *fresh, Applied: false}, nil
	}

	entry := model.ReconciliationLogEntry{
		TenantID:     tenantID,
		CandidateID:  cand.CandidateID,
		PredictionID: cand.PredictionID,
		Actor:        actor,
		Decision:     string(model.DecisionReject),
		Accepted:     true,
		Detail:       fmt.Sprintf("notice %s rejected", cand.CanonicalNoticeID),
		CreatedAt:    q.now(),
	}
	if err := q.store.AppendLog(ctx, entry); err != nil {
		return nil, err
	}

	cand.Status = model.CandidateRejected
	return &Resolution{Candidate: cand, Applied: true}, nil
}

// Pending lists the tenant's unresolved candidates.
func (q *Queue) Pending(ctx context.Context, tenantID string) ([]model.ReconciliationCandidate, error) {
	if err := guard.Require(ctx, tenantID); err != nil {
		return nil, err
	}
	return q.store.ListPendingCandidates(ctx, tenantID)
}

func validateNotice(tenantID string, n model.CanonicalNotice) error {
	if n.TenantID != tenantID {
		return &model.CrossTenantError{Authenticated: tenantID, Requested: n.TenantID}
	}
	if n.NoticeID == "" {
		return &model.ValidationError{Field: "notice_id", Reason: "required"}
	}
	if n.BuyerID == "" && n.BuyerName == "" {
		return &model.ValidationError{Field: "buyer_id", Reason: "buyer_id or buyer_name required"}
	}
	if n.PublishedAt.IsZero() {
		return &model.ValidationError{Field: "published_at", Reason: "required"}
	}
	if n.Completeness < 0 || n.Completeness > 1 {
		return &model.ValidationError{Field: "completeness", Reason: "must be within [0,1]"}
	}
	return nil
}

func buyerMatches(n model.CanonicalNotice, p model.Prediction) bool {
	if n.BuyerID != "" && n.BuyerID == p.BuyerID {
		return true
	}
	if n.BuyerName != "" {
		return cpv.SameBuyer(n.BuyerName, p.BuyerID)
	}
	return false
}

func clusterMatches(noticeCluster, predCluster string) bool {
	if noticeCluster == "" || noticeCluster == model.ClusterUnknown {
		return true
	}
	return noticeCluster == predCluster || predCluster == model.ClusterUnknown
}

// matchConfidence blends temporal proximity to the window centre, cluster
// exactness and notice completeness into [0,1].
func matchConfidence(n model.CanonicalNotice, p model.Prediction, cfg lifecycle.Config) float64 {
	temporal := 1.0
	if !p.WindowStart.IsZero() && !p.WindowEnd.IsZero() && p.WindowEnd.After(p.WindowStart) {
		centre := p.WindowStart.Add(p.WindowEnd.Sub(p.WindowStart) / 2)
		half := p.WindowEnd.Sub(p.WindowStart)/2 + cfg.Slack()
		dist := n.PublishedAt.Sub(centre)
		if dist < 0 {
			dist = -dist
		}
		temporal = 1 - float64(dist)/float64(half)
		if temporal < 0 {
			temporal = 0
		}
	}

	cluster := 0.6
	if n.CPVClusterID != "" && n.CPVClusterID == p.CPVClusterID {
		cluster = 1.0
	}

	return temporal*0.5 + cluster*0.3 + n.Completeness*0.2
}

// candidateID is deterministic so enqueueing the same notice twice maps to
// the same row.
func candidateID(tenantID, noticeID, predictionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(tenantID+"|"+noticeID+"|"+predictionID)).String()
}
