package model

import "time"

// CandidateStatus is the resolution state of a reconciliation candidate.
type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "pending"
	CandidateMatched  CandidateStatus = "matched"
	CandidateRejected CandidateStatus = "rejected"
)

// ReconciliationCandidate is a proposed link between a newly ingested
// canonical notice and an existing prediction, awaiting a decision.
type ReconciliationCandidate struct {
	TenantID          string          `json:"tenant_id"`
	CandidateID       string          `json:"candidate_id"`
	PredictionID      string          `json:"prediction_id,omitempty"`
	CanonicalNoticeID string          `json:"canonical_notice_id"`
	Status            CandidateStatus `json:"status"`
	MatchConfidence   float64         `json:"match_confidence"` // [0,1]
	CreatedAt         time.Time       `json:"created_at"`
}

// ReconciliationDecision is the outcome requested for a pending candidate.
type ReconciliationDecision string

const (
	DecisionAccept ReconciliationDecision = "accept"
	DecisionReject ReconciliationDecision = "reject"
)

// Valid reports whether the decision is one of the accepted values.
func (d ReconciliationDecision) Valid() bool {
	return d == DecisionAccept || d == DecisionReject
}

// ReconciliationLogEntry is one immutable audit row: a resolution decision
// or a rejected lifecycle transition attempt.
type ReconciliationLogEntry struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id"`
	CandidateID  string           `json:"candidate_id,omitempty"`
	PredictionID string           `json:"prediction_id,omitempty"`
	Actor        string           `json:"actor"` // e.g. "sweep", "admin:<id>", "ingest"
	Decision     string           `json:"decision"`
	FromStatus   PredictionStatus `json:"from_status,omitempty"`
	ToStatus     PredictionStatus `json:"to_status,omitempty"`
	Accepted     bool             `json:"accepted"`
	Detail       string           `json:"detail,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CanonicalNotice is the deduplicated cross-source representation of a
// single procurement notice, as produced by the (external) ingest layer.
type CanonicalNotice struct {
	TenantID     string    `json:"tenant_id"`
	NoticeID     string    `json:"notice_id"`
	BuyerID      string    `json:"buyer_id"`
	BuyerName    string    `json:"buyer_name"`
	CPVClusterID string    `json:"cpv_cluster_id"`
	NoticeType   string    `json:"notice_type"`
	PublishedAt  time.Time `json:"published_at"`
	Completeness float64   `json:"completeness"` // [0,1], fraction of populated fields
}
